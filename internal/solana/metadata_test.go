package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "7EYnhQoR9YM3N7UoaKRoA44Uy8JeaZV3qyouov87awMs"

type fakeRPC struct {
	accounts map[string]*AccountInfo
	err      error
	calls    []string
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	f.calls = append(f.calls, pubkey)
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[pubkey], nil
}

func borsh(s string, pad int) []byte {
	b := make([]byte, 4, 4+len(s)+pad)
	binary.LittleEndian.PutUint32(b, uint32(len(s)+pad))
	b = append(b, s...)
	return append(b, make([]byte, pad)...)
}

func metadataAccount(name, symbol, uri string) string {
	data := []byte{metadataKeyV1}
	data = append(data, make([]byte, 64)...)
	data = append(data, borsh(name, 32-len(name))...)
	data = append(data, borsh(symbol, 10-len(symbol))...)
	data = append(data, borsh(uri, 0)...)
	return base64.StdEncoding.EncodeToString(data)
}

func TestMetadataPDA(t *testing.T) {
	pda, err := MetadataPDA(testMint)
	require.NoError(t, err)

	decoded, err := base58.Decode(pda)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
	assert.False(t, isOnCurve(decoded), "PDA must be off curve")

	again, err := MetadataPDA(testMint)
	require.NoError(t, err)
	assert.Equal(t, pda, again)

	_, err = MetadataPDA("not-base58-0OIl")
	assert.Error(t, err)
}

func TestFetchMetadata(t *testing.T) {
	pda, err := MetadataPDA(testMint)
	require.NoError(t, err)

	rpc := &fakeRPC{accounts: map[string]*AccountInfo{
		pda: {Data: metadataAccount("Padre Coin", "PADRE", "https://ipfs.io/ipfs/Qm123")},
	}}

	meta, err := NewMetadataReader(rpc).FetchMetadata(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, []string{pda}, rpc.calls)
	assert.Equal(t, pda, meta.PDA)
	require.NotNil(t, meta.Name)
	assert.Equal(t, "Padre Coin", *meta.Name)
	require.NotNil(t, meta.Symbol)
	assert.Equal(t, "PADRE", *meta.Symbol)
	require.NotNil(t, meta.URI)
	assert.Equal(t, "https://ipfs.io/ipfs/Qm123", *meta.URI)
}

func TestFetchMetadata_Errors(t *testing.T) {
	_, err := NewMetadataReader(&fakeRPC{}).FetchMetadata(context.Background(), testMint)
	assert.ErrorIs(t, err, ErrMetadataNotFound)

	boom := errors.New("rpc down")
	_, err = NewMetadataReader(&fakeRPC{err: boom}).FetchMetadata(context.Background(), testMint)
	assert.ErrorIs(t, err, boom)

	pda, _ := MetadataPDA(testMint)
	bad := &fakeRPC{accounts: map[string]*AccountInfo{
		pda: {Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3})},
	}}
	_, err = NewMetadataReader(bad).FetchMetadata(context.Background(), testMint)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}
