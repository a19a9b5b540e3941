package solana

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/Selopol/padre-pump-backend/internal/domain"
)

// MetaplexProgramID is the Metaplex Token Metadata program.
const MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

const (
	metadataKeyV1 = 4
	maxNameLen    = 100
	maxSymbolLen  = 20
	maxURILen     = 400
)

var (
	// ErrMetadataNotFound is returned when the metadata account does not exist.
	ErrMetadataNotFound = errors.New("metadata account not found")
	// ErrInvalidMetadata is returned when the account data cannot be parsed.
	ErrInvalidMetadata = errors.New("invalid metadata account")
)

// MetadataReader reads Metaplex metadata accounts over RPC.
type MetadataReader struct {
	rpc RPCClient
	now func() time.Time
}

// NewMetadataReader creates a reader backed by rpc.
func NewMetadataReader(rpc RPCClient) *MetadataReader {
	return &MetadataReader{rpc: rpc, now: time.Now}
}

// FetchMetadata returns the on-chain name, symbol and URI of a mint.
func (r *MetadataReader) FetchMetadata(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	pda, err := MetadataPDA(mint)
	if err != nil {
		return nil, err
	}

	info, err := r.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return nil, fmt.Errorf("get metadata account %s: %w", pda, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrMetadataNotFound, pda)
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode data: %v", ErrInvalidMetadata, err)
	}

	meta := &domain.TokenMetadata{
		Mint:      mint,
		PDA:       pda,
		FetchedAt: r.now().UnixMilli(),
	}
	if err := parseMetaplexData(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// MetadataPDA derives the Metaplex metadata account of a mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil || len(mintBytes) != 32 {
		return "", fmt.Errorf("invalid mint address %q", mint)
	}
	programBytes, err := base58.Decode(MetaplexProgramID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}

	pda := derivePDA([][]byte{[]byte("metadata"), programBytes, mintBytes}, programBytes)
	if pda == "" {
		return "", fmt.Errorf("no valid bump for mint %s", mint)
	}
	return pda, nil
}

// parseMetaplexData parses Metaplex Token Metadata account data.
// Layout:
// - key: u8 (4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name, symbol, uri: borsh strings (u32 length + bytes, NUL padded)
func parseMetaplexData(data []byte, meta *domain.TokenMetadata) error {
	if len(data) < 65 || data[0] != metadataKeyV1 {
		return fmt.Errorf("%w: unexpected header", ErrInvalidMetadata)
	}
	offset := 65

	name, offset, err := readBorshString(data, offset, maxNameLen)
	if err != nil {
		return fmt.Errorf("%w: name: %v", ErrInvalidMetadata, err)
	}
	symbol, offset, err := readBorshString(data, offset, maxSymbolLen)
	if err != nil {
		return fmt.Errorf("%w: symbol: %v", ErrInvalidMetadata, err)
	}
	uri, _, err := readBorshString(data, offset, maxURILen)
	if err != nil {
		return fmt.Errorf("%w: uri: %v", ErrInvalidMetadata, err)
	}

	if name != "" {
		meta.Name = &name
	}
	if symbol != "" {
		meta.Symbol = &symbol
	}
	if uri != "" {
		meta.URI = &uri
	}
	return nil
}

func readBorshString(data []byte, offset, maxLen int) (string, int, error) {
	if offset+4 > len(data) {
		return "", offset, fmt.Errorf("truncated length at %d", offset)
	}
	n := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if n > maxLen || offset+n > len(data) {
		return "", offset, fmt.Errorf("length %d out of range", n)
	}
	s := strings.TrimSpace(strings.TrimRight(string(data[offset:offset+n]), "\x00"))
	return s, offset + n, nil
}

// derivePDA derives a Program Derived Address: the first bump from 255 down whose
// sha256(seeds || bump || programID || "ProgramDerivedAddress") is off the ed25519 curve.
func derivePDA(seeds [][]byte, programID []byte) string {
	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}
	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
