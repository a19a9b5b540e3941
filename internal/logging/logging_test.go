package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "debug", "json")

	log.WithField("mint", "abc").Info("stored")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["mint"])
	assert.Equal(t, "stored", entry["msg"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "warn", "text")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetLevel_Unknown(t *testing.T) {
	log := logrus.New()
	SetLevel(log, "verbose")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, logrus.StandardLogger(), OrDefault(nil))
	l := logrus.New()
	assert.Equal(t, l, OrDefault(l))
}
