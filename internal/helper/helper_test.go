package helper

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-with-docs/internal/models"
)

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrettyPrint(&buf, map[string]int{"inserted": 3}))
	assert.Equal(t, "{\n  \"inserted\": 3\n}\n", buf.String())
}

func TestCreateFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateFolder(path))
	assert.DirExists(t, path)
	assert.NoError(t, CreateFolder(path))
}

func TestFormatAnswer(t *testing.T) {
	ans := &models.Answer{
		Text:    "Two years.",
		Sources: []string{"data/a.pdf:0:0", "data/b.pdf:1:2"},
		Context: []models.RetrievalResult{{ID: "data/a.pdf:0:0", Content: "warranty text", Score: 0.91}},
	}
	out := FormatAnswer(ans, false)
	assert.Contains(t, out, "Two years.")
	assert.Contains(t, out, "Sources: [data/a.pdf:0:0, data/b.pdf:1:2]")
	assert.NotContains(t, out, "warranty text")

	assert.Contains(t, FormatAnswer(ans, true), "warranty text")
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer

	SetupLogger(&buf, "warn", false)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	SetupLogger(&buf, "nonsense", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	SetupLogger(&buf, "error", true)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
