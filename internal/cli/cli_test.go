package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-with-docs/internal/config"
	"chat-with-docs/internal/llmservice"
	"chat-with-docs/internal/models"
	"chat-with-docs/internal/parser"
	"chat-with-docs/internal/vectorstore"
	"chat-with-docs/internal/vectorstore/memory"
)

type fakeService struct {
	generated int
}

func (f *fakeService) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{1, float32(strings.Count(text, "warranty"))}, nil
}

func (f *fakeService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (f *fakeService) Generate(context.Context, string) (string, error) {
	f.generated++
	return "The warranty lasts two years.", nil
}

func (f *fakeService) Name() string { return "fake" }

type harness struct {
	app     *App
	out     *bytes.Buffer
	index   *memory.Storage
	svc     *fakeService
	cfgPath string
	dataDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		out:     &bytes.Buffer{},
		index:   memory.NewStorage(),
		svc:     &fakeService{},
		cfgPath: filepath.Join(dir, "config.yaml"),
		dataDir: filepath.Join(dir, "data"),
	}
	cfg := config.Default()
	cfg.DataPath = h.dataDir
	cfg.VectorStore.Backend = config.BackendMemory
	cfg.LogLevel = "error"
	require.NoError(t, config.Save(h.cfgPath, cfg))

	h.app = &App{
		In:  strings.NewReader(""),
		Out: h.out,
		Err: io.Discard,
		NewService: func(context.Context, *config.Config) (llmservice.Service, error) {
			return h.svc, nil
		},
		OpenIndex: func(context.Context, *config.Config) (vectorstore.Index, error) {
			return h.index, nil
		},
		NewLoader: func(*config.Config, zerolog.Logger) *parser.Loader {
			return parser.NewLoader(parser.WithLogger(zerolog.Nop()))
		},
		IsTerminal: func() bool { return false },
	}
	return h
}

func (h *harness) writeDoc(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(h.dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.dataDir, name), []byte(content), 0o644))
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	cmd := NewRootCmd(h.app)
	cmd.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	return cmd.ExecuteContext(context.Background())
}

func TestPopulateDB_IncrementalAndReset(t *testing.T) {
	h := newHarness(t)
	h.writeDoc(t, "policy.txt", "The warranty lasts two years from the date of purchase.")
	h.writeDoc(t, "notes.md", "# Returns\n\nReturns are accepted within 30 days.")
	h.writeDoc(t, "binary.exe", "MZ")

	require.NoError(t, h.run("populate-db"))
	assert.Contains(t, h.out.String(), "Loaded 2 document parts from 2 files")
	assert.Contains(t, h.out.String(), "Added 2 new chunks")
	n, _ := h.index.Count(context.Background())
	assert.Equal(t, 2, n)

	require.NoError(t, h.run("populate-db"))
	assert.Contains(t, h.out.String(), "No new documents to add")
	n, _ = h.index.Count(context.Background())
	assert.Equal(t, 2, n)

	require.NoError(t, h.run("populate-db", "--reset"))
	assert.Contains(t, h.out.String(), "Clearing Database")
	assert.Contains(t, h.out.String(), "Added 2 new chunks")
}

func TestPopulateDB_StoresExpectedIDs(t *testing.T) {
	h := newHarness(t)
	h.writeDoc(t, "long.txt", strings.Repeat("a", 1000))

	require.NoError(t, h.run("populate-db", "--json"))
	src := filepath.ToSlash(filepath.Join(h.dataDir, "long.txt"))
	existing, err := h.index.ExistingIDs(context.Background(), []string{src + ":0:0", src + ":0:1", src + ":0:2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{src + ":0:0": true, src + ":0:1": true}, existing)
	assert.Contains(t, h.out.String(), `"inserted": 2`)
}

func TestPopulateDB_NoDocuments(t *testing.T) {
	h := newHarness(t)
	err := h.run("populate-db")
	assert.ErrorIs(t, err, models.ErrNoDocumentsFound)
}

func TestQuery_SingleQuestion(t *testing.T) {
	h := newHarness(t)
	h.writeDoc(t, "policy.txt", "The warranty lasts two years.")
	require.NoError(t, h.run("populate-db"))

	require.NoError(t, h.run("query", "How", "long", "is", "the", "warranty?"))
	out := h.out.String()
	assert.Contains(t, out, "The warranty lasts two years.")
	src := filepath.ToSlash(filepath.Join(h.dataDir, "policy.txt"))
	assert.Contains(t, out, "Sources: ["+src+":0:0]")
	assert.Equal(t, 1, h.svc.generated)
}

func TestQuery_EmptyIndexIsContextless(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("query", "--json", "anything?"))
	assert.Contains(t, h.out.String(), `"contextless": true`)
	assert.Zero(t, h.svc.generated)
}

func TestQuery_InteractiveLoopEndsOnQ(t *testing.T) {
	h := newHarness(t)
	h.writeDoc(t, "policy.txt", "The warranty lasts two years.")
	require.NoError(t, h.run("populate-db"))

	h.app.In = strings.NewReader("first question\n\nsecond question\nq\nnever asked\n")
	require.NoError(t, h.run("query"))

	assert.Equal(t, 2, h.svc.generated)
	assert.Equal(t, 2, strings.Count(h.out.String(), "Sources:"))
}

func TestQuery_InteractiveLoopEndsOnEOF(t *testing.T) {
	h := newHarness(t)
	h.app.In = strings.NewReader("only question")
	require.NoError(t, h.run("query"))
	assert.Contains(t, h.out.String(), models.NoContextAnswer)
}

func TestQuery_InteractiveLoopStopsWhenCancelled(t *testing.T) {
	h := newHarness(t)
	h.writeDoc(t, "policy.txt", "The warranty lasts two years.")
	require.NoError(t, h.run("populate-db"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.out.Reset()
	h.app.In = strings.NewReader("first\nsecond\nthird\n")
	require.NoError(t, h.app.queryLoop(ctx, &cancelAwareEngine{}, 5, &queryOptions{}))

	assert.NotContains(t, h.out.String(), "Error:")
	assert.Zero(t, h.svc.generated)
}

func TestQuery_InteractiveLoopStopsOnWrappedCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	engine := &cancelAwareEngine{cancel: cancel}
	h.app.In = strings.NewReader("first\nsecond\nthird\n")

	require.NoError(t, h.app.queryLoop(ctx, engine, 5, &queryOptions{}))
	assert.Equal(t, 1, engine.calls)
	assert.NotContains(t, h.out.String(), "Error:")
}

// cancelAwareEngine cancels on its first call when given a cancel func, then
// fails the way a provider client does once the context is done.
type cancelAwareEngine struct {
	cancel context.CancelFunc
	calls  int
}

func (e *cancelAwareEngine) Query(ctx context.Context, _ string, _ int) (*models.Answer, error) {
	e.calls++
	if e.cancel != nil {
		e.cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	return &models.Answer{Text: "ok"}, nil
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.writeDoc(t, "a.txt", "alpha")
	require.NoError(t, h.run("populate-db"))

	require.NoError(t, h.run("stats"))
	assert.Contains(t, h.out.String(), "Indexed chunks: 1")
}

func TestConfigInitAndShow(t *testing.T) {
	h := newHarness(t)
	h.cfgPath = filepath.Join(t.TempDir(), "fresh", "config.yaml")

	require.NoError(t, h.run("config", "init"))
	assert.FileExists(t, h.cfgPath)
	assert.Error(t, h.run("config", "init"), "refuses to overwrite")
	require.NoError(t, h.run("config", "init", "--force"))

	t.Setenv("OPENAI_API_KEY", "sk-supersecretvalue")
	require.NoError(t, h.run("config", "show"))
	out := h.out.String()
	assert.Contains(t, out, "provider: ollama")
	assert.NotContains(t, out, "sk-supersecretvalue")
}
