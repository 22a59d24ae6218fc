// Package cli wires configuration, stores and services into cobra commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"chat-with-docs/internal/config"
	"chat-with-docs/internal/helper"
	"chat-with-docs/internal/llmservice"
	"chat-with-docs/internal/metrics"
	"chat-with-docs/internal/models"
	"chat-with-docs/internal/parser"
	"chat-with-docs/internal/vectorstore"
	"chat-with-docs/internal/vectorstore/chromemdb"
	"chat-with-docs/internal/vectorstore/memory"
	"chat-with-docs/internal/vectorstore/pgvector"
	"chat-with-docs/internal/vectorstore/qdrant"
)

// App holds what every command needs. Factories are fields so tests can swap
// in fakes.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	NewService func(ctx context.Context, cfg *config.Config) (llmservice.Service, error)
	OpenIndex  func(ctx context.Context, cfg *config.Config) (vectorstore.Index, error)
	NewLoader  func(cfg *config.Config, logger zerolog.Logger) *parser.Loader
	IsTerminal func() bool

	configPath string
	verbose    bool
	cfg        *config.Config
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

func NewApp() *App {
	return &App{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
		NewService: func(ctx context.Context, cfg *config.Config) (llmservice.Service, error) {
			return llmservice.New(ctx, cfg)
		},
		OpenIndex: OpenIndex,
		NewLoader: NewLoader,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		logger: log.Logger,
	}
}

// NewLoader builds the document loader with the configured OCR engine.
func NewLoader(cfg *config.Config, logger zerolog.Logger) *parser.Loader {
	ocr := parser.NewTesseract(
		parser.WithTesseractBinary(cfg.OCR.Binary),
		parser.WithTesseractLanguage(cfg.OCR.Language),
	)
	return parser.NewLoader(parser.WithLogger(logger), parser.WithOCREngine(ocr))
}

// OpenIndex opens the vector store backend named in the config.
func OpenIndex(ctx context.Context, cfg *config.Config) (vectorstore.Index, error) {
	vs := cfg.VectorStore
	switch vs.Backend {
	case config.BackendChromem, "":
		if err := helper.CreateFolder(vs.Path); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
		}
		return chromemdb.NewVectorDBManager(vs.Path, vs.Collection,
			chromemdb.WithCompression(vs.Compress),
			chromemdb.WithLogger(log.Logger),
		)
	case config.BackendPGVector:
		return pgvector.Open(ctx, vs.DSN, vs.Debug)
	case config.BackendQdrant:
		return qdrant.New(ctx, vs.Host, vs.Port, vs.Collection)
	case config.BackendMemory:
		return memory.NewStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend %q", vs.Backend)
	}
}

// setup resolves config and logging once per process, before any command runs.
func (a *App) setup() error {
	path := a.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	a.configPath = path

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	helper.SetupLogger(a.Err, cfg.LogLevel, a.verbose)
	a.logger = log.Logger.With().Str("run_id", helper.NewRunID()).Logger()
	a.metrics = metrics.New()
	a.logger.Debug().Str("config", path).Str("provider", cfg.Provider).Str("backend", cfg.VectorStore.Backend).Msg("Loaded config")
	return nil
}

func (a *App) flushMetrics() {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn().Err(err).Str("file", a.cfg.Metrics.Textfile).Msg("Could not write metrics")
	}
}
