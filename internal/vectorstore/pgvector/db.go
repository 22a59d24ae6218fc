// Package pgvector stores chunks in a Postgres table with a pgvector column.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"chat-with-docs/internal/models"
	"chat-with-docs/internal/vectorstore"
)

var _ vectorstore.Index = (*Store)(nil)

type Document struct {
	bun.BaseModel `bun:"table:chunks,alias:d"`
	ID            string          `bun:"id,pk"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	Segment       int             `bun:"segment,notnull"`
	Sequence      int             `bun:"sequence,notnull"`
	Kind          string          `bun:"kind"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Score         float32         `bun:"score,scanonly"`
}

type Store struct {
	db     *bun.DB
	logger zerolog.Logger
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// Open connects to Postgres and makes sure the extension and table exist.
func Open(ctx context.Context, dsn string, debug bool) (*Store, error) {
	db := NewDB(ConnectDB(dsn), debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", models.ErrIndexUnavailable, err)
	}
	s := &Store{db: db, logger: log.Logger}
	if err := s.InitDB(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	return s, nil
}

func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := s.db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	return nil
}

func (s *Store) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}
	var found []string
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		Column("id").
		Where("id = ANY(?)", pq.Array(ids)).
		Scan(ctx, &found)
	if err != nil {
		return nil, fmt.Errorf("select existing ids: %w", err)
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

// Insert skips rows whose id is already stored.
func (s *Store) Insert(ctx context.Context, chunks []models.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			ID:        c.ID,
			Content:   c.Content,
			Source:    c.SourcePath,
			Segment:   c.SegmentIndex,
			Sequence:  c.SequenceInSegment,
			Kind:      c.Kind,
			Embedding: pgvector.NewVector(c.Embedding),
		}
	}
	res, err := s.db.NewInsert().
		Model(&docs).
		Column("id", "content", "source", "segment", "sequence", "kind", "embedding").
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug().Int64("rows", n).Msg("Stored chunks")
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievalResult, error) {
	if k <= 0 {
		return []models.RetrievalResult{}, nil
	}
	query := pgvector.NewVector(embedding)
	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Column("id", "content", "source", "segment", "sequence", "kind").
		ColumnExpr("1 - (embedding <=> ?) AS score", query).
		OrderExpr("embedding <=> ?", query).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	out := make([]models.RetrievalResult, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.RetrievalResult{
			ID:      d.ID,
			Content: d.Content,
			Score:   d.Score,
			Metadata: models.Chunk{
				SourcePath:        d.Source,
				SegmentIndex:      d.Segment,
				SequenceInSegment: d.Sequence,
				Kind:              d.Kind,
			}.Metadata(),
		})
	}
	return out, nil
}

// Clear drops the chunks table and recreates it empty.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("drop chunks table: %w", err)
	}
	return s.InitDB(ctx)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
