// Package ingest writes new chunks into the vector index, skipping any whose
// ID is already stored.
package ingest

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chat-with-docs/internal/llmservice"
	"chat-with-docs/internal/models"
	"chat-with-docs/internal/vectorstore"
)

const DefaultBatchSize = 100

// Report counts what one ingestion run did.
type Report struct {
	Candidates int `json:"candidates"`
	Skipped    int `json:"skipped"`
	Inserted   int `json:"inserted"`
}

type Ingestor struct {
	index     vectorstore.Index
	svc       llmservice.Service
	batchSize int
	logger    zerolog.Logger
}

type Option func(*Ingestor)

func WithBatchSize(n int) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Ingestor) { i.logger = logger }
}

func New(index vectorstore.Index, svc llmservice.Service, opts ...Option) *Ingestor {
	i := &Ingestor{
		index:     index,
		svc:       svc,
		batchSize: DefaultBatchSize,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run embeds and inserts every chunk whose ID is not in the index yet, in
// batches. Chunks must already carry their IDs. When a batch fails, earlier
// batches stay committed and a *models.PartialIngestionError is returned.
func (i *Ingestor) Run(ctx context.Context, chunks []models.Chunk) (Report, error) {
	report := Report{Candidates: len(chunks)}

	ids := make([]string, len(chunks))
	for n, c := range chunks {
		ids[n] = c.ID
	}
	existing, err := i.index.ExistingIDs(ctx, ids)
	if err != nil {
		return report, err
	}
	i.logger.Info().Int("existing", len(existing)).Msg("Number of existing documents in DB")

	fresh := make([]models.Chunk, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if existing[c.ID] || seen[c.ID] {
			report.Skipped++
			continue
		}
		seen[c.ID] = true
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		i.logger.Info().Msg("No new documents to add")
		return report, nil
	}
	i.logger.Info().Int("new", len(fresh)).Msg("Adding new documents")

	for start := 0; start < len(fresh); start += i.batchSize {
		end := min(start+i.batchSize, len(fresh))
		if err := i.insertBatch(ctx, fresh[start:end]); err != nil {
			i.logger.Error().Err(err).
				Int("committed", report.Inserted).
				Int("batch_start", start).
				Msg("Batch failed")
			return report, &models.PartialIngestionError{Committed: report.Inserted, Err: err}
		}
		report.Inserted += end - start
		i.logger.Debug().Int("inserted", report.Inserted).Int("total", len(fresh)).Msg("Batch committed")
	}
	return report, nil
}

func (i *Ingestor) insertBatch(ctx context.Context, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for n, c := range batch {
		texts[n] = c.Content
	}
	vecs, err := i.svc.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	records := make([]models.IndexedChunk, len(batch))
	for n, c := range batch {
		records[n] = models.IndexedChunk{Chunk: c, Embedding: vecs[n]}
	}
	return i.index.Insert(ctx, records)
}
