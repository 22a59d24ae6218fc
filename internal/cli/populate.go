package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chat-with-docs/internal/chunker"
	"chat-with-docs/internal/helper"
	"chat-with-docs/internal/ingest"
	"chat-with-docs/internal/llmservice"
	"chat-with-docs/internal/models"
	"chat-with-docs/internal/vectorstore"
	"chat-with-docs/internal/watcher"
)

type populateOptions struct {
	reset bool
	watch bool
	data  string
	json  bool
}

func newPopulateCmd(app *App) *cobra.Command {
	opts := &populateOptions{}
	cmd := &cobra.Command{
		Use:   "populate-db",
		Short: "Load documents from the data folder into the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runPopulate(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "clear the vector store before loading")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "keep running and re-ingest when the data folder changes")
	cmd.Flags().StringVar(&opts.data, "data", "", "data folder (overrides data_path)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the ingestion report as JSON")
	return cmd
}

// populateResult is what one ingestion pass reports.
type populateResult struct {
	FilesScanned int           `json:"files_scanned"`
	FilesLoaded  int           `json:"files_loaded"`
	FilesSkipped int           `json:"files_skipped"`
	FilesFailed  int           `json:"files_failed"`
	Segments     int           `json:"segments"`
	Report       ingest.Report `json:"report"`
}

func (a *App) runPopulate(ctx context.Context, opts *populateOptions) error {
	defer a.flushMetrics()
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	dataPath := a.cfg.DataPath
	if opts.data != "" {
		dataPath = opts.data
	}

	var index vectorstore.Index
	defer func() {
		if index != nil {
			index.Close()
		}
	}()
	openIndex := func() (vectorstore.Index, error) {
		if index != nil {
			return index, nil
		}
		idx, err := a.OpenIndex(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		index = idx
		return idx, nil
	}

	if opts.reset {
		fmt.Fprintln(a.Out, helper.WarnStyle.Render("✨ Clearing Database"))
		idx, err := openIndex()
		if err != nil {
			return err
		}
		if err := idx.Clear(ctx); err != nil {
			return fmt.Errorf("clear vector store: %w", err)
		}
	}

	svc, err := a.NewService(ctx, a.cfg)
	if err != nil {
		return err
	}

	pass := func(ctx context.Context) error {
		res, err := a.populateOnce(ctx, dataPath, svc, openIndex)
		if res != nil {
			a.printPopulate(res, opts.json)
		}
		return err
	}

	if err := pass(ctx); err != nil && !(opts.watch && errors.Is(err, models.ErrNoDocumentsFound)) {
		return err
	}
	if !opts.watch {
		return nil
	}

	loader := a.NewLoader(a.cfg, a.logger)
	w := watcher.New(dataPath, watcher.WithFilter(loader.Supported), watcher.WithLogger(a.logger))
	return w.Run(ctx, func(ctx context.Context) error {
		err := pass(ctx)
		a.flushMetrics()
		return err
	})
}

// populateOnce loads, chunks and ingests the data folder. The index is opened
// only after documents were found.
func (a *App) populateOnce(ctx context.Context, dataPath string, svc llmservice.Service, openIndex func() (vectorstore.Index, error)) (*populateResult, error) {
	loaded, err := a.NewLoader(a.cfg, a.logger).LoadAll(ctx, dataPath)
	if loaded != nil {
		a.metrics.ObserveFiles(loaded.FilesLoaded, len(loaded.Skipped), len(loaded.Failed))
	}
	if err != nil {
		a.metrics.ObserveIngest(0, 0, 0, "error")
		return nil, err
	}

	splitter, err := chunker.New(a.cfg.Chunking)
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.Chunk(splitter, loaded.Segments)
	if err != nil {
		return nil, err
	}
	a.logger.Info().Int("chunks", len(chunks)).Int("segments", len(loaded.Segments)).Msg("Split documents")

	index, err := openIndex()
	if err != nil {
		return nil, err
	}
	report, err := ingest.New(index, svc,
		ingest.WithBatchSize(a.cfg.Ingest.BatchSize),
		ingest.WithLogger(a.logger),
	).Run(ctx, chunks)

	status := "ok"
	var partial *models.PartialIngestionError
	switch {
	case errors.As(err, &partial):
		status = "partial"
	case err != nil:
		status = "error"
	}
	a.metrics.ObserveIngest(report.Candidates, report.Skipped, report.Inserted, status)
	if n, cerr := index.Count(ctx); cerr == nil {
		a.metrics.SetIndexed(n)
	}

	res := &populateResult{
		FilesScanned: loaded.FilesScanned,
		FilesLoaded:  loaded.FilesLoaded,
		FilesSkipped: len(loaded.Skipped),
		FilesFailed:  len(loaded.Failed),
		Segments:     len(loaded.Segments),
		Report:       report,
	}
	return res, err
}

func (a *App) printPopulate(res *populateResult, asJSON bool) {
	if asJSON {
		_ = helper.PrettyPrint(a.Out, res)
		return
	}
	fmt.Fprintf(a.Out, "Loaded %d document parts from %d files\n", res.Segments, res.FilesLoaded)
	if res.FilesFailed > 0 {
		fmt.Fprintln(a.Out, helper.WarnStyle.Render(fmt.Sprintf("%d files could not be loaded", res.FilesFailed)))
	}
	if res.Report.Inserted == 0 {
		fmt.Fprintln(a.Out, helper.SuccessStyle.Render("✅ No new documents to add"))
		return
	}
	fmt.Fprintln(a.Out, helper.SuccessStyle.Render(fmt.Sprintf("👉 Added %d new chunks (%d already present)", res.Report.Inserted, res.Report.Skipped)))
}
