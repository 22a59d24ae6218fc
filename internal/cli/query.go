package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chat-with-docs/internal/helper"
	"chat-with-docs/internal/models"
	"chat-with-docs/internal/rag"
	"chat-with-docs/internal/tui"
)

type queryOptions struct {
	topK        int
	json        bool
	showContext bool
}

func newQueryCmd(app *App) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query [query_text]",
		Short: "Answer a question from the indexed documents",
		Long:  "Answer a single question, or start an interactive session when no question is given. Enter q to leave the session.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runQuery(cmd.Context(), strings.TrimSpace(strings.Join(args, " ")), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the answer as JSON")
	cmd.Flags().BoolVar(&opts.showContext, "show-context", false, "print the retrieved chunks with their scores")
	return cmd
}

func (a *App) runQuery(ctx context.Context, text string, opts *queryOptions) error {
	defer a.flushMetrics()
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	k := opts.topK
	if k <= 0 {
		k = a.cfg.Query.TopK
	}

	index, err := a.OpenIndex(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer index.Close()
	if n, err := index.Count(ctx); err == nil {
		a.metrics.SetIndexed(n)
	}

	svc, err := a.NewService(ctx, a.cfg)
	if err != nil {
		return err
	}
	engine := &observedEngine{rag: rag.NewRAG(index, svc, rag.WithLogger(a.logger)), app: a}

	if text != "" {
		ans, err := engine.Query(ctx, text, k)
		if err != nil {
			return err
		}
		return a.printAnswer(ans, opts)
	}

	if a.IsTerminal() && !opts.json {
		return tui.Run(ctx, engine, k, tui.WithShowContext(opts.showContext))
	}
	return a.queryLoop(ctx, engine, k, opts)
}

// queryLoop reads one question per line until q, EOF or cancellation. A failed
// question is reported and the loop goes on.
func (a *App) queryLoop(ctx context.Context, engine tui.Answerer, k int, opts *queryOptions) error {
	scanner := bufio.NewScanner(a.In)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(a.Out, "Enter your query (q to quit): ")
		if !scanner.Scan() {
			fmt.Fprintln(a.Out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == tui.QuitCommand {
			return nil
		}
		if line == "" {
			continue
		}
		ans, err := engine.Query(ctx, line, k)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(a.Out, helper.ErrorStyle.Render("Error: ")+err.Error())
			continue
		}
		if err := a.printAnswer(ans, opts); err != nil {
			return err
		}
	}
}

func (a *App) printAnswer(ans *models.Answer, opts *queryOptions) error {
	if opts.json {
		return helper.PrettyPrint(a.Out, ans)
	}
	_, err := fmt.Fprintln(a.Out, helper.FormatAnswer(ans, opts.showContext))
	return err
}

// observedEngine records query metrics around the engine.
type observedEngine struct {
	rag *rag.RAG
	app *App
}

func (e *observedEngine) Query(ctx context.Context, query string, k int) (*models.Answer, error) {
	start := time.Now()
	ans, err := e.rag.Query(ctx, query, k)
	result := "answered"
	switch {
	case err != nil:
		result = "error"
		e.app.logger.Error().Err(err).Str("query", query).Msg("Query failed")
	case ans.Contextless:
		result = "contextless"
	}
	e.app.metrics.ObserveQuery(result, time.Since(start))
	return ans, err
}
