package extract

import (
	"context"
	"fmt"
	"path/filepath"

	"catalogscan/models"
	"catalogscan/pkg/logger"
	"catalogscan/pkg/ocr"
	"catalogscan/process/progress"
)

// PageProcessor is the per-page step; *Engine is the production one.
type PageProcessor interface {
	ProcessPage(ctx context.Context, page Page) models.PageResult
}

// Runner drives pages through a processor in order and commits after each.
type Runner struct {
	Processor PageProcessor
	Store     *progress.Store
	Input     string
}

// Begin loads or creates the run state for r.Input.
func (r *Runner) Begin(ctx context.Context, totalPages int) (*models.RunState, error) {
	return r.Store.Begin(ctx, r.Input, totalPages)
}

// Step processes one page and commits the merged state. Pages at or below
// the last completed page are skipped. On cancellation nothing is committed
// and ctx.Err() is returned.
func (r *Runner) Step(ctx context.Context, st *models.RunState, page Page) error {
	if page.Number <= st.LastCompletedPage {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	res := r.Processor.ProcessPage(ctx, page)
	if err := ctx.Err(); err != nil {
		return err
	}
	merge(st, res)
	if page.Path != "" {
		st.Files = append(st.Files, filepath.Base(page.Path))
	}
	if err := r.Store.Commit(ctx, st); err != nil {
		return fmt.Errorf("commit page %d: %w", page.Number, err)
	}
	log := logger.WithRun("extract", st.Name)
	log.Debug().Msg(Describe(res))
	return nil
}

// Run processes pages from the resume point to the end and marks the run
// completed. Only ErrNoPages, state errors and cancellation stop it early.
func (r *Runner) Run(ctx context.Context, pages []Page) (*models.RunState, error) {
	if len(pages) == 0 {
		return nil, ocr.ErrNoPages
	}
	st, err := r.Begin(ctx, len(pages))
	if err != nil {
		return nil, err
	}
	log := logger.WithRun("extract", st.Name)
	if st.LastCompletedPage > 0 {
		log.Info().Int("skipping", min(st.LastCompletedPage, len(pages))).Msg("pages already done")
	}
	for _, page := range pages {
		if err := r.Step(ctx, st, page); err != nil {
			return st, err
		}
	}
	if err := r.Store.Finish(ctx, st); err != nil {
		return st, err
	}
	log.Info().Int("products", st.ProductCount).Int("problematic", st.ProblematicCount).
		Int("pages", st.LastCompletedPage).Msg("run completed")
	return st, nil
}

func merge(st *models.RunState, res models.PageResult) {
	st.Products = ocr.Dedupe(append(st.Products, res.Products...))
	st.Problematic = append(st.Problematic, res.Problematic...)
	st.LastCompletedPage = res.Page
	st.Recount()
}
