package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"catalogscan/models"
	"catalogscan/process/progress"
)

// ErrNoRuns is returned when the checkpoint store holds no runs.
var ErrNoRuns = errors.New("no runs recorded")

// Load returns the named run, or the newest one when name is empty.
func Load(ctx context.Context, cp progress.Checkpoints, name string) (*models.RunState, error) {
	if name == "" {
		runs, err := cp.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, ErrNoRuns
		}
		name = runs[0].Name
	}
	return cp.Get(ctx, name)
}

// Write prints the run summary: counts, last completed page, completion
// status and problematic items per reason. With list set every product and
// problematic item is printed too.
func Write(w io.Writer, st *models.RunState, list bool) {
	status := "in progress"
	if st.Completed {
		status = "completed"
	}
	fmt.Fprintf(w, "Run %s (%s mode, %s):\n", st.Name, st.Mode, status)
	fmt.Fprintf(w, "  input=%s\n", st.Input)
	if st.TotalPages > 0 {
		fmt.Fprintf(w, "  pages=%d/%d\n", st.LastCompletedPage, st.TotalPages)
	} else {
		fmt.Fprintf(w, "  pages=%d\n", st.LastCompletedPage)
	}
	fmt.Fprintf(w, "  products=%d problematic=%d\n", st.ProductCount, st.ProblematicCount)
	if !st.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  updated=%s\n", st.UpdatedAt.Format(time.RFC3339))
	}

	reasons := map[string]int{}
	for _, p := range st.Problematic {
		reasons[p.Reason]++
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, reasons[k])
	}

	if list {
		for i, p := range st.Products {
			fmt.Fprintf(w, "%d|%s|%s|%s\n", i+1, p.Name, p.Price.Dollars(), p.Source)
		}
		for _, p := range st.Problematic {
			fmt.Fprintln(w, p.Line())
		}
	}
}
