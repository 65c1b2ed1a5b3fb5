package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"catalogscan/models"
	"catalogscan/process/progress"
)

func TestWriteSummary(t *testing.T) {
	st := &models.RunState{
		Name:              "catalog_products_20250101_000000",
		Input:             "flyer",
		Mode:              models.ModePages,
		LastCompletedPage: 3,
		TotalPages:        5,
		Products:          []models.Product{{Name: "Frozen Peas", Price: 250, Source: "Page 1"}},
		Problematic: []models.ProblematicItem{
			{Reason: models.ReasonPriceWithoutProduct, RawText: "$1.99", Source: "Page 2"},
			{Reason: models.ReasonPriceWithoutProduct, RawText: "$2.99", Source: "Page 3"},
		},
	}
	st.Recount()

	var b strings.Builder
	Write(&b, st, true)
	out := b.String()
	for _, want := range []string{
		"Run catalog_products_20250101_000000 (pages mode, in progress):",
		"pages=3/5",
		"products=1 problematic=2",
		"Price without product: 2",
		"1|Frozen Peas|$2.50|Page 1",
		"Page 3 - Price without product: $2.99",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestLoadNewest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cp := progress.FileCheckpoints{Dir: dir}
	if _, err := Load(ctx, cp, ""); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns got %v", err)
	}
	for _, name := range []string{"catalog_products_20250101_000000", "catalog_products_20250301_000000"} {
		if err := cp.Save(ctx, &models.RunState{Name: name, Input: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	st, err := Load(ctx, cp, "")
	if err != nil || st.Name != "catalog_products_20250301_000000" {
		t.Fatalf("expected newest run, got %+v %v", st, err)
	}
}
