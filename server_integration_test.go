package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"catalogscan/models"
	"catalogscan/process/progress"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// setupTestServer serves one committed run from a temp output directory.
func setupTestServer(t *testing.T, secret string) (*gin.Engine, *models.RunState) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	store := progress.NewStore(dir, models.ModePages, nil)
	ctx := context.Background()
	st, err := store.Begin(ctx, "flyer", 2)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	st.Products = []models.Product{
		{Name: "Fresh Full Cream Milk", Price: 350, Source: "Page 1"},
		{Name: "Tim Tam Original", Price: 450, Source: "Page 2"},
	}
	st.Problematic = []models.ProblematicItem{{Reason: models.ReasonPriceWithoutProduct, RawText: "$9.99", Source: "Page 2"}}
	st.LastCompletedPage = 2
	if err := store.Finish(ctx, st); err != nil {
		t.Fatalf("finish: %v", err)
	}

	checkpoints = progress.FileCheckpoints{Dir: dir}
	outputDir = dir
	jwtSecret = []byte(secret)
	t.Cleanup(func() { jwtSecret = nil })

	r := gin.New()
	setupRoutes(r)
	return r, st
}

func TestRunsAPI(t *testing.T) {
	r, st := setupTestServer(t, "")

	resp := performRequest(r, http.MethodGet, "/healthz", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.Code)
	}

	resp = performRequest(r, http.MethodGet, "/runs", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list runs status=%d body=%s", resp.Code, resp.Body.String())
	}
	var runs []runSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Name != st.Name || !runs[0].Completed || runs[0].Products != 2 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	resp = performRequest(r, http.MethodGet, "/runs/"+st.Name+"/products?limit=1&offset=1", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("products status=%d body=%s", resp.Code, resp.Body.String())
	}
	var page struct {
		Total int           `json:"total"`
		Items []productView `json:"items"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.Items[0].Price != "$4.50" || page.Items[0].Cents != 450 {
		t.Fatalf("unexpected products page %+v", page)
	}

	resp = performRequest(r, http.MethodGet, "/runs/"+st.Name+"/problematic", nil, "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "Price without product") {
		t.Fatalf("problematic status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodGet, "/runs/"+st.Name+"/csv", nil, "")
	if resp.Code != http.StatusOK || !strings.HasPrefix(resp.Body.String(), "Product,Price,Location\n") {
		t.Fatalf("csv status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodGet, "/runs/catalog_products_missing", nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("missing run status=%d", resp.Code)
	}
	resp = performRequest(r, http.MethodGet, "/runs/"+st.Name+"/products?limit=0", nil, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", resp.Code)
	}
}

func TestRunsAPIRequiresToken(t *testing.T) {
	r, st := setupTestServer(t, "test-secret")

	resp := performRequest(r, http.MethodGet, "/runs", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodGet, "/runs", nil, "not-a-token")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodGet, "/healthz", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", resp.Code)
	}

	token, err := mintToken("ops", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	resp = performRequest(r, http.MethodGet, "/runs/"+st.Name, nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("authorized request status=%d body=%s", resp.Code, resp.Body.String())
	}

	expired, err := mintToken("ops", -time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	resp = performRequest(r, http.MethodGet, "/runs", nil, expired)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.Code)
	}
}

// Postgres checkpoint store, opt-in like the rest of the database tests.
func TestGormCheckpointsRoundTrip(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	db, err := openDB(os.Getenv("DB_DSN"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := progress.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cp := progress.GormCheckpoints{DB: db}
	ctx := context.Background()
	name := "catalog_products_" + time.Now().Format("20060102_150405.000000")
	st := &models.RunState{
		RunID: name, Name: name, Input: "it-" + name, Mode: models.ModePages, LastCompletedPage: 2,
		Products:    []models.Product{{Name: "Frozen Peas", Price: 250, Source: "Page 1"}, {Name: "Tim Tam Original", Price: 450, Source: "Page 2"}},
		Problematic: []models.ProblematicItem{{Reason: models.ReasonPriceWithoutProduct, RawText: "$1.99", Source: "Page 2"}},
	}
	if err := cp.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Products = st.Products[:1]
	st.LastCompletedPage = 3
	if err := cp.Save(ctx, st); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err := cp.Latest(ctx, st.Input)
	if err != nil || got == nil {
		t.Fatalf("latest: %v %v", got, err)
	}
	if got.LastCompletedPage != 3 || len(got.Products) != 1 || len(got.Problematic) != 1 {
		t.Fatalf("unexpected state %+v", got)
	}
	if ok, err := cp.Has(ctx, name); err != nil || !ok {
		t.Fatalf("has: %v %v", ok, err)
	}
}
