package main

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"catalogscan/models"
	"catalogscan/pkg/logger"
	"catalogscan/process/progress"
)

var (
	checkpoints progress.Checkpoints
	outputDir   string
)

func setupRoutes(r *gin.Engine) {
	r.GET("/healthz", healthHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/runs", listRunsHandler)
	authGroup.GET("/runs/:name", getRunHandler)
	authGroup.GET("/runs/:name/products", listProductsHandler)
	authGroup.GET("/runs/:name/problematic", listProblematicHandler)
	authGroup.GET("/runs/:name/csv", downloadCSVHandler)
}

type runSummary struct {
	RunID             string    `json:"run_id"`
	Name              string    `json:"name"`
	Input             string    `json:"input"`
	Mode              string    `json:"mode"`
	LastCompletedPage int       `json:"last_completed_page"`
	TotalPages        int       `json:"total_pages"`
	Completed         bool      `json:"completed"`
	Products          int       `json:"products"`
	Problematic       int       `json:"problematic"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func summarize(st *models.RunState) runSummary {
	return runSummary{
		RunID:             st.RunID,
		Name:              st.Name,
		Input:             st.Input,
		Mode:              st.Mode,
		LastCompletedPage: st.LastCompletedPage,
		TotalPages:        st.TotalPages,
		Completed:         st.Completed,
		Products:          st.ProductCount,
		Problematic:       st.ProblematicCount,
		UpdatedAt:         st.UpdatedAt,
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func listRunsHandler(c *gin.Context) {
	runs, err := checkpoints.List(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	out := make([]runSummary, 0, len(runs))
	for _, st := range runs {
		out = append(out, summarize(st))
	}
	c.JSON(http.StatusOK, out)
}

// loadRun writes the error response itself and returns nil on failure.
func loadRun(c *gin.Context) *models.RunState {
	st, err := checkpoints.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondStoreError(c, err)
		return nil
	}
	return st
}

func getRunHandler(c *gin.Context) {
	if st := loadRun(c); st != nil {
		c.JSON(http.StatusOK, summarize(st))
	}
}

type productView struct {
	Name   string `json:"name"`
	Price  string `json:"price"`
	Cents  int64  `json:"price_cents"`
	Source string `json:"source"`
}

func listProductsHandler(c *gin.Context) {
	st := loadRun(c)
	if st == nil {
		return
	}
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	items := window(st.Products, offset, limit)
	out := make([]productView, 0, len(items))
	for _, p := range items {
		out = append(out, productView{Name: p.Name, Price: p.Price.Dollars(), Cents: int64(p.Price), Source: p.Source})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(st.Products), "items": out})
}

func listProblematicHandler(c *gin.Context) {
	st := loadRun(c)
	if st == nil {
		return
	}
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	items := window(st.Problematic, offset, limit)
	if items == nil {
		items = []models.ProblematicItem{}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(st.Problematic), "items": items})
}

func downloadCSVHandler(c *gin.Context) {
	st := loadRun(c)
	if st == nil {
		return
	}
	path := progress.ProductsPath(outputDir, st.Name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "products table not found"})
		return
	}
	c.FileAttachment(path, st.Name+".csv")
}

func pageParams(c *gin.Context) (offset, limit int, ok bool) {
	var err error
	if offset, err = strconv.Atoi(c.DefaultQuery("offset", "0")); err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return 0, 0, false
	}
	if limit, err = strconv.Atoi(c.DefaultQuery("limit", "200")); err != nil || limit < 1 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit (1-1000)"})
		return 0, 0, false
	}
	return offset, limit, true
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	return items[offset:min(len(items), offset+limit)]
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, progress.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	log := logger.WithComponent("api")
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("checkpoint store failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
}
