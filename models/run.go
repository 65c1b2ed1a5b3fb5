package models

import (
	"fmt"
	"time"
)

// Operating modes. They differ in region detection and in the minimum
// accepted product name length.
const (
	ModeTemplate = "template"
	ModePages    = "pages"
)

// SourceFor builds the page marker stored in the Source/Location column.
// The "Page N" prefix is what legacy resumption parses back.
func SourceFor(page int, label string) string {
	if label == "" {
		return fmt.Sprintf("Page %d", page)
	}
	return fmt.Sprintf("Page %d - %s", page, label)
}

// PageResult is everything one page contributes to a run.
type PageResult struct {
	Page        int
	Source      string
	Products    []Product
	Problematic []ProblematicItem
	Regions     int
	Warnings    []string
}

// RunState is the accumulated, persisted result of a multi-page run.
type RunState struct {
	RunID             string            `json:"run_id"`
	Name              string            `json:"name"`
	Input             string            `json:"input"`
	Mode              string            `json:"mode"`
	LastCompletedPage int               `json:"last_completed_page"`
	TotalPages        int               `json:"total_pages"`
	Completed         bool              `json:"completed"`
	Files             []string          `json:"files,omitempty"` // committed page files, in page order
	Products          []Product         `json:"products"`
	Problematic       []ProblematicItem `json:"problematic"`
	ProductCount      int               `json:"product_count"`
	ProblematicCount  int               `json:"problematic_count"`
	StartedAt         time.Time         `json:"started_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Recount refreshes the denormalised counters from the lists.
func (s *RunState) Recount() {
	s.ProductCount = len(s.Products)
	s.ProblematicCount = len(s.Problematic)
}
