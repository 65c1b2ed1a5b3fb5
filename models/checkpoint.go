package models

import (
	"time"
)

// RunCheckpoint is the postgres-backed checkpoint of one extraction run.
// Name is the output file prefix+timestamp and doubles as the resumption key.
type RunCheckpoint struct {
	ID                uint `gorm:"primaryKey"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	RunID             string `gorm:"size:64;uniqueIndex;not null"`
	Name              string `gorm:"size:255;index;not null"`
	Input             string `gorm:"size:1024;index"`
	Mode              string `gorm:"size:32"`
	LastCompletedPage int    `gorm:"not null;default:0"`
	TotalPages        int
	Completed         bool     `gorm:"default:false;index"`
	Files             []string `gorm:"serializer:json;type:text"`
	ProductCount      int
	ProblematicCount  int
	StartedAt         time.Time
	Products          []ProductRow `gorm:"foreignKey:CheckpointID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Problems          []ProblemRow `gorm:"foreignKey:CheckpointID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// ProductRow is one deduplicated product of a checkpointed run.
type ProductRow struct {
	ID           uint   `gorm:"primaryKey"`
	CheckpointID uint   `gorm:"index;not null"`
	Position     int    `gorm:"not null"` // preserves first-seen order
	Name         string `gorm:"size:512;not null"`
	PriceCents   int64  `gorm:"not null"`
	Source       string `gorm:"size:255"`
}

// ProblemRow is one unresolved item of a checkpointed run.
type ProblemRow struct {
	ID           uint   `gorm:"primaryKey"`
	CheckpointID uint   `gorm:"index;not null"`
	Position     int    `gorm:"not null"`
	Reason       string `gorm:"size:128"`
	RawText      string `gorm:"type:text"`
	Source       string `gorm:"size:255"`
}

// ToState converts a loaded checkpoint (with rows preloaded) back to a RunState.
func (c *RunCheckpoint) ToState() *RunState {
	st := &RunState{
		RunID:             c.RunID,
		Name:              c.Name,
		Input:             c.Input,
		Mode:              c.Mode,
		LastCompletedPage: c.LastCompletedPage,
		TotalPages:        c.TotalPages,
		Completed:         c.Completed,
		Files:             c.Files,
		StartedAt:         c.StartedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	for _, p := range c.Products {
		st.Products = append(st.Products, Product{Name: p.Name, Price: Price(p.PriceCents), Source: p.Source})
	}
	for _, p := range c.Problems {
		st.Problematic = append(st.Problematic, ProblematicItem{Reason: p.Reason, RawText: p.RawText, Source: p.Source})
	}
	st.Recount()
	return st
}
