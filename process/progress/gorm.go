package progress

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"catalogscan/models"
)

// GormCheckpoints stores checkpoints in postgres (run_checkpoints plus one
// row per product and problem). Save replaces the rows of a run in one transaction.
type GormCheckpoints struct {
	DB *gorm.DB
}

// Migrate creates or updates the checkpoint tables.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&models.RunCheckpoint{}, &models.ProductRow{}, &models.ProblemRow{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}

func byPosition(db *gorm.DB) *gorm.DB { return db.Order("position") }

func (g GormCheckpoints) Latest(ctx context.Context, input string) (*models.RunState, error) {
	var cp models.RunCheckpoint
	err := g.DB.WithContext(ctx).
		Preload("Products", byPosition).Preload("Problems", byPosition).
		Where("input = ? AND completed = ?", input, false).
		Order("name DESC").First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cp.ToState(), nil
}

func (g GormCheckpoints) Save(ctx context.Context, st *models.RunState) error {
	return g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cp models.RunCheckpoint
		err := tx.Where("run_id = ?", st.RunID).First(&cp).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		cp.RunID = st.RunID
		cp.Name = st.Name
		cp.Input = st.Input
		cp.Mode = st.Mode
		cp.LastCompletedPage = st.LastCompletedPage
		cp.TotalPages = st.TotalPages
		cp.Completed = st.Completed
		cp.Files = st.Files
		cp.ProductCount = len(st.Products)
		cp.ProblematicCount = len(st.Problematic)
		cp.StartedAt = st.StartedAt
		if err := tx.Omit("Products", "Problems").Save(&cp).Error; err != nil {
			return err
		}

		if err := tx.Where("checkpoint_id = ?", cp.ID).Delete(&models.ProductRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("checkpoint_id = ?", cp.ID).Delete(&models.ProblemRow{}).Error; err != nil {
			return err
		}
		if len(st.Products) > 0 {
			rows := make([]models.ProductRow, len(st.Products))
			for i, p := range st.Products {
				rows[i] = models.ProductRow{CheckpointID: cp.ID, Position: i, Name: p.Name, PriceCents: int64(p.Price), Source: p.Source}
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		if len(st.Problematic) > 0 {
			rows := make([]models.ProblemRow, len(st.Problematic))
			for i, p := range st.Problematic {
				rows[i] = models.ProblemRow{CheckpointID: cp.ID, Position: i, Reason: p.Reason, RawText: p.RawText, Source: p.Source}
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (g GormCheckpoints) Get(ctx context.Context, name string) (*models.RunState, error) {
	var cp models.RunCheckpoint
	err := g.DB.WithContext(ctx).
		Preload("Products", byPosition).Preload("Problems", byPosition).
		Where("name = ?", name).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", name, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return cp.ToState(), nil
}

func (g GormCheckpoints) List(ctx context.Context) ([]*models.RunState, error) {
	var cps []models.RunCheckpoint
	if err := g.DB.WithContext(ctx).Order("name DESC").Find(&cps).Error; err != nil {
		return nil, err
	}
	out := make([]*models.RunState, 0, len(cps))
	for i := range cps {
		st := cps[i].ToState()
		// rows are not loaded for listings; keep the stored counters
		st.ProductCount = cps[i].ProductCount
		st.ProblematicCount = cps[i].ProblematicCount
		out = append(out, st)
	}
	return out, nil
}

func (g GormCheckpoints) Has(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := g.DB.WithContext(ctx).Model(&models.RunCheckpoint{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
