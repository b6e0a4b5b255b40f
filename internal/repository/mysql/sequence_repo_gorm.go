package mysql

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderSequence is the per-year counter row behind order ids.
type OrderSequence struct {
	SeqYear      int   `gorm:"primaryKey;autoIncrement:false"`
	CurrentValue int64 `gorm:"not null"`
	UpdatedAt    time.Time
}

type SequenceRepo struct {
	db    *gorm.DB
	years sync.Map // int -> struct{}, years whose row is known to exist
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepo {
	return &SequenceRepo{db: db}
}

// Next increments the counter for year. The year's row is created on its
// own beforehand, so the transaction only ever updates an existing row:
// the UPDATE takes that row's lock and concurrent callers queue on it.
// Creating the row inside the same transaction would mix a gap lock from
// the missed UPDATE with the INSERT and can deadlock two first callers.
func (r *SequenceRepo) Next(ctx context.Context, year int) (int64, error) {
	if err := r.ensureYear(ctx, year); err != nil {
		return 0, fmt.Errorf("repository: next order sequence: %w", err)
	}

	var next int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bumped, err := increment(tx, year)
		if err != nil {
			return err
		}
		if !bumped {
			r.years.Delete(year)
			return fmt.Errorf("sequence %d: row missing", year)
		}

		var row OrderSequence
		if err := tx.Where("seq_year = ?", year).First(&row).Error; err != nil {
			return fmt.Errorf("read sequence %d: %w", year, err)
		}
		next = row.CurrentValue
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("repository: next order sequence: %w", err)
	}
	return next, nil
}

// ensureYear creates the counter row for year if it is missing, seeded
// from the ids already issued. Losing the insert race to another caller
// is fine; their seed is computed the same way.
func (r *SequenceRepo) ensureYear(ctx context.Context, year int) error {
	if _, ok := r.years.Load(year); ok {
		return nil
	}

	db := r.db.WithContext(ctx)
	var n int64
	if err := db.Model(&OrderSequence{}).Where("seq_year = ?", year).Count(&n).Error; err != nil {
		return fmt.Errorf("look up sequence %d: %w", year, err)
	}
	if n == 0 {
		seed, err := highestIssued(db, year)
		if err != nil {
			return err
		}
		row := OrderSequence{SeqYear: year, CurrentValue: seed, UpdatedAt: time.Now().UTC()}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("seed sequence %d: %w", year, err)
		}
	}
	r.years.Store(year, struct{}{})
	return nil
}

// HighestIssued scans existing order ids of year, used to seed a fresh
// counter so it never restarts below ids already in the table.
func (r *SequenceRepo) HighestIssued(ctx context.Context, year int) (int64, error) {
	return highestIssued(r.db.WithContext(ctx), year)
}

func increment(tx *gorm.DB, year int) (bool, error) {
	res := tx.Model(&OrderSequence{}).Where("seq_year = ?", year).
		UpdateColumns(map[string]any{
			"current_value": gorm.Expr("current_value + 1"),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("increment sequence %d: %w", year, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func highestIssued(db *gorm.DB, year int) (int64, error) {
	var ids []string
	err := db.Model(&domain.Order{}).
		Where("order_id LIKE ?", domain.OrderIDPrefix(year)+"%").
		Order("LENGTH(order_id) DESC, order_id DESC").
		Limit(1).
		Pluck("order_id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("scan order ids for %d: %w", year, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	seq, _ := domain.ParseOrderSequence(ids[0], year)
	return seq, nil
}
