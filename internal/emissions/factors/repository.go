package factors

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the reference table.
type Repository interface {
	LoadAll(ctx context.Context) ([]Factor, error)
	Upsert(ctx context.Context, rows []Factor) error
	Count(ctx context.Context) (int64, error)
}

// FactorModel is the emission_factors row.
type FactorModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Category  string          `gorm:"size:64;not null;uniqueIndex:uix_factor"`
	Unit      string          `gorm:"size:32;not null;uniqueIndex:uix_factor"`
	Source    string          `gorm:"size:64;not null;uniqueIndex:uix_factor"`
	Year      int             `gorm:"not null;uniqueIndex:uix_factor"`
	Factor    decimal.Decimal `gorm:"type:numeric(14,6);not null"`
	Region    string          `gorm:"size:64"`
	Notes     string          `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name.
func (FactorModel) TableName() string {
	return "emission_factors"
}

// GormRepository stores factors in Postgres through gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a gorm-backed repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// LoadAll returns every stored factor.
func (r *GormRepository) LoadAll(ctx context.Context) ([]Factor, error) {
	var models []FactorModel
	if err := r.db.WithContext(ctx).Order("category, unit, year DESC, source").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load emission factors: %w", err)
	}

	rows := make([]Factor, len(models))
	for i, m := range models {
		rows[i] = Factor{
			Category: m.Category,
			Unit:     m.Unit,
			Factor:   m.Factor,
			Source:   m.Source,
			Year:     m.Year,
			Region:   m.Region,
			Notes:    m.Notes,
		}
	}
	return rows, nil
}

// Upsert inserts rows, updating the value of an existing (category, unit,
// source, year).
func (r *GormRepository) Upsert(ctx context.Context, rows []Factor) error {
	if len(rows) == 0 {
		return nil
	}

	models := make([]FactorModel, len(rows))
	for i, f := range rows {
		models[i] = FactorModel{
			ID:       uuid.New(),
			Category: f.Category,
			Unit:     f.Unit,
			Source:   f.Source,
			Year:     f.Year,
			Factor:   f.Factor,
			Region:   f.Region,
			Notes:    f.Notes,
		}
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "unit"}, {Name: "source"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"factor", "region", "notes", "updated_at"}),
	}).Create(&models).Error
	if err != nil {
		return fmt.Errorf("failed to upsert emission factors: %w", err)
	}
	return nil
}

// Count returns the number of stored factors.
func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&FactorModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count emission factors: %w", err)
	}
	return n, nil
}
