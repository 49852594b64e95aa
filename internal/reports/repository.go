package reports

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository stores generated report metadata.
type Repository interface {
	CreateReport(ctx context.Context, report *Report) error
	ListReports(ctx context.Context, companyID uuid.UUID, limit int) ([]Report, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateReport(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO reports (
			id, company_id, year, format, total_co2e, scope1_co2e, scope2_co2e,
			scope3_co2e, coverage, record_count, s3_key, generated_by, created_at
		) VALUES (
			:id, :company_id, :year, :format, :total_co2e, :scope1_co2e, :scope2_co2e,
			:scope3_co2e, :coverage, :record_count, :s3_key, :generated_by, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, report)
	return err
}

func (r *postgresRepository) ListReports(ctx context.Context, companyID uuid.UUID, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	reports := []Report{}
	err := r.db.SelectContext(ctx, &reports, `
		SELECT id, company_id, year, format, total_co2e, scope1_co2e, scope2_co2e,
			scope3_co2e, coverage, record_count, s3_key, generated_by, created_at
		FROM reports
		WHERE company_id = $1
		ORDER BY year DESC, created_at DESC
		LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	return reports, nil
}
