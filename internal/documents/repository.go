package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, companyID, id uuid.UUID) (*Document, error)
	ListDocuments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error

	// ClaimForProcessing atomically moves a document into processing. It
	// returns ErrAlreadyProcessing when another analysis holds it.
	ClaimForProcessing(ctx context.Context, companyID, id uuid.UUID, from []string) (*Document, error)

	// ReplaceRecords supersedes every record of the document in one transaction.
	ReplaceRecords(ctx context.Context, documentID uuid.UUID, records []ActivityRecord) error
	ListRecords(ctx context.Context, companyID, documentID uuid.UUID) ([]ActivityRecord, error)
	ListCompanyRecords(ctx context.Context, companyID uuid.UUID, from, to *time.Time) ([]ActivityRecord, error)
	CountRecords(ctx context.Context, documentID uuid.UUID) (int, error)
}

const documentColumns = `id, company_id, file_name, file_type, file_size, s3_key, s3_bucket,
	status, error_message, uploaded_by, uploaded_at, processed_at`

const recordColumns = `id, company_id, document_id, supplier, category_hint, usage, unit, cost,
	activity_date, invoice_number, notes, category, scope, co2e, emission_factor,
	factor_source, factor_unit, factor_year, factor_region, calculation_trail, created_at`

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, company_id, file_name, file_type, file_size, s3_key, s3_bucket,
			status, error_message, uploaded_by, uploaded_at, processed_at
		) VALUES (
			:id, :company_id, :file_name, :file_type, :file_size, :s3_key, :s3_bucket,
			:status, :error_message, :uploaded_by, :uploaded_at, :processed_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

func (r *postgresRepository) GetDocumentByID(ctx context.Context, companyID, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT "+documentColumns+" FROM documents WHERE id = $1 AND company_id = $2", id, companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *postgresRepository) ListDocuments(ctx context.Context, companyID uuid.UUID, filter ListFilter) ([]Document, error) {
	docs := []Document{}
	query := "SELECT " + documentColumns + " FROM documents WHERE company_id = $1"
	args := []interface{}{companyID}
	argCount := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}
	if filter.FileType != nil {
		query += fmt.Sprintf(" AND file_type = $%d", argCount)
		args = append(args, *filter.FileType)
		argCount++
	}
	query += " ORDER BY uploaded_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	err := r.db.SelectContext(ctx, &docs, query, args...)
	return docs, err
}

func (r *postgresRepository) UpdateDocument(ctx context.Context, doc *Document) error {
	query := `
		UPDATE documents SET
			status = :status,
			error_message = :error_message,
			processed_at = :processed_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ClaimForProcessing(ctx context.Context, companyID, id uuid.UUID, from []string) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, `
		UPDATE documents SET status = $3, error_message = NULL
		WHERE id = $1 AND company_id = $2 AND status = ANY($4)
		RETURNING `+documentColumns,
		id, companyID, StatusProcessing, pq.Array(from))
	if err == nil {
		return &doc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := r.GetDocumentByID(ctx, companyID, id); err != nil {
		return nil, err
	}
	return nil, ErrAlreadyProcessing
}

func (r *postgresRepository) ReplaceRecords(ctx context.Context, documentID uuid.UUID, records []ActivityRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM activity_records WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("failed to supersede records: %w", err)
	}

	query := `
		INSERT INTO activity_records (` + recordColumns + `) VALUES (
			:id, :company_id, :document_id, :supplier, :category_hint, :usage, :unit, :cost,
			:activity_date, :invoice_number, :notes, :category, :scope, :co2e, :emission_factor,
			:factor_source, :factor_unit, :factor_year, :factor_region, :calculation_trail, :created_at
		)`
	for i := range records {
		if _, err := tx.NamedExecContext(ctx, query, &records[i]); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return tx.Commit()
}

func (r *postgresRepository) ListRecords(ctx context.Context, companyID, documentID uuid.UUID) ([]ActivityRecord, error) {
	records := []ActivityRecord{}
	err := r.db.SelectContext(ctx, &records,
		"SELECT "+recordColumns+" FROM activity_records WHERE company_id = $1 AND document_id = $2 ORDER BY created_at, id",
		companyID, documentID)
	if err != nil {
		return nil, err
	}
	return withSteps(records)
}

func (r *postgresRepository) ListCompanyRecords(ctx context.Context, companyID uuid.UUID, from, to *time.Time) ([]ActivityRecord, error) {
	records := []ActivityRecord{}
	query := "SELECT " + recordColumns + " FROM activity_records WHERE company_id = $1"
	args := []interface{}{companyID}
	argCount := 2

	if from != nil {
		query += fmt.Sprintf(" AND activity_date >= $%d", argCount)
		args = append(args, *from)
		argCount++
	}
	if to != nil {
		query += fmt.Sprintf(" AND activity_date <= $%d", argCount)
		args = append(args, *to)
		argCount++
	}
	query += " ORDER BY activity_date NULLS LAST, created_at"

	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *postgresRepository) CountRecords(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM activity_records WHERE document_id = $1", documentID)
	return n, err
}

func withSteps(records []ActivityRecord) ([]ActivityRecord, error) {
	for i := range records {
		if len(records[i].CalculationTrail) == 0 {
			continue
		}
		if err := json.Unmarshal(records[i].CalculationTrail, &records[i].Steps); err != nil {
			return nil, fmt.Errorf("failed to decode calculation trail: %w", err)
		}
	}
	return records, nil
}
