// Package dashboard aggregates a company's computed records into the totals
// shown on the dashboard and in annual reports.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/documents"
	"luma-ledger/ledger-backend/internal/emissions/calculation"
)

const (
	TopCategories = 10
	TopSuppliers  = 5
)

// RecordSource is the read side of the records store.
type RecordSource interface {
	ListCompanyRecords(ctx context.Context, companyID uuid.UUID, from, to *time.Time) ([]documents.ActivityRecord, error)
}

// Filter narrows the records by activity date. Year and the explicit bounds
// combine; both bounds are inclusive.
type Filter struct {
	Year *int
	From *time.Time
	To   *time.Time
}

// Range resolves the filter into inclusive date bounds.
func (f Filter) Range() (from, to *time.Time) {
	from, to = f.From, f.To
	if f.Year == nil {
		return from, to
	}

	start := time.Date(*f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(*f.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if from == nil || from.Before(start) {
		from = &start
	}
	if to == nil || to.After(end) {
		to = &end
	}
	return from, to
}

func (f Filter) key(companyID uuid.UUID) string {
	from, to := f.Range()
	return fmt.Sprintf("%s|%s|%s", companyID, dateKey(from), dateKey(to))
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// Summary holds tonnes of CO2e overall and per scope.
type Summary struct {
	TotalCO2e    decimal.Decimal `json:"total_co2e"`
	Scope1CO2e   decimal.Decimal `json:"scope1_co2e"`
	Scope2CO2e   decimal.Decimal `json:"scope2_co2e"`
	Scope3CO2e   decimal.Decimal `json:"scope3_co2e"`
	TotalRecords int             `json:"total_records"`
	// DataCoverage is the percentage of records carrying an activity date.
	DataCoverage decimal.Decimal `json:"data_coverage"`
}

type MonthlyTotal struct {
	Month string          `json:"month"`
	CO2e  decimal.Decimal `json:"co2e"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	CO2e     decimal.Decimal `json:"co2e"`
	Count    int             `json:"count"`
}

type SupplierTotal struct {
	Supplier string          `json:"supplier"`
	CO2e     decimal.Decimal `json:"co2e"`
}

// Dashboard is the aggregate for one company and filter.
type Dashboard struct {
	Summary      Summary         `json:"summary"`
	Monthly      []MonthlyTotal  `json:"monthly_data"`
	Categories   []CategoryTotal `json:"category_breakdown"`
	TopSuppliers []SupplierTotal `json:"top_suppliers"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// Aggregate folds records into a dashboard. Monthly totals skip undated
// records and come out in calendar order; categories and suppliers are ranked
// by CO2e with ties broken by name.
func Aggregate(records []activity.ComputedRecord) *Dashboard {
	var (
		summary    Summary
		dated      int
		months     = make(map[string]decimal.Decimal)
		categories = make(map[string]*CategoryTotal)
		suppliers  = make(map[string]decimal.Decimal)
	)

	for _, r := range records {
		summary.TotalCO2e = summary.TotalCO2e.Add(r.CO2e)
		switch r.Scope {
		case 1:
			summary.Scope1CO2e = summary.Scope1CO2e.Add(r.CO2e)
		case 2:
			summary.Scope2CO2e = summary.Scope2CO2e.Add(r.CO2e)
		default:
			summary.Scope3CO2e = summary.Scope3CO2e.Add(r.CO2e)
		}

		if r.Date != nil {
			dated++
			month := r.Date.Format("2006-01")
			months[month] = months[month].Add(r.CO2e)
		}

		ct, ok := categories[r.Category]
		if !ok {
			ct = &CategoryTotal{Category: r.Category}
			categories[r.Category] = ct
		}
		ct.CO2e = ct.CO2e.Add(r.CO2e)
		ct.Count++

		if r.Supplier != nil && *r.Supplier != "" {
			suppliers[*r.Supplier] = suppliers[*r.Supplier].Add(r.CO2e)
		}
	}

	summary.TotalRecords = len(records)
	summary.TotalCO2e = round(summary.TotalCO2e)
	summary.Scope1CO2e = round(summary.Scope1CO2e)
	summary.Scope2CO2e = round(summary.Scope2CO2e)
	summary.Scope3CO2e = round(summary.Scope3CO2e)
	summary.DataCoverage = decimal.Zero
	if len(records) > 0 {
		summary.DataCoverage = decimal.NewFromInt(int64(dated * 100)).
			Div(decimal.NewFromInt(int64(len(records)))).Round(2)
	}

	d := &Dashboard{
		Summary:      summary,
		Monthly:      make([]MonthlyTotal, 0, len(months)),
		Categories:   make([]CategoryTotal, 0, len(categories)),
		TopSuppliers: make([]SupplierTotal, 0, len(suppliers)),
	}

	for month, total := range months {
		d.Monthly = append(d.Monthly, MonthlyTotal{Month: month, CO2e: round(total)})
	}
	sort.Slice(d.Monthly, func(i, j int) bool { return d.Monthly[i].Month < d.Monthly[j].Month })

	for _, ct := range categories {
		ct.CO2e = round(ct.CO2e)
		d.Categories = append(d.Categories, *ct)
	}
	sort.Slice(d.Categories, func(i, j int) bool {
		a, b := d.Categories[i], d.Categories[j]
		if !a.CO2e.Equal(b.CO2e) {
			return a.CO2e.GreaterThan(b.CO2e)
		}
		return a.Category < b.Category
	})
	if len(d.Categories) > TopCategories {
		d.Categories = d.Categories[:TopCategories]
	}

	for supplier, total := range suppliers {
		d.TopSuppliers = append(d.TopSuppliers, SupplierTotal{Supplier: supplier, CO2e: round(total)})
	}
	sort.Slice(d.TopSuppliers, func(i, j int) bool {
		a, b := d.TopSuppliers[i], d.TopSuppliers[j]
		if !a.CO2e.Equal(b.CO2e) {
			return a.CO2e.GreaterThan(b.CO2e)
		}
		return a.Supplier < b.Supplier
	})
	if len(d.TopSuppliers) > TopSuppliers {
		d.TopSuppliers = d.TopSuppliers[:TopSuppliers]
	}

	return d
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(calculation.CO2ePrecision)
}

// Aggregator serves dashboards from a short-lived cache.
type Aggregator struct {
	source RecordSource
	cache  *Cache[*Dashboard]
	logger *zap.Logger
}

func NewAggregator(source RecordSource, ttl time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		cache:  NewCache[*Dashboard](ttl, time.Minute),
		logger: logger,
	}
}

// Dashboard returns the aggregate for the company and filter.
func (a *Aggregator) Dashboard(ctx context.Context, companyID uuid.UUID, filter Filter) (*Dashboard, error) {
	return a.cache.GetOrSet(filter.key(companyID), func() (*Dashboard, error) {
		records, err := a.Records(ctx, companyID, filter)
		if err != nil {
			return nil, err
		}
		d := Aggregate(records)
		d.ComputedAt = time.Now().UTC()
		a.logger.Debug("Dashboard computed",
			zap.String("company_id", companyID.String()),
			zap.Int("records", len(records)))
		return d, nil
	})
}

// Records loads the matching records without touching the cache.
func (a *Aggregator) Records(ctx context.Context, companyID uuid.UUID, filter Filter) ([]activity.ComputedRecord, error) {
	from, to := filter.Range()
	rows, err := a.source.ListCompanyRecords(ctx, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	records := make([]activity.ComputedRecord, len(rows))
	for i, row := range rows {
		records[i] = row.ComputedRecord
	}
	return records, nil
}

// InvalidateCompany drops every cached dashboard of the company. Called after
// a document's records are replaced.
func (a *Aggregator) InvalidateCompany(companyID uuid.UUID) {
	a.cache.DeleteByPrefix(companyID.String() + "|")
}

func (a *Aggregator) CacheStats() CacheStats {
	return a.cache.Stats()
}

func (a *Aggregator) Stop() {
	a.cache.Stop()
}
