package calculation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/emissions/category"
	"luma-ledger/ledger-backend/internal/emissions/factors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testTable(t *testing.T, rows ...factors.Factor) *factors.Table {
	t.Helper()
	table, err := factors.NewTable(rows)
	require.NoError(t, err)
	return table
}

func factor(cat, unit, source string, year int, value string) factors.Factor {
	return factors.Factor{Category: cat, Unit: unit, Source: source, Year: year, Factor: dec(value), Region: "EU"}
}

func entry(usage, unit, supplier string, hint *string) activity.RawActivityEntry {
	e := activity.RawActivityEntry{
		Supplier:     activity.String(supplier),
		Unit:         activity.String(unit),
		CategoryHint: hint,
	}
	if usage != "" {
		e.Usage = activity.Decimal(dec(usage))
	}
	return e
}

func TestCalculateFormula(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t, factor("electricity", "kWh", "EEA", 2023, "0.233"))

	record, err := engine.Calculate(entry("1000", "kWh", "", nil), table)
	require.NoError(t, err)
	assert.True(t, dec("0.233").Equal(record.CO2e), "got %s", record.CO2e)
	assert.Equal(t, "electricity", record.Category)
	assert.Equal(t, 2, record.Scope)
	assert.True(t, dec("0.233").Equal(record.EmissionFactor))
	assert.Equal(t, "EEA 2023", record.FactorSource)
}

func TestCalculateRoundsToThreeDecimals(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t, factor("electricity", "kWh", "MITECO", 2023, "0.233"))

	record, err := engine.Calculate(entry("1500", "kWh", "Endesa", nil), table)
	require.NoError(t, err)
	assert.True(t, dec("0.35").Equal(record.CO2e), "got %s", record.CO2e)

	record, err = engine.Calculate(entry("1234.5678", "kWh", "", nil), table)
	require.NoError(t, err)
	assert.Equal(t, "0.288", record.CO2e.StringFixed(3))
}

func TestCalculatePicksNewestYear(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t,
		factor("electricity", "kWh", "EEA", 2022, "0.25"),
		factor("electricity", "kWh", "EEA", 2023, "0.21"),
	)

	record, err := engine.Calculate(entry("100", "kWh", "", nil), table)
	require.NoError(t, err)
	assert.True(t, dec("0.21").Equal(record.EmissionFactor))
	assert.Equal(t, "EEA 2023", record.FactorSource)
	assert.True(t, dec("0.021").Equal(record.CO2e))
}

func TestCalculateNormalizesUnitBeforeLookup(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t, factor("diesel", "L", "DEFRA", 2023, "2.68"))

	record, err := engine.Calculate(entry("200", "litros", "Repsol", activity.String("gasóleo")), table)
	require.NoError(t, err)
	assert.Equal(t, "diesel", record.Category)
	assert.Equal(t, 1, record.Scope)
	assert.Equal(t, "L", record.FactorUnit)
	assert.True(t, dec("0.536").Equal(record.CO2e))
	assert.Equal(t, "litros", *record.Unit, "the entry keeps its original unit")
}

func TestCalculateDropsInsufficientData(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t, factor("electricity", "kWh", "EEA", 2023, "0.233"))

	_, err := engine.Calculate(entry("", "kWh", "", nil), table)
	assertDrop(t, err, ReasonInsufficientData, ErrInsufficientData)

	noUnit := entry("10", "", "", nil)
	_, err = engine.Calculate(noUnit, table)
	assertDrop(t, err, ReasonInsufficientData, ErrInsufficientData)
}

func TestCalculateDropsUnresolvedCategory(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t, factor("electricity", "kWh", "EEA", 2023, "0.233"))

	_, err := engine.Calculate(entry("10", "pallets", "Acme", nil), table)
	assertDrop(t, err, ReasonUnresolvedCategory, ErrUnresolvedCategory)

	_, err = engine.Calculate(entry("10", "kWh", "", activity.String("water")), table)
	assertDrop(t, err, ReasonUnresolvedCategory, ErrUnresolvedCategory)
}

func TestCalculateDropsMissingFactor(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t, factor("electricity", "kWh", "EEA", 2023, "0.233"))

	_, err := engine.Calculate(entry("10", "MWh", "", nil), table)
	drop := assertDrop(t, err, ReasonNoFactor, ErrNoFactor)
	assert.Equal(t, "electricity", drop.Category)
	assert.Equal(t, "MWh", drop.Unit)
	assert.Contains(t, err.Error(), "electricity (MWh)")
}

func TestCalculateIsDeterministic(t *testing.T) {
	engine := NewEngine(category.Default())
	table := testTable(t, factor("natural_gas", "m3", "IPCC", 2023, "2.02"))
	e := entry("250", "m³", "Unknown", nil)

	first, err := engine.Calculate(e, table)
	require.NoError(t, err)
	second, err := engine.Calculate(e, table)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Steps, 3)
	assert.Equal(t, "0.505", first.Steps[2].Outputs["co2e_t"])
}

func assertDrop(t *testing.T, err error, reason DropReason, sentinel error) *DropError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))

	var drop *DropError
	require.True(t, errors.As(err, &drop))
	assert.Equal(t, reason, drop.Reason)
	return drop
}
