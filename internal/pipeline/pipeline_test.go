package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/activity"
	"luma-ledger/ledger-backend/internal/emissions/calculation"
	"luma-ledger/ledger-backend/internal/emissions/factors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testStore(t *testing.T) *factors.Store {
	t.Helper()
	table, err := factors.NewTable([]factors.Factor{
		{Category: "electricity", Unit: "kWh", Factor: dec("0.233"), Source: "MITECO", Year: 2023, Region: "ES"},
		{Category: "natural_gas", Unit: "m3", Factor: dec("2.02"), Source: "IPCC", Year: 2023, Region: "Global"},
		{Category: "diesel", Unit: "L", Factor: dec("2.68"), Source: "DEFRA", Year: 2023, Region: "UK"},
		{Category: "petrol", Unit: "L", Factor: dec("2.31"), Source: "DEFRA", Year: 2023, Region: "UK"},
	})
	require.NoError(t, err)
	return factors.NewStore(table)
}

func newTestPipeline(t *testing.T) *Pipeline {
	return NewDefault(testStore(t), zap.NewNop())
}

func TestRunCSV(t *testing.T) {
	data := "fecha,proveedor,consumo,unidad\n15/03/2024,Endesa,1500,kWh\n"

	result, err := newTestPipeline(t).Run(context.Background(), KindCSV, strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.False(t, result.FromText)

	r := result.Records[0]
	assert.Equal(t, "electricity", r.Category)
	assert.Equal(t, 2, r.Scope)
	assert.True(t, dec("0.35").Equal(r.CO2e), "got %s", r.CO2e)
	assert.Equal(t, "MITECO 2023", r.FactorSource)
	assert.True(t, dec("0.35").Equal(result.Totals.Scope2))
	assert.True(t, dec("0.35").Equal(result.Totals.Total))
}

func TestRunText(t *testing.T) {
	text := "Factura de suministro\nConsumo: 250 m³\nTotal: 45,20€\n"

	result, err := newTestPipeline(t).RunText(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.True(t, result.FromText)

	r := result.Records[0]
	assert.Equal(t, "natural_gas", r.Category)
	assert.Equal(t, 1, r.Scope)
	assert.True(t, dec("0.505").Equal(r.CO2e))
	assert.True(t, dec("45.2").Equal(*r.Cost))
	assert.Equal(t, "Unknown", *r.Supplier)
	assert.True(t, dec("0.505").Equal(result.Totals.Scope1))
}

func TestRunCollectsDrops(t *testing.T) {
	data := `supplier,category,usage,unit,cost
Endesa,,1000,kWh,
Transportes Ruiz,transporte,500,tonne_km,
Acme,,10,pallets,
Repsol,diesel,,L,80
Gas Natural Fenosa,,100,m3,
`
	result, err := newTestPipeline(t).Run(context.Background(), KindCSV, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Extracted)
	require.Len(t, result.Records, 2)
	require.Len(t, result.Drops, 3)

	counts := result.DropCounts()
	assert.Equal(t, 1, counts[calculation.ReasonNoFactor])
	assert.Equal(t, 1, counts[calculation.ReasonUnresolvedCategory])
	assert.Equal(t, 1, counts[calculation.ReasonInsufficientData])

	assert.Equal(t, "Transportes Ruiz", *result.Drops[0].Entry.Supplier)
	assert.ErrorIs(t, result.Drops[0].Err, calculation.ErrNoFactor)

	assert.True(t, dec("0.233").Equal(result.Totals.Scope2))
	assert.True(t, dec("0.202").Equal(result.Totals.Scope1))
	assert.True(t, dec("0.435").Equal(result.Totals.Total))
}

func TestRunFallsBackToFreeText(t *testing.T) {
	data := "Resumen mensual\nConsumo: 300 kWh\n"

	result, err := newTestPipeline(t).Run(context.Background(), KindCSV, strings.NewReader(data))
	require.NoError(t, err)
	assert.True(t, result.FromText)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "electricity", result.Records[0].Category)
}

func TestRunNoDataExtracted(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.RunText(context.Background(), "Gracias por su confianza")
	assert.ErrorIs(t, err, ErrNoDataExtracted)

	_, err = p.Run(context.Background(), KindCSV, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoDataExtracted)

	_, err = p.Run(context.Background(), KindCSV, strings.NewReader("foo,bar\n1,2\n"))
	assert.ErrorIs(t, err, ErrNoDataExtracted)
}

func TestRunAllDroppedIsNotAnError(t *testing.T) {
	data := "supplier,usage,unit\nAcme,10,pallets\n"

	result, err := newTestPipeline(t).Run(context.Background(), KindCSV, strings.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Len(t, result.Drops, 1)
	assert.True(t, result.Totals.Total.IsZero())
}

func TestRunUnknownKind(t *testing.T) {
	_, err := newTestPipeline(t).Run(context.Background(), Kind("docx"), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestPipeline(t).RunText(ctx, "Consumo: 100 kWh")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

type countingSource struct {
	store *factors.Store
	calls int
}

func (c *countingSource) Snapshot() *factors.Table {
	c.calls++
	return c.store.Snapshot()
}

func TestRunTakesOneSnapshot(t *testing.T) {
	source := &countingSource{store: testStore(t)}
	p := NewDefault(source, zap.NewNop())

	data := "supplier,usage,unit\nEndesa,100,kWh\nGas Natural Fenosa,5,m3\nRepsol,3,litros\n"
	result, err := p.Run(context.Background(), KindCSV, strings.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, result.Records, 3)
	assert.Equal(t, 1, source.calls)
}

func TestSummarize(t *testing.T) {
	records := []activity.ComputedRecord{
		{Scope: 1, CO2e: dec("0.1")},
		{Scope: 2, CO2e: dec("0.25")},
		{Scope: 3, CO2e: dec("1.005")},
		{Scope: 3, CO2e: dec("0.001")},
	}

	totals := Summarize(records)
	assert.Equal(t, "1.356", totals.Total.StringFixed(3))
	assert.Equal(t, "0.100", totals.Scope1.StringFixed(3))
	assert.Equal(t, "0.250", totals.Scope2.StringFixed(3))
	assert.Equal(t, "1.006", totals.Scope3.StringFixed(3))
}
