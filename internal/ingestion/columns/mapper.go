// Package columns maps free-form spreadsheet headers onto the canonical
// activity fields.
package columns

import (
	"strings"
)

// Field is a canonical column of an activity row.
type Field string

const (
	FieldDate          Field = "date"
	FieldSupplier      Field = "supplier"
	FieldCategory      Field = "category"
	FieldUsage         Field = "usage"
	FieldUnit          Field = "unit"
	FieldCost          Field = "cost"
	FieldInvoiceNumber Field = "invoice_number"
	FieldNotes         Field = "notes"
)

// Mapping goes from an original header to the field it was assigned.
type Mapping map[string]Field

// Layout goes from a field to the column index holding it.
type Layout map[Field]int

// Synonyms is an immutable table of accepted header spellings per field.
// Fields are assigned in declaration order and a header goes to the first
// field listing it. "amount" is a money column and only listed under cost.
type Synonyms struct {
	order   []Field
	byField map[Field]map[string]struct{}
}

type fieldSynonyms struct {
	field Field
	names []string
}

var defaultTable = []fieldSynonyms{
	{FieldDate, []string{"date", "fecha", "date_invoice", "invoice_date", "fecha_factura", "fecha_emision", "fecha_emisión"}},
	{FieldSupplier, []string{"supplier", "proveedor", "vendor", "empresa", "company", "comercializadora"}},
	{FieldCategory, []string{"category", "categoria", "categoría", "tipo", "type", "concept", "concepto"}},
	{FieldUsage, []string{"usage", "consumo", "consumption", "quantity", "cantidad"}},
	{FieldUnit, []string{"unit", "unidad", "units", "uom", "unidades"}},
	{FieldCost, []string{"cost", "coste", "costo", "importe", "total", "amount", "precio", "price"}},
	{FieldInvoiceNumber, []string{"invoice", "invoice_number", "factura", "numero_factura", "número_factura", "n_factura", "nº_factura"}},
	{FieldNotes, []string{"notes", "observaciones", "comments", "comentarios", "description", "descripcion", "descripción"}},
}

var defaultSynonyms = newSynonyms(defaultTable)

// Default returns the built-in ES/EN synonym table.
func Default() *Synonyms {
	return defaultSynonyms
}

// newSynonyms builds a table; entries keep the order they are given in.
func newSynonyms(table []fieldSynonyms) *Synonyms {
	s := &Synonyms{byField: make(map[Field]map[string]struct{}, len(table))}
	for _, fs := range table {
		set := make(map[string]struct{}, len(fs.names))
		for _, name := range fs.names {
			set[normalizeHeader(name)] = struct{}{}
		}
		s.order = append(s.order, fs.field)
		s.byField[fs.field] = set
	}
	return s
}

// Fields returns the canonical fields in assignment order.
func (s *Synonyms) Fields() []Field {
	out := make([]Field, len(s.order))
	copy(out, s.order)
	return out
}

// MapHeaders assigns headers to canonical fields. Unmatched headers are left out.
func (s *Synonyms) MapHeaders(headers []string) Mapping {
	m := make(Mapping)
	for field, idx := range s.Layout(headers) {
		m[headers[idx]] = field
	}
	return m
}

// Layout resolves each field to the index of the first header matching it.
// A header is claimed by at most one field.
func (s *Synonyms) Layout(headers []string) Layout {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	layout := make(Layout)
	claimed := make(map[int]bool, len(headers))
	for _, field := range s.order {
		names := s.byField[field]
		for i, h := range normalized {
			if claimed[i] || h == "" {
				continue
			}
			if _, ok := names[h]; ok {
				layout[field] = i
				claimed[i] = true
				break
			}
		}
	}
	return layout
}

// normalizeHeader lower-cases, trims, drops a UTF-8 BOM and joins inner
// whitespace runs with '_' so "Fecha factura" matches "fecha_factura".
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}
