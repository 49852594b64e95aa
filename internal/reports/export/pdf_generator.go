package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// PDFGenerator renders the annual report: summary, top categories, monthly
// breakdown and methodology.
type PDFGenerator struct {
	options PDFOptions
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string
	Title          string
	DateFormat     string
	HeaderColor    PDFColor
	AlternateColor PDFColor
	FontFamily     string
	FontSize       float64
	TitleFontSize  float64
	Margins        PDFMargins
}

// PDFColor represents an RGB color
type PDFColor struct {
	R, G, B int
}

type PDFMargins struct {
	Left, Right, Top, Bottom float64
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Title:          "GHG Emissions Report",
		DateFormat:     "02/01/2006",
		HeaderColor:    PDFColor{R: 44, G: 95, B: 45},
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Helvetica",
		FontSize:       10,
		TitleFontSize:  20,
		Margins:        PDFMargins{Left: 15, Right: 15, Top: 20, Bottom: 20},
	}
}

func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	return &PDFGenerator{options: options}
}

func (g *PDFGenerator) ContentType() string { return "application/pdf" }

func (g *PDFGenerator) Export(w io.Writer, r *Report) error {
	o := g.options
	pdf := gofpdf.New("P", "mm", o.PageSize, "")
	pdf.SetMargins(o.Margins.Left, o.Margins.Top, o.Margins.Right)
	pdf.SetAutoPageBreak(true, o.Margins.Bottom)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(o.FontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(o.FontFamily, "B", o.TitleFontSize)
	pdf.SetTextColor(o.HeaderColor.R, o.HeaderColor.G, o.HeaderColor.B)
	pdf.CellFormat(0, 12, fmt.Sprintf("%s %d", o.Title, r.Year), "", 1, "C", false, 0, "")
	pdf.SetFont(o.FontFamily, "", o.FontSize-1)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, "Generated: "+r.GeneratedAt.Format(o.DateFormat), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	s := r.Dashboard.Summary
	g.section(pdf, "Summary")
	g.table(pdf, []string{"Metric", "Value", "Unit"}, []float64{90, 45, 45}, [][]string{
		{"Total GHG emissions", fixed(s.TotalCO2e, 3), "tCO2e"},
		{"Scope 1 (direct)", fixed(s.Scope1CO2e, 3), "tCO2e"},
		{"Scope 2 (energy)", fixed(s.Scope2CO2e, 3), "tCO2e"},
		{"Scope 3 (indirect)", fixed(s.Scope3CO2e, 3), "tCO2e"},
		{"Data coverage", fixed(s.DataCoverage, 1), "%"},
		{"Data points", fmt.Sprint(s.TotalRecords), "records"},
	})

	if len(r.Dashboard.Categories) > 0 {
		rows := make([][]string, 0, len(r.Dashboard.Categories))
		for _, c := range r.Dashboard.Categories {
			rows = append(rows, []string{
				tr(label(c.Category)), fixed(c.CO2e, 3), fixed(share(c.CO2e, s.TotalCO2e), 1) + "%",
			})
		}
		g.section(pdf, "Top emission sources")
		g.table(pdf, []string{"Category", "tCO2e", "% of total"}, []float64{90, 45, 45}, rows)
	}

	if len(r.Dashboard.TopSuppliers) > 0 {
		rows := make([][]string, 0, len(r.Dashboard.TopSuppliers))
		for _, sp := range r.Dashboard.TopSuppliers {
			rows = append(rows, []string{tr(sp.Supplier), fixed(sp.CO2e, 3)})
		}
		g.section(pdf, "Top suppliers")
		g.table(pdf, []string{"Supplier", "tCO2e"}, []float64{135, 45}, rows)
	}

	if len(r.Dashboard.Monthly) > 0 {
		rows := make([][]string, 0, len(r.Dashboard.Monthly))
		for _, m := range r.Dashboard.Monthly {
			rows = append(rows, []string{m.Month, fixed(m.CO2e, 3)})
		}
		g.section(pdf, "Monthly breakdown")
		g.table(pdf, []string{"Month", "tCO2e"}, []float64{135, 45}, rows)
	}

	g.section(pdf, "Methodology")
	pdf.SetFont(o.FontFamily, "", o.FontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 5, Methodology, "", "L", false)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (g *PDFGenerator) section(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(4)
	pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+4)
	pdf.SetTextColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

// table draws a header row and alternating data rows. The first column is
// left aligned, the rest right aligned.
func (g *PDFGenerator) table(pdf *gofpdf.Fpdf, header []string, widths []float64, rows [][]string) {
	o := g.options

	pdf.SetFont(o.FontFamily, "B", o.FontSize+1)
	pdf.SetFillColor(o.HeaderColor.R, o.HeaderColor.G, o.HeaderColor.B)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range header {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(o.FontFamily, "", o.FontSize)
	pdf.SetTextColor(0, 0, 0)
	for r, row := range rows {
		if r%2 == 1 {
			pdf.SetFillColor(o.AlternateColor.R, o.AlternateColor.G, o.AlternateColor.B)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for i, val := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, val, "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}
}

func fixed(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

// label turns a category key like natural_gas into "Natural gas".
func label(category string) string {
	s := strings.ReplaceAll(category, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
