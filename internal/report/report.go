package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/bz888/roichat/internal/roi"
)

// Report is a rendered PDF ready to travel inside a JSON reply.
type Report struct {
	PDFBase64 string `json:"pdf_base64"`
	Filename  string `json:"filename"`
}

type row struct {
	label string
	value string
}

type bar struct {
	label   string
	value   float64
	r, g, b int
}

const (
	rowHeight   = 8.0
	labelWidth  = 95.0
	valueWidth  = 85.0
	chartHeight = 55.0
)

// Generate renders the ROI summary and returns it base64 encoded.
func Generate(in roi.Input, res roi.Result) (Report, error) {
	var buf bytes.Buffer
	if err := Render(&buf, in, res); err != nil {
		return Report{}, err
	}
	return Report{
		PDFBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Filename:  Filename(in.CompanyName),
	}, nil
}

// Filename is the suggested download name for a company's report.
func Filename(company string) string {
	return "ROI_" + strings.ReplaceAll(company, " ", "_") + ".pdf"
}

// Render writes the PDF document to w.
func Render(w io.Writer, in roi.Input, res roi.Result) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("ROI Summary", true)
	pdf.SetCreator("roichat", true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(34, 34, 34)
	pdf.CellFormat(0, 12, "ROI Summary", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(25, 6, "Company:", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr(in.CompanyName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(25, 6, "Industry:", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr(in.Industry), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	dm := res.DerivedMetrics
	section(pdf, "Inputs & Derived Metrics", []row{
		{"Revenue", FormatCurrency(dm.Revenue)},
		{"COGS", FormatCurrency(dm.Cogs)},
		{"Gross Margin", FormatCurrency(dm.GrossMargin)},
		{"Logistics Cost", FormatCurrency(dm.LogisticsCost)},
		{"Exception Cost", FormatCurrency(dm.ExceptionCost)},
		{"Avg Inventory Value", FormatCurrency(dm.AvgInventoryValue)},
		{"Planner FTE", fmt.Sprintf("%.2f", dm.LogisticsPlannerFTE)},
	})

	sb := res.SavingsBreakdown
	section(pdf, "Savings Breakdown", []row{
		{"Exception Reduction", FormatCurrency(sb.ExceptionReduction)},
		{"Logistics Optimization", FormatCurrency(sb.LogisticsOptimization)},
		{"Inventory Carrying Savings", FormatCurrency(sb.InventoryCarryingSavings)},
		{"Planner Cost Avoidance", FormatCurrency(sb.PlannerCostAvoidance)},
		{"One-time Cash Release", FormatCurrency(sb.OneTimeCashRelease)},
	})

	t := res.Totals
	section(pdf, "Summary", []row{
		{"Recurring EBIT Savings", FormatCurrency(t.RecurringEBITSavings)},
		{"Cost Avoidance", FormatCurrency(t.CostAvoidance)},
		{"Annual Platform Cost", FormatCurrency(t.AnnualPlatformCost)},
		{"Implementation Cost", FormatCurrency(t.ImplementationCost)},
		{"One-time Benefit", FormatCurrency(t.TotalOneTimeBenefit)},
		{"Net First-year Benefit", FormatCurrency(t.NetFirstYearBenefit)},
		{"ROI%", fmt.Sprintf("%.2f%%", res.ROIPercent)},
		{"Payback Months", FormatPayback(res.PaybackMonths)},
	})

	chart(pdf, "Chart", []bar{
		{"Recurring", t.RecurringEBITSavings, 76, 175, 80},
		{"One-time", t.TotalOneTimeBenefit, 33, 150, 243},
		{"Avoidance", t.CostAvoidance, 255, 152, 0},
	})

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func section(pdf *fpdf.Fpdf, title string, rows []row) {
	// keep a heading with at least its first rows
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if pdf.GetY()+12+3*rowHeight > pageHeight-bottom {
		pdf.AddPage()
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(34, 34, 34)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetDrawColor(204, 204, 204)
	for _, r := range rows {
		pdf.CellFormat(labelWidth, rowHeight, r.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, rowHeight, r.value, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func chart(pdf *fpdf.Fpdf, title string, bars []bar) {
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if pdf.GetY()+chartHeight+25 > pageHeight-bottom {
		pdf.AddPage()
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")

	maxValue := 0.0
	for _, b := range bars {
		maxValue = math.Max(maxValue, b.value)
	}

	left, _, _, _ := pdf.GetMargins()
	top := pdf.GetY() + 6
	baseline := top + chartHeight
	slot := (labelWidth + valueWidth) / float64(len(bars))
	barWidth := slot * 0.5

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(left, baseline, left+labelWidth+valueWidth, baseline)
	for i, b := range bars {
		x := left + float64(i)*slot + (slot-barWidth)/2
		height := 0.0
		if maxValue > 0 && b.value > 0 {
			height = b.value / maxValue * chartHeight
		}
		if height > 0 {
			pdf.SetFillColor(b.r, b.g, b.b)
			pdf.Rect(x, baseline-height, barWidth, height, "F")
		}

		valueLabel := FormatNumber(b.value)
		pdf.Text(x+(barWidth-pdf.GetStringWidth(valueLabel))/2, baseline-height-1.5, valueLabel)
		pdf.Text(x+(barWidth-pdf.GetStringWidth(b.label))/2, baseline+5, b.label)
	}
	pdf.SetFont("Helvetica", "", 8)
	pdf.Text(left, top-1, "USD")
	pdf.SetY(baseline + 10)
}

// FormatCurrency renders whole dollars with thousands separators, e.g. $1,234,567.
func FormatCurrency(v float64) string {
	return "$" + FormatNumber(v)
}

// FormatNumber rounds to whole units and groups thousands.
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// FormatPayback renders payback months with one decimal, or N/A.
func FormatPayback(months *float64) string {
	if months == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *months)
}
