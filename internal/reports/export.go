package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ErrInvalidFormat is returned for unsupported export formats.
var ErrInvalidFormat = fmt.Errorf("%w: format must be csv, xlsx or pdf", shared.ErrValidation)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// PDFRenderer converts an HTML document into PDF bytes.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Filename names an export of s.
func Filename(s Summary, f Format) string {
	return fmt.Sprintf("payments_%s_%s.%s", s.Start.Format(DateLayout), s.End.Format(DateLayout), f)
}

var paymentHeader = []string{"Date", "Day", "Order", "Customer", "Method", "Amount", "Note"}

func paymentRow(day Day, p payments.Payment, loc *time.Location) []string {
	return []string{
		p.PaidAt.In(loc).Format("2006-01-02 15:04"),
		day.DayName,
		p.OrderNumber,
		p.CustomerName,
		string(p.Method),
		p.Amount.StringFixed(2),
		p.Note,
	}
}

// WriteCSV writes every payment of s followed by per-day and per-method
// totals.
func WriteCSV(w io.Writer, s Summary, loc *time.Location) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(paymentHeader); err != nil {
		return err
	}
	for _, day := range s.Days {
		for _, p := range day.Payments {
			if err := writer.Write(paymentRow(day, p, loc)); err != nil {
				return err
			}
		}
	}
	_ = writer.Write(nil)
	if err := writer.Write([]string{"Date", "Day", "Count", "Total"}); err != nil {
		return err
	}
	for _, day := range s.Days {
		if err := writer.Write([]string{day.Date, day.DayName, fmt.Sprint(day.Count), day.Total.StringFixed(2)}); err != nil {
			return err
		}
	}
	_ = writer.Write(nil)
	if err := writer.Write([]string{"Method", "Count", "Total"}); err != nil {
		return err
	}
	for _, m := range payments.Methods() {
		mt := s.ByMethod[m]
		if err := writer.Write([]string{string(m), fmt.Sprint(mt.Count), mt.Total.StringFixed(2)}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"TOTAL", fmt.Sprint(s.Count), s.Total.StringFixed(2)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// XLSX renders s as a workbook with a Payments sheet and a Summary sheet.
func XLSX(s Summary, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const paymentsSheet, summarySheet = "Payments", "Summary"
	index, err := f.NewSheet(paymentsSheet)
	if err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	header, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	row := 1
	setRow := func(sheet string, values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(sheet, cell, &values)
	}

	headings := make([]any, len(paymentHeader))
	for i, h := range paymentHeader {
		headings[i] = h
	}
	if err := setRow(paymentsSheet, headings); err != nil {
		return nil, err
	}
	for _, day := range s.Days {
		for _, p := range day.Payments {
			amount, _ := p.Amount.Float64()
			values := []any{p.PaidAt.In(loc).Format("2006-01-02 15:04"), day.DayName, p.OrderNumber, p.CustomerName, string(p.Method), amount, p.Note}
			if err := setRow(paymentsSheet, values); err != nil {
				return nil, err
			}
		}
	}
	_ = f.SetCellStyle(paymentsSheet, "A1", "G1", header)
	_ = f.SetColWidth(paymentsSheet, "A", "A", 18)
	_ = f.SetColWidth(paymentsSheet, "C", "D", 24)

	row = 1
	if err := setRow(summarySheet, []any{"Date", "Day", "Count", "Total"}); err != nil {
		return nil, err
	}
	for _, day := range s.Days {
		total, _ := day.Total.Float64()
		if err := setRow(summarySheet, []any{day.Date, day.DayName, day.Count, total}); err != nil {
			return nil, err
		}
	}
	row++
	if err := setRow(summarySheet, []any{"Method", "Count", "Total"}); err != nil {
		return nil, err
	}
	for _, m := range payments.Methods() {
		mt := s.ByMethod[m]
		total, _ := mt.Total.Float64()
		if err := setRow(summarySheet, []any{string(m), mt.Count, total}); err != nil {
			return nil, err
		}
	}
	grand, _ := s.Total.Float64()
	if err := setRow(summarySheet, []any{"TOTAL", s.Count, grand}); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(summarySheet, "A1", "D1", header)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var summaryTemplate = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Payments {{.Start}} to {{.End}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; }
table { border-collapse: collapse; width: 100%; margin-bottom: 16px; }
th, td { border: 1px solid #ccc; padding: 4px 6px; text-align: left; }
td.num { text-align: right; }
</style></head>
<body>
<h1>Payments {{.Start}} to {{.End}}</h1>
<p>{{.Count}} payments, total {{.Total}}</p>
<table>
<tr><th>Date</th><th>Day</th><th>Count</th><th>Total</th></tr>
{{range .Days}}<tr><td>{{.Date}}</td><td>{{.DayName}}</td><td class="num">{{.Count}}</td><td class="num">{{.Total}}</td></tr>
{{end}}</table>
<table>
<tr><th>Method</th><th>Count</th><th>Total</th></tr>
{{range .Methods}}<tr><td>{{.Method}}</td><td class="num">{{.Count}}</td><td class="num">{{.Total}}</td></tr>
{{end}}</table>
</body></html>
`))

type htmlDay struct {
	Date, DayName, Total string
	Count                int
}

type htmlMethod struct {
	Method, Total string
	Count         int
}

// HTML renders s as a standalone document for PDF conversion.
func HTML(s Summary) (string, error) {
	data := struct {
		Start, End, Total string
		Count             int
		Days              []htmlDay
		Methods           []htmlMethod
	}{
		Start: s.Start.Format(DateLayout),
		End:   s.End.Format(DateLayout),
		Total: s.Total.StringFixed(2),
		Count: s.Count,
	}
	for _, d := range s.Days {
		data.Days = append(data.Days, htmlDay{Date: d.Date, DayName: d.DayName, Total: d.Total.StringFixed(2), Count: d.Count})
	}
	for _, m := range payments.Methods() {
		mt := s.ByMethod[m]
		data.Methods = append(data.Methods, htmlMethod{Method: string(m), Total: mt.Total.StringFixed(2), Count: mt.Count})
	}
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Export renders s in format f.
func Export(ctx context.Context, s Summary, f Format, loc *time.Location, pdf PDFRenderer) ([]byte, error) {
	switch f {
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, s, loc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatXLSX:
		return XLSX(s, loc)
	case FormatPDF:
		if pdf == nil {
			return nil, fmt.Errorf("%w: pdf export is not configured", shared.ErrValidation)
		}
		doc, err := HTML(s)
		if err != nil {
			return nil, err
		}
		return pdf.RenderHTML(ctx, doc)
	default:
		return nil, ErrInvalidFormat
	}
}
