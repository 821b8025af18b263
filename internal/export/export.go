package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var ErrUnsupportedFormat = errors.New("不支持的导出格式")

// Table 导出用的二维表
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// ContentType 返回响应头和文件扩展名
func ContentType(format string) (string, string, error) {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8", ".csv", nil
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx", nil
	case FormatPDF:
		return "application/pdf", ".pdf", nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Write 按格式写出
func Write(w io.Writer, format string, t *Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	case FormatPDF:
		return WritePDF(w, t)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &t.Headers); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// WritePDF 横向 A4 表格，列宽按可用宽度均分
func WritePDF(w io.Writer, t *Table) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	cols := len(t.Headers)
	if cols == 0 {
		return pdf.Output(w)
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(cols)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, h := range t.Headers {
		pdf.CellFormat(colW, 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, row := range t.Rows {
		for i := 0; i < cols; i++ {
			var v string
			if i < len(row) {
				v = row[i]
			}
			pdf.CellFormat(colW, 6, tr(fit(v, colW)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

// fit 按列宽粗略截断，避免单元格内容溢出
func fit(s string, width float64) string {
	limit := int(width / 1.6)
	r := []rune(strings.TrimSpace(s))
	if limit > 3 && len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return string(r)
}
