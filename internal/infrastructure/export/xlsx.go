package export

import (
	"bytes"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/shelfcheck/backend/internal/domain"
)

const (
	resultsSheet = "Resultados"
	summarySheet = "Resumen"

	// ContentType is the MIME type of the produced workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var resultHeaders = []string{
	"Producto",
	"Precio imagen",
	"Producto catálogo",
	"Código",
	"Precio catálogo",
	"Diferencia",
	"Similitud",
	"Estado",
	"Veredicto",
	"Error",
}

// Filename returns the download name for a store's validation workbook.
func Filename(storeID int) string {
	return fmt.Sprintf("validacion_tienda_%d.xlsx", storeID)
}

// ValidationXLSX renders a validation summary as a workbook with one row per
// result and a second sheet holding the counts.
func ValidationXLSX(summary domain.Summary, storeID int) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return nil, eris.Wrap(err, "export: rename sheet")
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, eris.Wrap(err, "export: add summary sheet")
	}

	rows := make([][]interface{}, 0, len(summary.Results)+1)
	headerRow := make([]interface{}, len(resultHeaders))
	for i, h := range resultHeaders {
		headerRow[i] = h
	}
	rows = append(rows, headerRow)
	for _, r := range summary.Results {
		rows = append(rows, resultRow(r))
	}
	if err := writeRows(f, resultsSheet, rows); err != nil {
		return nil, err
	}

	counts := [][]interface{}{
		{"Tienda", storeID},
		{"Correctos", summary.Correct()},
		{"Con diferencia", summary.WithDifference()},
		{"No encontrados", summary.Unresolved()},
		{"Con error", summary.Failed},
		{"Total", summary.Total},
	}
	if err := writeRows(f, summarySheet, counts); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, eris.Wrap(err, "export: write workbook")
	}
	return buf.Bytes(), nil
}

func resultRow(r domain.ValidationResult) []interface{} {
	matchedName := ""
	if r.MatchedName != nil {
		matchedName = *r.MatchedName
	}
	return []interface{}{
		r.SourceName,
		optional(r.SourcePrice),
		matchedName,
		r.MatchedCode,
		optional(r.MatchedPrice),
		optional(r.PriceDelta),
		optional(r.MatchScore),
		string(r.Status),
		r.Verdict.Symbol(),
		r.Error,
	}
}

// optional leaves the cell blank for missing numbers.
func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return eris.Wrap(err, "export: cell name")
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return eris.Wrapf(err, "export: set %s!%s", sheet, cell)
			}
		}
	}
	return nil
}
