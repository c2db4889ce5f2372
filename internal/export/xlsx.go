// Package export renders a result document as an XLSX spreadsheet for the
// operators who review the reconciled billing data.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

type colType int

const (
	colStr colType = iota
	colDate
	colMonth
	colEuro
	colInt
	colNumber
	colPercent
)

// column maps one spreadsheet column to a record field.
type column struct {
	Title  string
	Key    string
	Index  int
	Type   colType
	NumFmt string // overrides the type's default number format
	Width  float64
}

var columns = []column{
	{Title: "File", Key: "filename"},
	{Title: "POD", Key: model.FieldCodicePOD, Width: 16},
	{Title: "Mese", Key: model.FieldMeseFattura, Type: colMonth},
	{Title: "Fornitore", Key: model.FieldFornitore},
	{Title: "N. Fatt.", Key: model.FieldNumeroFattura, Width: 11},
	{Title: "Data Emissione", Key: model.FieldDataFattura, Type: colDate},
	{Title: "Data scadenza", Key: "data_scadenza", Type: colDate},
	{Title: "Costo Materia Energia", Key: "spesa_materia_energia", Type: colEuro, Width: 11},
	{Title: "Trasporto", Key: "trasporto_gestione", Type: colEuro, Width: 11},
	{Title: "Oneri", Key: "oneri", Type: colEuro, Width: 11},
	{Title: "Accise", Key: "accise", Type: colEuro, Width: 11},
	{Title: "Iva", Key: "iva", Type: colPercent, Width: 6},
	{Title: "Imponibile", Key: "imponibile", Type: colEuro, Width: 11},
	{Title: "F1", Key: "energia_attiva", Index: 0, Type: colInt, Width: 8},
	{Title: "F2", Key: "energia_attiva", Index: 1, Type: colInt, Width: 8},
	{Title: "F3", Key: "energia_attiva", Index: 2, Type: colInt, Width: 8},
	{Title: "P1", Key: "potenza", Index: 0, Type: colInt, Width: 8},
	{Title: "P2", Key: "potenza", Index: 1, Type: colInt, Width: 8},
	{Title: "P3", Key: "potenza", Index: 2, Type: colInt, Width: 8},
	{Title: "R1", Key: "energia_reattiva", Index: 0, Type: colInt, Width: 8},
	{Title: "R2", Key: "energia_reattiva", Index: 1, Type: colInt, Width: 8},
	{Title: "R3", Key: "energia_reattiva", Index: 2, Type: colInt, Width: 8},
	{Title: "Oneri Ammin.", Key: "oneri_amministrativi", Type: colEuro},
	{Title: "PCV", Key: "pcv", Type: colEuro},
	{Title: "CTS", Key: "cts", Type: colEuro},
	{Title: "<75%", Key: "penale_reattiva_inf75", Type: colEuro, Width: 11},
	{Title: ">75%", Key: "penale_reattiva_sup75", Type: colEuro, Width: 11},
	{Title: "PEF1", Key: "prezzo_energia", Index: 0, Type: colNumber, NumFmt: "0.00000000", Width: 11},
	{Title: "PEF2", Key: "prezzo_energia", Index: 1, Type: colNumber, NumFmt: "0.00000000", Width: 11},
	{Title: "PEF3", Key: "prezzo_energia", Index: 2, Type: colNumber, NumFmt: "0.00000000", Width: 11},
	{Title: "Sbilanciamento", Key: "sbilanciamento", Type: colNumber, NumFmt: "0.00000000", Width: 11},
	{Title: "Disp. Var", Key: "disp_var", Type: colNumber, NumFmt: "0.00000000", Width: 11},
}

func (t colType) numFmt() string {
	switch t {
	case colDate:
		return "DD/MM/YY"
	case colMonth:
		return "MM/YYYY"
	case colEuro:
		return `#,##0.00 "€"`
	case colInt:
		return "0"
	case colPercent:
		return "0%"
	default:
		return ""
	}
}

const sheetName = "Fatture"

// styleKey identifies a cached cell style.
type styleKey struct {
	numFmt     string
	highlight  bool
	groupStart bool
}

type styler struct {
	f     *excelize.File
	cache map[styleKey]int
}

func (s *styler) style(key styleKey) (int, error) {
	if id, ok := s.cache[key]; ok {
		return id, nil
	}
	st := &excelize.Style{}
	if key.numFmt != "" {
		st.CustomNumFmt = &key.numFmt
	}
	if key.highlight {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}}
	}
	if key.groupStart {
		st.Border = []excelize.Border{{Type: "top", Style: 1, Color: "000000"}}
	}
	id, err := s.f.NewStyle(st)
	if err != nil {
		return 0, eris.Wrap(err, "export: create style")
	}
	s.cache[key] = id
	return id, nil
}

// WriteXLSX renders the result document at outputPath. Eligible entries are
// written in document order (the conguaglio pass already sorted them);
// superseded invoices are highlighted, a thin top border marks each POD
// group change, and failed files are listed at the bottom as
// filename/error pairs.
func WriteXLSX(results []model.FileResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col.Title); err != nil {
			return eris.Wrap(err, "export: write header")
		}
		if col.Width > 0 {
			name, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(sheetName, name, name, col.Width); err != nil {
				return eris.Wrap(err, "export: set column width")
			}
		}
	}

	st := &styler{f: f, cache: make(map[styleKey]int)}

	row := 2
	prevPOD := ""
	var errRows [][2]string

	for i := range results {
		fr := &results[i]
		if fr.Failed() {
			errRows = append(errRows, [2]string{fr.Filename, fr.Error})
			continue
		}
		for _, rec := range fr.Values {
			pod := rec.POD()
			groupStart := prevPOD != "" && pod != prevPOD
			if err := writeRow(f, st, row, fr, rec, groupStart); err != nil {
				return err
			}
			prevPOD = pod
			row++
		}
	}

	for _, er := range errRows {
		for j, v := range er {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return eris.Wrap(err, "export: write error row")
			}
		}
		row++
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return eris.Wrap(err, "export: freeze header")
	}

	return eris.Wrapf(f.SaveAs(outputPath), "export: save %s", outputPath)
}

func writeRow(f *excelize.File, st *styler, row int, fr *model.FileResult, rec model.Record, groupStart bool) error {
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)

		numFmt := col.NumFmt
		if numFmt == "" {
			numFmt = col.Type.numFmt()
		}
		styleID, err := st.style(styleKey{
			numFmt:     numFmt,
			highlight:  fr.Conguaglio,
			groupStart: groupStart,
		})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, styleID); err != nil {
			return eris.Wrap(err, "export: set cell style")
		}

		if col.Key == "filename" {
			if err := f.SetCellValue(sheetName, cell, fr.Filename); err != nil {
				return eris.Wrap(err, "export: write cell")
			}
			continue
		}

		v, ok := rec.At(col.Key, col.Index)
		if !ok {
			continue
		}
		val := cellValue(col.Type, v)
		if val == nil {
			continue
		}
		if err := f.SetCellValue(sheetName, cell, val); err != nil {
			return eris.Wrap(err, "export: write cell")
		}
	}
	return nil
}

// cellValue converts a record value to its typed spreadsheet form, or nil
// when the value does not fit the column type.
func cellValue(t colType, v model.Value) any {
	switch t {
	case colDate:
		if d, ok := v.Date(); ok {
			return d
		}
	case colMonth:
		if m, ok := v.Month(); ok {
			return m
		}
	case colEuro, colInt, colNumber, colPercent:
		if n, ok := v.Number(); ok {
			return n
		}
	default:
		return v.String()
	}
	return nil
}
