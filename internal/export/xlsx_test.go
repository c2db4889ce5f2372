package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

func record(pod, month, date string, extra map[string][]string) model.Record {
	rec := model.Record{
		model.FieldFornitore:     {model.ParseValue("Enel Energia")},
		model.FieldNumeroFattura: {model.ParseValue("F-001")},
		model.FieldMeseFattura:   {model.ParseValue(month)},
		model.FieldDataFattura:   {model.ParseValue(date)},
		model.FieldCodicePOD:     {model.ParseValue(pod)},
	}
	for k, vs := range extra {
		for _, v := range vs {
			rec[k] = append(rec[k], model.ParseValue(v))
		}
	}
	return rec
}

func TestWriteXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fatture.xlsx")

	results := []model.FileResult{
		{
			Filename: "/in/a.pdf",
			Values: []model.Record{record("IT001E00000001", "2024-03", "2024-04-05", map[string][]string{
				"imponibile":     {"1234.56"},
				"iva":            {"22%"},
				"energia_attiva": {"100", "200", "300"},
			})},
			Conguaglio: true,
		},
		{
			Filename: "/in/b.pdf",
			Values:   []model.Record{record("IT001E00000001", "2024-03", "2024-04-20", nil)},
		},
		{
			Filename: "/in/bad.pdf",
			Values:   []model.Record{},
			Error:    "Nessun layout compatibile",
		},
	}

	require.NoError(t, WriteXLSX(results, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + 2 data + 1 error

	assert.Equal(t, "File", rows[0][0])
	assert.Equal(t, "POD", rows[0][1])
	assert.Equal(t, "Mese", rows[0][2])

	assert.Equal(t, "/in/a.pdf", rows[1][0])
	assert.Equal(t, "IT001E00000001", rows[1][1])

	// Error entries trail as filename/message pairs.
	assert.Equal(t, "/in/bad.pdf", rows[3][0])
	assert.Equal(t, "Nessun layout compatibile", rows[3][1])
}

func TestWriteXLSX_TypedCells(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fatture.xlsx")

	results := []model.FileResult{{
		Filename: "/in/a.pdf",
		Values: []model.Record{record("IT001E00000001", "2024-03", "2024-04-05", map[string][]string{
			"imponibile": {"1234.5"},
			"iva":        {"22%"},
		})},
	}}
	require.NoError(t, WriteXLSX(results, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	// Imponibile is a number, not a string.
	imponibile, err := f.GetCellValue(sheetName, "M2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1234.5", imponibile)

	// Iva is stored as a fraction and formatted as a percentage.
	iva, err := f.GetCellValue(sheetName, "L2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0.22", iva)
}

func TestWriteXLSX_Empty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fatture.xlsx")
	require.NoError(t, WriteXLSX(nil, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(columns))
}
