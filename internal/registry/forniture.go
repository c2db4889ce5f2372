// Package registry loads the forniture registry: the mapping between portal
// supply-point IDs and the spreadsheet files to upload for each of them.
package registry

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Fornitura links one portal supply point to its data file.
type Fornitura struct {
	ID     string
	Scheda string
}

// lines look like "1234  schede/cliente.xlsx"
var lineRe = regexp.MustCompile(`^([0-9]+)[ \t]+(.+)$`)

// Load reads a registry file, dispatching on extension: .xlsx workbooks or
// the historical whitespace-separated text format.
func Load(path string) ([]Fornitura, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(path)
	}
	return LoadText(path)
}

// LoadText parses the text registry format: one "<id> <scheda>" pair per
// line. Lines that do not match are skipped.
func LoadText(path string) ([]Fornitura, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var out []Fornitura
	for _, line := range strings.Split(string(data), "\n") {
		m := lineRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		out = append(out, Fornitura{ID: m[1], Scheda: strings.TrimSpace(m[2])})
	}
	return out, nil
}

// LoadXLSX reads the registry from the first sheet of a workbook: column A
// is the supply point ID, column B the scheda path. A header row is
// tolerated (skipped when column A is not numeric).
func LoadXLSX(path string) ([]Fornitura, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("registry: %s has no sheets", path)
	}

	idRe := regexp.MustCompile(`^[0-9]+$`)

	var out []Fornitura
	for _, row := range f.Sheets[0].Rows {
		if len(row.Cells) < 2 {
			continue
		}
		id := strings.TrimSpace(row.Cells[0].String())
		scheda := strings.TrimSpace(row.Cells[1].String())
		if !idRe.MatchString(id) || scheda == "" {
			continue
		}
		out = append(out, Fornitura{ID: id, Scheda: scheda})
	}
	return out, nil
}
