package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Field keys every billing record must carry to take part in reconciliation.
const (
	FieldFornitore     = "fornitore"
	FieldNumeroFattura = "numero_fattura"
	FieldMeseFattura   = "mese_fattura"
	FieldDataFattura   = "data_fattura"
	FieldCodicePOD     = "codice_pod"
)

// RequiredFields is the set of keys a record needs to be eligible for
// conguaglio reconciliation.
var RequiredFields = []string{
	FieldFornitore,
	FieldNumeroFattura,
	FieldMeseFattura,
	FieldDataFattura,
	FieldCodicePOD,
}

// Record is one row of billing data extracted from a document page. Keys are
// open-ended; each key carries one or more positional values (e.g. the three
// energy tier readings under "energia_attiva").
type Record map[string][]Value

// At returns the i-th value under key.
func (r Record) At(key string, i int) (Value, bool) {
	vs, ok := r[key]
	if !ok || i < 0 || i >= len(vs) {
		return Value{}, false
	}
	return vs[i], true
}

// First returns the first value under key.
func (r Record) First(key string) (Value, bool) {
	return r.At(key, 0)
}

// MissingRequired lists the required fields this record does not carry.
func (r Record) MissingRequired() []string {
	var missing []string
	for _, key := range RequiredFields {
		if vs, ok := r[key]; !ok || len(vs) == 0 {
			missing = append(missing, key)
		}
	}
	return missing
}

// HasRequired reports whether all required fields are present.
func (r Record) HasRequired() bool {
	return len(r.MissingRequired()) == 0
}

// POD returns the metering point identifier.
func (r Record) POD() string {
	v, _ := r.First(FieldCodicePOD)
	return v.String()
}

// BillingMonth returns the parsed mese_fattura. A record that passed the
// required-field check must carry a well-formed month; anything else is a
// defect and is reported as an error.
func (r Record) BillingMonth() (time.Time, error) {
	v, ok := r.First(FieldMeseFattura)
	if !ok {
		return time.Time{}, eris.New("record: mese_fattura missing")
	}
	t, ok := v.Month()
	if !ok {
		return time.Time{}, eris.Errorf("record: malformed mese_fattura %q", v.String())
	}
	return t, nil
}

// IssueDate returns the parsed data_fattura.
func (r Record) IssueDate() (time.Time, error) {
	v, ok := r.First(FieldDataFattura)
	if !ok {
		return time.Time{}, eris.New("record: data_fattura missing")
	}
	t, ok := v.Date()
	if !ok {
		return time.Time{}, eris.Errorf("record: malformed data_fattura %q", v.String())
	}
	return t, nil
}
