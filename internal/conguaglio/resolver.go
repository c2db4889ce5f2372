// Package conguaglio identifies invoices that have been financially
// superseded by a later-issued invoice for the same metering point and
// billing month.
package conguaglio

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

// unit is one reconciliation-eligible record exploded into its own
// single-record entry, with its sort key parsed up front.
type unit struct {
	fr    model.FileResult
	pod   string
	month time.Time
	date  time.Time
}

// Resolve flattens, sorts and scans the merged result set.
//
// Every valid record of every successful FileResult becomes its own
// single-record entry carrying the original filename and layouts. Entries
// are sorted by (codice_pod, mese_fattura, data_fattura); a stable sort
// keeps input order for full ties. The scan is strictly pairwise: an entry
// is flagged conguaglio when the entry immediately after it in sort order
// has the same pod and month but a strictly later issue date. In a chain of
// three or more invoices for one (pod, month) each entry is only compared
// to its direct successor; this mirrors the historical behavior and is kept
// deliberately.
//
// Failed FileResults, and records missing a required field, are passed
// through unflagged after the sorted sequence. A malformed date on a record
// that carries all required fields is a defect and fails the whole pass:
// silently skipping it would corrupt the ordering the financial
// reconciliation depends on.
func Resolve(results []model.FileResult) ([]model.FileResult, error) {
	var units []unit
	var leftover []model.FileResult

	for _, fr := range results {
		if fr.Failed() {
			ineligible := fr.Clone()
			if ineligible.Values == nil {
				ineligible.Values = []model.Record{}
			}
			leftover = append(leftover, ineligible)
			continue
		}
		if len(fr.Values) == 0 {
			// Extraction succeeded but every record was filtered out
			// (typically a "dati mancanti" note). The file still has to
			// appear in the document, or the next run would re-extract it.
			empty := fr.Clone()
			empty.Values = []model.Record{}
			leftover = append(leftover, empty)
			continue
		}
		for _, rec := range fr.Values {
			single := model.FileResult{
				Filename: fr.Filename,
				Layouts:  append([]string(nil), fr.Layouts...),
				Values:   []model.Record{rec},
				Notes:    append([]string(nil), fr.Notes...),
			}
			if !rec.HasRequired() {
				leftover = append(leftover, single)
				continue
			}
			month, err := rec.BillingMonth()
			if err != nil {
				return nil, eris.Wrapf(err, "conguaglio: %s", fr.Filename)
			}
			date, err := rec.IssueDate()
			if err != nil {
				return nil, eris.Wrapf(err, "conguaglio: %s", fr.Filename)
			}
			units = append(units, unit{
				fr:    single,
				pod:   rec.POD(),
				month: month,
				date:  date,
			})
		}
	}

	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.pod != b.pod {
			return a.pod < b.pod
		}
		if !a.month.Equal(b.month) {
			return a.month.Before(b.month)
		}
		return a.date.Before(b.date)
	})

	for i := 1; i < len(units); i++ {
		prev, cur := &units[i-1], &units[i]
		if prev.pod == cur.pod && prev.month.Equal(cur.month) && cur.date.After(prev.date) {
			prev.fr.Conguaglio = true
		}
	}

	out := make([]model.FileResult, 0, len(units)+len(leftover))
	for _, u := range units {
		out = append(out, u.fr)
	}
	out = append(out, leftover...)
	return out, nil
}
