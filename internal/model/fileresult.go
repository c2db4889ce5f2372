package model

// Errcode values recorded on failed extractions. Positive codes come from the
// extractor itself (content errors); negative codes are assigned by this tool.
const (
	ErrcodeMissingData = -1
	ErrcodeFatal       = -2
)

// FileResult is one entry of the persisted result document: the outcome of
// extracting a single source PDF, or, after reconciliation, a single-record
// unit produced by the conguaglio pass.
type FileResult struct {
	Filename   string   `json:"filename"`
	Layouts    []string `json:"layouts,omitempty"`
	Values     []Record `json:"values"`
	Error      string   `json:"error,omitempty"`
	Errcode    int      `json:"errcode,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	Conguaglio bool     `json:"conguaglio,omitempty"`
}

// Failed reports whether this entry records an extraction failure.
func (f *FileResult) Failed() bool {
	return f.Error != ""
}

// WithoutConguagli returns the entries not superseded by a later invoice.
// Failed entries are kept: the portal rejects them individually and the
// operator wants to see that happen.
func WithoutConguagli(results []FileResult) []FileResult {
	out := make([]FileResult, 0, len(results))
	for i := range results {
		if results[i].Conguaglio {
			continue
		}
		out = append(out, results[i])
	}
	return out
}

// Clone returns a deep copy. Reconciliation never mutates prior-run entries,
// so reused results are copied before entering a new run's output set.
func (f *FileResult) Clone() FileResult {
	out := *f
	if f.Layouts != nil {
		out.Layouts = append([]string(nil), f.Layouts...)
	}
	if f.Notes != nil {
		out.Notes = append([]string(nil), f.Notes...)
	}
	if f.Values != nil {
		out.Values = make([]Record, len(f.Values))
		for i, rec := range f.Values {
			cp := make(Record, len(rec))
			for k, vs := range rec {
				cp[k] = append([]Value(nil), vs...)
			}
			out.Values[i] = cp
		}
	}
	return out
}
