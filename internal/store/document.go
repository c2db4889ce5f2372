// Package store persists pipeline output: the JSON result document consumed
// by export and upload, and a SQLite journal of past runs.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

// LoadDocument reads a prior run's result document. A missing file is not an
// error: it returns an empty set, which routes every candidate to
// recomputation.
func LoadDocument(path string) ([]model.FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: read document %s", path)
	}
	var results []model.FileResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, eris.Wrapf(err, "store: parse document %s", path)
	}
	return results, nil
}

// EncodeDocument renders the result set in the document's wire shape: an
// indented JSON array with a trailing newline, entries always carrying a
// values array. SaveDocument and the portal upload share it.
func EncodeDocument(results []model.FileResult) ([]byte, error) {
	for i := range results {
		if results[i].Values == nil {
			results[i].Values = []model.Record{}
		}
	}
	data, err := json.MarshalIndent(results, "", "    ")
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal document")
	}
	return append(data, '\n'), nil
}

// SaveDocument writes the result set as an indented JSON array. The write
// goes to a temp file in the destination directory and is renamed over the
// old document, so an aborted run can never leave a half-written cache
// behind for the next run's reuse decisions.
func SaveDocument(path string, results []model.FileResult) error {
	data, err := EncodeDocument(results)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrap(err, "store: create temp document")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "store: write temp document")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "store: close temp document")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "store: replace document %s", path)
	}
	return nil
}

// DocumentMTime returns the document's last-write time, or a zero time when
// the document does not exist yet.
func DocumentMTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
