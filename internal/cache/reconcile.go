// Package cache decides, file by file, whether a prior run's extraction
// result can be reused or the file must go back through the extractor.
package cache

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

// Decision partitions candidate files into reusable prior results and paths
// that need recomputation.
type Decision struct {
	Reused    []model.FileResult
	Recompute []string
}

// Reconcile classifies each candidate file against the prior run's result
// set. The prior document holds one entry per extracted record, so a single
// source file may own several entries; they are reused or recomputed as a
// group. A group is reusable only when no member recorded an error and
// every extraction input — the PDF itself and each layout script that
// contributed to it — was last modified strictly before the output document
// was last written. Prior entries are never mutated; reused results are
// deep copies.
func Reconcile(files []string, prior []model.FileResult, outputMTime time.Time) Decision {
	var d Decision

	groups := make(map[string][]*model.FileResult, len(prior))
	for i := range prior {
		fr := &prior[i]
		// Documents written by older tool versions may carry
		// non-canonical paths; normalize before matching.
		name := canonical(fr.Filename)
		groups[name] = append(groups[name], fr)
	}

	for _, file := range files {
		name := canonical(file)
		group := groups[name]
		if !reusable(group, name, outputMTime) {
			d.Recompute = append(d.Recompute, file)
			continue
		}
		for _, old := range group {
			reused := old.Clone()
			reused.Filename = name
			d.Reused = append(d.Reused, reused)
		}
	}

	return d
}

func reusable(group []*model.FileResult, pdf string, outputMTime time.Time) bool {
	if len(group) == 0 || outputMTime.IsZero() {
		return false
	}
	deps := []string{pdf}
	for _, fr := range group {
		if fr.Failed() {
			return false
		}
		deps = append(deps, fr.Layouts...)
	}
	return fresh(deps, outputMTime)
}

// fresh reports whether every dependency was modified strictly before the
// output document. An unreadable dependency forces recomputation.
func fresh(deps []string, outputMTime time.Time) bool {
	for _, dep := range deps {
		info, err := os.Stat(dep)
		if err != nil {
			zap.L().Debug("cache: dependency not readable, recomputing",
				zap.String("path", dep), zap.Error(err))
			return false
		}
		if !info.ModTime().Before(outputMTime) {
			return false
		}
	}
	return true
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
