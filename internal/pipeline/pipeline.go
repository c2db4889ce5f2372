// Package pipeline drives a full extraction run: enumerate candidate PDFs,
// reuse what the cache allows, recompute the rest in parallel, reconcile
// conguagli and persist the annotated result document.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bollettaetica/fatture-cli/internal/cache"
	"github.com/bollettaetica/fatture-cli/internal/conguaglio"
	"github.com/bollettaetica/fatture-cli/internal/dispatch"
	"github.com/bollettaetica/fatture-cli/internal/model"
	"github.com/bollettaetica/fatture-cli/internal/reader"
	"github.com/bollettaetica/fatture-cli/internal/store"
)

// Options configures one pipeline run.
type Options struct {
	InputDir   string
	OutputFile string
	ScriptPath string
	ForceRead  bool
	FilterYear int
	Workers    int
}

// Summary reports what a run did.
type Summary struct {
	Scanned    int
	Reused     int
	Recomputed int
	Errored    int
	Conguagli  int
	Duration   time.Duration
}

// Extractor is the single external collaborator: one document in, a
// structured result or classified failure out.
type Extractor interface {
	Extract(ctx context.Context, pdfPath, scriptPath string) (*reader.Output, error)
}

// Pipeline ties the reconciler, dispatcher and resolver together.
type Pipeline struct {
	extractor Extractor
	journal   *store.Journal // optional
}

// New creates a pipeline. journal may be nil to disable run journaling.
func New(extractor Extractor, journal *store.Journal) *Pipeline {
	return &Pipeline{extractor: extractor, journal: journal}
}

// Run executes the full pipeline. Per-file extraction failures are folded
// into the result document and never fail the run; only run-level problems
// (unreadable input directory, unreadable prior document, unwritable
// output) return an error, and in that case no output is written.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	started := time.Now()

	inputDir, err := filepath.Abs(opts.InputDir)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: resolve input dir %s", opts.InputDir)
	}

	files, err := enumeratePDFs(inputDir, opts.FilterYear)
	if err != nil {
		return nil, err
	}

	var prior []model.FileResult
	outputMTime := time.Time{}
	if !opts.ForceRead {
		prior, err = store.LoadDocument(opts.OutputFile)
		if err != nil {
			return nil, err
		}
		outputMTime = store.DocumentMTime(opts.OutputFile)
	}

	decision := cache.Reconcile(files, prior, outputMTime)

	zap.L().Info("run started",
		zap.String("input_dir", inputDir),
		zap.Int("files", len(files)),
		zap.Int("reused", len(decision.Reused)),
		zap.Int("recompute", len(decision.Recompute)),
		zap.Int("workers", opts.Workers),
	)

	recomputed := dispatch.Run(ctx, decision.Recompute, opts.Workers, func(ctx context.Context, path string) model.FileResult {
		return p.extractOne(ctx, inputDir, path, opts.ScriptPath)
	})

	merged := append(decision.Reused, recomputed...)

	resolved, err := conguaglio.Resolve(merged)
	if err != nil {
		return nil, err
	}

	if err := store.SaveDocument(opts.OutputFile, resolved); err != nil {
		return nil, err
	}

	sum := &Summary{
		Scanned:    len(files),
		Reused:     len(decision.Reused),
		Recomputed: len(recomputed),
		Duration:   time.Since(started),
	}
	for i := range resolved {
		if resolved[i].Failed() {
			sum.Errored++
		}
		if resolved[i].Conguaglio {
			sum.Conguagli++
		}
	}

	if p.journal != nil {
		_, err := p.journal.RecordRun(ctx, store.Run{
			InputDir:   inputDir,
			OutputFile: opts.OutputFile,
			Scanned:    sum.Scanned,
			Reused:     sum.Reused,
			Recomputed: sum.Recomputed,
			Errored:    sum.Errored,
			Conguagli:  sum.Conguagli,
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		if err != nil {
			zap.L().Warn("run journal write failed", zap.Error(err))
		}
	}

	zap.L().Info("run finished",
		zap.Int("recomputed", sum.Recomputed),
		zap.Int("errors", sum.Errored),
		zap.Int("conguagli", sum.Conguagli),
		zap.Duration("duration", sum.Duration),
	)

	return sum, nil
}

// extractOne runs the extractor for a single file and folds any failure
// into the FileResult, keeping sibling files unaffected.
func (p *Pipeline) extractOne(ctx context.Context, inputDir, path, scriptPath string) model.FileResult {
	rel, relErr := filepath.Rel(inputDir, path)
	if relErr != nil {
		rel = path
	}
	log := zap.L().With(zap.String("file", rel))

	fr := model.FileResult{Filename: path, Values: []model.Record{}}

	out, err := p.extractor.Extract(ctx, path, scriptPath)
	if err != nil {
		var rerr *reader.Error
		if errors.As(err, &rerr) {
			fr.Error = rerr.Message
			fr.Errcode = rerr.Errcode
			if rerr.Kind == reader.FatalError {
				log.Error("extraction failed", zap.String("error", rerr.Message))
			} else {
				log.Warn("document not readable",
					zap.Int("errcode", rerr.Errcode),
					zap.String("error", rerr.Message))
			}
			return fr
		}
		fr.Error = err.Error()
		fr.Errcode = model.ErrcodeFatal
		log.Error("extraction failed", zap.Error(err))
		return fr
	}

	fr.Layouts = out.Layouts
	fr.Values = out.Values
	fr.Notes = out.Notes
	if fr.Values == nil {
		fr.Values = []model.Record{}
	}

	if len(out.Notes) > 0 {
		log.Warn("extracted with warnings", zap.Strings("notes", out.Notes))
	} else {
		log.Info("extracted")
	}
	return fr
}

// enumeratePDFs lists candidate documents under dir, skipping files last
// modified before filterYear when it is set.
func enumeratePDFs(dir string, filterYear int) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		if filterYear > 0 {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.ModTime().Year() < filterYear {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: enumerate %s", dir)
	}
	return files, nil
}
