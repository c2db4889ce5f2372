// Package reader adapts the external layout_reader binary: one PDF in, a
// structured extraction result or a classified failure out.
package reader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

// FailureKind classifies extraction failures.
type FailureKind int

const (
	// ContentError means the extractor ran but could not interpret the
	// document (no matching layout, unreadable PDF content).
	ContentError FailureKind = iota
	// FatalError means the extraction process itself misbehaved: timeout,
	// unexpected exit, output that is not valid JSON. Usually an
	// environment problem rather than a bad document.
	FatalError
)

func (k FailureKind) String() string {
	if k == FatalError {
		return "fatal"
	}
	return "content"
}

// Error is a classified extraction failure.
type Error struct {
	Kind    FailureKind
	Message string
	Errcode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("reader: %s error: %s", e.Kind, e.Message)
}

// Output is a successful extraction result.
type Output struct {
	Values  []model.Record
	Layouts []string
	Notes   []string
}

// Options configures the extraction client.
type Options struct {
	// BinPath is the layout_reader executable. Default "layout_reader".
	BinPath string
	// Timeout bounds every extraction call. Default 5s. Exceeding it is
	// always a fatal error, never a hang.
	Timeout time.Duration
	// UseCache passes -c: let the extractor use its on-disk cache.
	UseCache bool
	// Recursive passes -r: recurse into sub-layouts.
	Recursive bool
}

// Client invokes the external extractor for one document at a time.
type Client struct {
	opts Options
}

// New creates an extraction client.
func New(opts Options) *Client {
	if opts.BinPath == "" {
		opts.BinPath = "layout_reader"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Client{opts: opts}
}

// rawOutput is the extractor's stdout payload.
type rawOutput struct {
	Values   []model.Record `json:"values"`
	Layouts  []string       `json:"layouts"`
	Warnings []string       `json:"warnings"`
	Error    string         `json:"error"`
	Errcode  int            `json:"errcode"`
}

// Extract runs the extractor on pdfPath using the given layout script.
// Failures are returned as *Error; callers distinguish content errors from
// fatal ones through its Kind. Records missing a required field are dropped
// with a note, not failed: the call still succeeds with the remaining
// records.
func (c *Client) Extract(ctx context.Context, pdfPath, scriptPath string) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	args := []string{"-p", pdfPath}
	if c.opts.UseCache {
		args = append(args, "-c")
	}
	if c.opts.Recursive {
		args = append(args, "-r")
	}
	args = append(args, scriptPath)

	cmd := exec.CommandContext(ctx, c.opts.BinPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Don't let an orphaned child of the extractor hold the output pipes
	// open past the deadline.
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &Error{
			Kind:    FatalError,
			Message: fmt.Sprintf("timeout after %s", c.opts.Timeout),
			Errcode: model.ErrcodeFatal,
		}
	}

	// The extractor reports content errors as a JSON payload on stdout,
	// possibly with a non-zero exit. Parse stdout first; only an
	// unparseable payload makes the run error fatal.
	var raw rawOutput
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			if runErr != nil {
				msg = runErr.Error()
			} else {
				msg = "unparseable extractor output"
			}
		}
		return nil, &Error{
			Kind:    FatalError,
			Message: msg,
			Errcode: model.ErrcodeFatal,
		}
	}

	if raw.Error != "" {
		return nil, &Error{
			Kind:    ContentError,
			Message: raw.Error,
			Errcode: raw.Errcode,
		}
	}
	if runErr != nil {
		return nil, &Error{
			Kind:    FatalError,
			Message: eris.Wrap(runErr, "reader: extractor exited").Error(),
			Errcode: model.ErrcodeFatal,
		}
	}

	out := &Output{Notes: raw.Warnings}

	// Layout paths feed cache invalidation across runs; canonicalize them
	// here so later comparisons never depend on how the extractor spelled
	// them.
	for _, l := range raw.Layouts {
		abs, err := filepath.Abs(l)
		if err != nil {
			abs = filepath.Clean(l)
		}
		out.Layouts = append(out.Layouts, abs)
	}

	for _, rec := range raw.Values {
		if missing := rec.MissingRequired(); len(missing) > 0 {
			out.Notes = append(out.Notes, "dati mancanti: "+strings.Join(missing, ", "))
			continue
		}
		out.Values = append(out.Values, rec)
	}

	return out, nil
}
