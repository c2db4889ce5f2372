package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bollettaetica/fatture-cli/internal/pipeline"
	"github.com/bollettaetica/fatture-cli/internal/reader"
	"github.com/bollettaetica/fatture-cli/internal/store"
)

var (
	readScript     string
	readForce      bool
	readCached     bool
	readRecursive  bool
	readFilterYear int
	readWorkers    int
)

var readCmd = &cobra.Command{
	Use:   "read <input_dir> <output.json>",
	Short: "Extract invoice data from PDFs into a result document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		inputDir, outputFile := args[0], args[1]

		if info, err := os.Stat(inputDir); err != nil || !info.IsDir() {
			return eris.Errorf("input directory %s does not exist", inputDir)
		}

		script := readScript
		if script == "" {
			script = defaultScriptPath()
		}
		if _, err := os.Stat(script); err != nil {
			return eris.Errorf("layout script %s does not exist", script)
		}

		workers := readWorkers
		if workers == 0 {
			workers = cfg.Reader.Workers
		}

		client := reader.New(reader.Options{
			BinPath:   cfg.Reader.BinPath,
			Timeout:   cfg.Reader.Timeout(),
			UseCache:  readCached,
			Recursive: readRecursive,
		})

		var journal *store.Journal
		if cfg.Journal.Enabled {
			j, err := store.OpenJournal(cfg.Journal.Path)
			if err != nil {
				zap.L().Warn("run journal unavailable", zap.Error(err))
			} else {
				journal = j
				defer journal.Close()
			}
		}

		sum, err := pipeline.New(client, journal).Run(ctx, pipeline.Options{
			InputDir:   inputDir,
			OutputFile: outputFile,
			ScriptPath: script,
			ForceRead:  readForce,
			FilterYear: readFilterYear,
			Workers:    workers,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%d file, %d riletti, %d riutilizzati, %d errori, %d conguagli (%s)\n",
			sum.Scanned, sum.Recomputed, sum.Reused, sum.Errored, sum.Conguagli,
			sum.Duration.Round(10*time.Millisecond))
		return nil
	},
}

// defaultScriptPath resolves the stock layout script relative to the
// installed executable.
func defaultScriptPath() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("layouts", "controllo.bls")
	}
	return filepath.Join(filepath.Dir(exe), "layouts", "controllo.bls")
}

func init() {
	readCmd.Flags().StringVarP(&readScript, "script", "s", "", "layout script path (default: layouts/controllo.bls next to the executable)")
	readCmd.Flags().BoolVarP(&readForce, "force-read", "f", false, "ignore the previous result document and re-extract everything")
	readCmd.Flags().BoolVarP(&readCached, "cached", "c", false, "let the extractor use its on-disk cache")
	readCmd.Flags().BoolVarP(&readRecursive, "recursive", "r", false, "recurse into sub-layouts")
	readCmd.Flags().IntVarP(&readFilterYear, "filter-year", "y", 0, "skip files last modified before this year")
	readCmd.Flags().IntVarP(&readWorkers, "workers", "j", 0, "concurrent extraction workers (default: available CPUs)")
	rootCmd.AddCommand(readCmd)
}
