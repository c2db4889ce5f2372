package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bollettaetica/fatture-cli/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		journal, err := store.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()

		runs, err := journal.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tINPUT\tSCANNED\tREUSED\tRECOMPUTED\tERRORS\tCONGUAGLI")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.InputDir, r.Scanned, r.Reused, r.Recomputed, r.Errored, r.Conguagli)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
