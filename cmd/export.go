package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bollettaetica/fatture-cli/internal/export"
	"github.com/bollettaetica/fatture-cli/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <input.json> [output.xlsx]",
	Short: "Render a result document as an XLSX spreadsheet",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]

		outputFile := strings.TrimSuffix(inputFile, ".json") + ".xlsx"
		if len(args) == 2 {
			outputFile = args[1]
		}

		results, err := store.LoadDocument(inputFile)
		if err != nil {
			return err
		}

		if err := export.WriteXLSX(results, outputFile); err != nil {
			return err
		}

		fmt.Println(outputFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
