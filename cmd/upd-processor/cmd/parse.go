package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/parser/upd"
)

var parseOutputFile string

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Parse UPD XML files",
	Long: `Parse one or more UPD XML files and print the extracted documents
with their issue lists. Parsing is offline: no database is touched and no
duplicate check is performed.

Examples:
  upd-processor parse upd.xml
  upd-processor parse *.xml -f table
  upd-processor parse upd.xml -o parsed.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseOutputFile, "output", "o", "", "Output file (default: stdout)")
}

type parseResult struct {
	File     string          `json:"file"`
	Document *model.Document `json:"document,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	parser := upd.NewParser()

	results := make([]parseResult, 0, len(args))
	failures := 0
	for _, file := range args {
		printVerbose("Parsing: %s\n", file)
		data, err := os.ReadFile(file)
		if err != nil {
			results = append(results, parseResult{File: file, Error: err.Error()})
			failures++
			continue
		}
		doc, err := parser.Parse(data)
		if err != nil {
			results = append(results, parseResult{File: file, Error: err.Error()})
			failures++
			continue
		}
		results = append(results, parseResult{File: file, Document: doc})
	}

	out := os.Stdout
	if parseOutputFile != "" {
		f, err := os.Create(parseOutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch outputFormat {
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tNUMBER\tDATE\tSUPPLIER\tTOTAL\tGENERATOR\tISSUES\tERROR")
		for _, r := range results {
			if r.Document != nil {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
					r.File, r.Document.Number, r.Document.Date.Format("2006-01-02"),
					r.Document.SupplierINN, r.Document.AmountWithVAT,
					r.Document.Generator, len(r.Document.Issues))
			} else {
				fmt.Fprintf(w, "%s\t\t\t\t\t\t\t%s\n", r.File, r.Error)
			}
		}
		w.Flush()
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(args))
	}
	return nil
}
