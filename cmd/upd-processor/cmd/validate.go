package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/parser/upd"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check UPD files for arithmetic consistency",
	Long: `Parse UPD files and report every recorded issue, including the
arithmetic cross-checks (price*quantity vs line amount, line sums vs
declared totals). Exit code is non-zero when any file fails to parse or
carries error-severity issues.

Examples:
  upd-processor validate upd.xml
  upd-processor validate incoming/*.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateResult struct {
	File   string               `json:"file"`
	Valid  bool                 `json:"valid"`
	Issues []model.ParsingIssue `json:"issues,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	parser := upd.NewParser()

	results := make([]validateResult, 0, len(args))
	bad := 0
	for _, file := range args {
		data, err := os.ReadFile(file)
		if err != nil {
			results = append(results, validateResult{File: file, Error: err.Error()})
			bad++
			continue
		}
		doc, err := parser.Parse(data)
		if err != nil {
			results = append(results, validateResult{File: file, Error: err.Error()})
			bad++
			continue
		}
		valid := true
		for _, issue := range doc.Issues {
			if issue.Severity == model.SeverityError {
				valid = false
				break
			}
		}
		if !valid {
			bad++
		}
		results = append(results, validateResult{File: file, Valid: valid, Issues: doc.Issues})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	if bad > 0 {
		return fmt.Errorf("%d of %d files invalid", bad, len(args))
	}
	return nil
}
