package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/stroydoc/upd-processor/internal/parser/upd"
	"github.com/stroydoc/upd-processor/internal/securexml"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Show encoding and generator info for a UPD file",
	Long: `Decode a UPD file and report its size, resolved encoding, whether
an encoding fallback was used, and the detected generator, without running
full field extraction.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	reader := securexml.NewDefaultReader()
	tree, err := reader.Parse(data)
	if err != nil {
		return err
	}

	generator := upd.NewDetector().Detect(tree)

	out := map[string]interface{}{
		"file":              args[0],
		"size":              len(data),
		"encoding":          tree.Encoding,
		"encoding_fallback": tree.FallbackUsed,
		"root_element":      tree.Root.Name,
		"generator":         generator,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
