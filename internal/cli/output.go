package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// printResult writes v as indented JSON, or calls text for the default format.
func printResult(cmd *cobra.Command, opts *RootOptions, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
