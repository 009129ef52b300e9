// Package render writes command results as a table, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// Format is an output format of the CLI.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted values of the --output flag.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML}

// ParseFormat validates s as an output format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want table, json or yaml)", s)
	}
}

// Table is the tabular view of a result. The first row is the header.
type Table [][]string

// Render writes v in format. table is used only for FormatTable.
func Render(w io.Writer, format Format, v interface{}, table Table) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	case FormatTable, "":
		if len(table) <= 1 {
			_, err := fmt.Fprintln(w, "No results.")
			return err
		}
		out, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(table)).Srender()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
		_, err = fmt.Fprintln(w, out)
		return err

	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
