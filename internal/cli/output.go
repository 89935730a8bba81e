// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tunnelkeys.
//
// go-tunnelkeys is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// OutputFormatText outputs in human-readable text format
	OutputFormatText OutputFormat = "text"

	// OutputFormatJSON outputs in JSON format
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new printer with the specified format
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintFields prints a flat record. Text output lists the keys in the
// given order, JSON output emits an object.
func (p *Printer) PrintFields(title string, keys []string, values map[string]interface{}) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(values)
	case OutputFormatText:
		if title != "" {
			fmt.Fprintf(p.writer, "%s:\n", title)
		}
		width := 0
		for _, k := range keys {
			if len(k) > width {
				width = len(k)
			}
		}
		for _, k := range keys {
			fmt.Fprintf(p.writer, "  %-*s %v\n", width+1, k+":", values[k])
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintList prints a named list of strings.
func (p *Printer) PrintList(name string, items []string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{name: items})
	case OutputFormatText:
		for _, item := range items {
			fmt.Fprintln(p.writer, item)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintValue prints a single named value.
func (p *Printer) PrintValue(name, value string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{name: value})
	case OutputFormatText:
		fmt.Fprintln(p.writer, value)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintDocument prints v as indented JSON in either format. Used for
// records meant to be fed back into another command.
func (p *Printer) PrintDocument(v interface{}) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatText:
		return p.printJSON(v)
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSteps prints the outcome of each named step.
func (p *Printer) PrintSteps(steps map[string]string) error {
	names := make([]string, 0, len(steps))
	for name := range steps {
		names = append(names, name)
	}
	sort.Strings(names)

	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"steps": steps})
	case OutputFormatText:
		for _, name := range names {
			fmt.Fprintf(p.writer, "%-24s %s\n", name, steps[name])
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(v interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
