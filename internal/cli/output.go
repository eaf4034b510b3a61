package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blockedby/mailmerge/internal/models"
	"github.com/blockedby/mailmerge/internal/validation"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeReport(w io.Writer, format string, r validation.Report) error {
	if format != "" && format != FormatTable {
		return writeStructured(w, format, r)
	}

	status := "OK"
	if !r.OK {
		status = "INVALID"
	}
	_, _ = fmt.Fprintf(w, "%s: %d rows, %d valid recipients, %d invalid\n",
		status, r.Stats.Total, r.Stats.ValidRecipients, r.Stats.InvalidRecipients)
	for _, e := range r.Errors {
		_, _ = fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, warn := range r.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

func writeResults(w io.Writer, format string, results []models.Result) error {
	if format != "" && format != FormatTable {
		return writeStructured(w, format, results)
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tTIME\tRECIPIENT\tSTATUS\tSUBJECT\tREASON")
	for i, r := range results {
		reason := r.Reason
		if reason == "" {
			reason = "-"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Timestamp.Local().Format(time.TimeOnly), r.Recipient, r.Status, oneLine(r.Subject), reason)
	}
	return tw.Flush()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}
