// Package render formats snapshots and diff results for terminal and file
// output. Three snapshot forms are supported: CSV with a header row, an
// indented JSON document, and caller-supplied format strings using {path}
// style keywords. Diff results render as JSON or a tab-aligned table.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"
	"text/template"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

// DefaultFormat is the record format used when the caller supplies none.
const DefaultFormat = "{path}, {mode}, {uid}, {gid}, {size}, {atime}, {mtime}, {ctime}, {hash}"

// SnapshotCSV writes snap's records as CSV with a header of field names.
func SnapshotCSV(w io.Writer, snap *audit.Snapshot) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(audit.Fields))
	for i, f := range audit.Fields {
		header[i] = string(f)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	row := make([]string, len(audit.Fields))
	for i := range snap.Records {
		r := &snap.Records[i]
		for j, f := range audit.Fields {
			row[j] = audit.FieldValue(r, f)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", r.Path, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SnapshotJSON writes the full snapshot, records and skips included, as an
// indented JSON document.
func SnapshotJSON(w io.Writer, snap *audit.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

var keywordPattern = regexp.MustCompile(`\{([a-z]+)\}`)

// RecordTemplate renders file records through a user format string whose
// {path} style keywords name record fields.
type RecordTemplate struct {
	tmpl *template.Template
}

// NewRecordTemplate compiles format, rejecting unknown keywords.
func NewRecordTemplate(format string) (*RecordTemplate, error) {
	var unknown string
	body := keywordPattern.ReplaceAllStringFunc(format, func(m string) string {
		name := strings.Trim(m, "{}")
		if !knownField(name) {
			if unknown == "" {
				unknown = name
			}
			return m
		}
		return `{{field . "` + name + `"}}`
	})
	if unknown != "" {
		return nil, audit.NewConfigError("unknown format keyword: %q", unknown)
	}

	tmpl, err := template.New("record").Funcs(template.FuncMap{
		"field": func(r *audit.FileRecord, name string) string {
			return audit.FieldValue(r, audit.Field(name))
		},
	}).Parse(body)
	if err != nil {
		return nil, audit.NewConfigError("invalid format string: %v", err)
	}
	return &RecordTemplate{tmpl: tmpl}, nil
}

// Render writes one formatted line for r.
func (t *RecordTemplate) Render(w io.Writer, r *audit.FileRecord) error {
	if err := t.tmpl.Execute(w, r); err != nil {
		return fmt.Errorf("rendering record %s: %w", r.Path, err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// SnapshotTemplate writes every record in snap through format, one line each.
func SnapshotTemplate(w io.Writer, snap *audit.Snapshot, format string) error {
	tmpl, err := NewRecordTemplate(format)
	if err != nil {
		return err
	}
	for i := range snap.Records {
		if err := tmpl.Render(w, &snap.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

func knownField(name string) bool {
	for _, f := range audit.Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// DiffJSON writes the diff results as an indented JSON array.
func DiffJSON(w io.Writer, results []audit.DiffResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encoding diff results: %w", err)
	}
	return nil
}

// DiffTable writes a tab-aligned table of diff results. Unchanged paths are
// omitted unless showUnchanged is set. Changed fields print before and after
// values; a hash compared across algorithms is marked incomparable.
func DiffTable(w io.Writer, results []audit.DiffResult, showUnchanged bool) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tOUTCOME\tCHANGES")

	for _, res := range results {
		if res.Outcome == audit.Unchanged && !showUnchanged {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Path, res.Outcome, formatChanges(res.Changes))
	}
	return tw.Flush()
}

func formatChanges(changes []audit.FieldChange) string {
	if len(changes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.Incomparable {
			parts = append(parts, fmt.Sprintf("%s: %s vs %s (incomparable)", c.Field, c.Before, c.After))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", c.Field, c.Before, c.After))
	}
	return strings.Join(parts, "; ")
}
