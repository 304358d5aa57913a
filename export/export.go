// Package export turns stored responses into delimited text documents and
// dashboard aggregates. The escaping rule is the one wire contract here:
// spreadsheet programs parse the output literally.
package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/formdeck/formdeck/model"
)

type Options struct {
	// IncludeMetadata prepends response id, form id/title, respondent
	// email, status and submission timestamp columns.
	IncludeMetadata bool
	// IncludeIP appends the captured client IP to the metadata columns.
	IncludeIP bool
	// DateRangeLabel is echoed in the single-form summary block.
	DateRangeLabel string
	// Now stamps the summary block; zero means time.Now.
	Now time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}
	return o.Now
}

// Escape quotes v when it contains the delimiter, a quote or a line break,
// doubling internal quotes. Values that need no quoting pass through
// unchanged.
func Escape(v string) string {
	if strings.ContainsAny(v, ",\"\n\r") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}

// SingleForm renders responses of one form. Columns follow the form's field
// order and cells are looked up by field id; a summary block prefixed with
// '#' precedes the header.
func SingleForm(form model.Form, responses []model.FormResponse, opts Options) string {
	var lines []string
	lines = append(lines,
		"# Form: "+Escape(form.Title),
		"# Exported: "+opts.now().Format(time.RFC3339),
		fmt.Sprintf("# Responses: %d", len(responses)),
	)
	if opts.DateRangeLabel != "" {
		lines = append(lines, "# Date range: "+opts.DateRangeLabel)
	}

	header := metadataHeader(opts, false)
	for _, f := range form.Fields {
		header = append(header, Escape(f.Label))
	}
	lines = append(lines, strings.Join(header, ","))

	for _, resp := range responses {
		byField := make(map[int]string, len(resp.Values))
		for _, v := range resp.Values {
			if _, seen := byField[v.FieldID]; !seen {
				byField[v.FieldID] = v.Value
			}
		}

		row := metadataCells(resp, "", opts, false)
		for _, f := range form.Fields {
			row = append(row, Escape(byField[f.ID]))
		}
		lines = append(lines, strings.Join(row, ","))
	}

	return strings.Join(lines, "\n")
}

// CrossForm renders responses spanning several forms. Columns are the
// lexicographically sorted union of field labels; cells are looked up by
// label. Values whose field was deleted keep an empty label.
func CrossForm(forms []model.Form, responses []model.FormResponse, opts Options) string {
	labelByField := make(map[int]string)
	titleByForm := make(map[int]string, len(forms))
	for _, form := range forms {
		titleByForm[form.ID] = form.Title
		for _, f := range form.Fields {
			labelByField[f.ID] = f.Label
		}
	}

	seen := make(map[string]bool)
	var labels []string
	for _, resp := range responses {
		for _, v := range resp.Values {
			label := labelByField[v.FieldID]
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}
	sort.Strings(labels)

	header := metadataHeader(opts, true)
	for _, label := range labels {
		header = append(header, Escape(label))
	}
	lines := []string{strings.Join(header, ",")}

	for _, resp := range responses {
		byLabel := make(map[string]string, len(resp.Values))
		for _, v := range resp.Values {
			label := labelByField[v.FieldID]
			if _, ok := byLabel[label]; !ok {
				byLabel[label] = v.Value
			}
		}

		row := metadataCells(resp, titleByForm[resp.FormID], opts, true)
		for _, label := range labels {
			row = append(row, Escape(byLabel[label]))
		}
		lines = append(lines, strings.Join(row, ","))
	}

	return strings.Join(lines, "\n")
}

func metadataHeader(opts Options, crossForm bool) []string {
	if !opts.IncludeMetadata {
		return nil
	}
	header := []string{"Response ID", "Form ID"}
	if crossForm {
		header = append(header, "Form Title")
	}
	header = append(header, "Respondent Email", "Status", "Submitted At")
	if opts.IncludeIP {
		header = append(header, "IP")
	}
	return header
}

func metadataCells(resp model.FormResponse, formTitle string, opts Options, crossForm bool) []string {
	if !opts.IncludeMetadata {
		return nil
	}
	row := []string{
		fmt.Sprintf("%d", resp.ID),
		fmt.Sprintf("%d", resp.FormID),
	}
	if crossForm {
		row = append(row, Escape(formTitle))
	}
	row = append(row,
		Escape(resp.RespondentEmail),
		string(resp.Status),
		resp.SubmittedAt.Format(time.RFC3339),
	)
	if opts.IncludeIP {
		row = append(row, Escape(resp.IP))
	}
	return row
}
