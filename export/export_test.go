package export

import (
	"strings"
	"testing"
	"time"

	"github.com/formdeck/formdeck/field"
	"github.com/formdeck/formdeck/model"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"", ""},
		{"has,comma", `"has,comma"`},
		{`has "quotes"`, `"has ""quotes"""`},
		{"line\nbreak", "\"line\nbreak\""},
		{`Says "hi", bye`, `"Says ""hi"", bye"`},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// unescape reverses Escape the way a spreadsheet parser would, splitting one
// row into cells while respecting quoting.
func splitRow(row string) []string {
	var cells []string
	var cell strings.Builder
	inQuotes := false
	for i := 0; i < len(row); i++ {
		c := row[i]
		switch {
		case inQuotes && c == '"' && i+1 < len(row) && row[i+1] == '"':
			cell.WriteByte('"')
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			cells = append(cells, cell.String())
			cell.Reset()
		default:
			cell.WriteByte(c)
		}
	}
	cells = append(cells, cell.String())
	return cells
}

func TestEscapeRoundTrip(t *testing.T) {
	values := []string{`Says "hi", bye`, "a,b,c", `""`, "plain", "multi\nline"}
	var escaped []string
	for _, v := range values {
		escaped = append(escaped, Escape(v))
	}
	got := splitRow(strings.Join(escaped, ","))
	if len(got) != len(values) {
		t.Fatalf("round-trip produced %d cells, want %d", len(got), len(values))
	}
	for i, v := range values {
		if got[i] != v {
			t.Errorf("cell %d = %q, want %q", i, got[i], v)
		}
	}
}

func exportForm() model.Form {
	return model.Form{
		ID:    1,
		Title: "Feedback, raw",
		Fields: []model.FormField{
			{ID: 10, Type: field.ShortText, Label: "Name", Order: 0},
			{ID: 11, Type: field.LongText, Label: "Comment", Order: 1},
		},
	}
}

func exportResponses() []model.FormResponse {
	return []model.FormResponse{
		{
			ID: 100, FormID: 1, Status: model.ResponseNew,
			RespondentEmail: "a@b.com",
			SubmittedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			IP:              "10.0.0.1",
			Values: []model.ResponseFieldValue{
				{FieldID: 10, Value: "Ada"},
				{FieldID: 11, Value: `Says "hi", bye`},
			},
		},
		{
			ID: 101, FormID: 1, Status: model.ResponseRead,
			SubmittedAt: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC),
			Values: []model.ResponseFieldValue{
				{FieldID: 10, Value: "Bob"},
			},
		},
	}
}

func TestSingleForm(t *testing.T) {
	opts := Options{
		DateRangeLabel: "last 30 days",
		Now:            time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	got := SingleForm(exportForm(), exportResponses(), opts)

	want := strings.Join([]string{
		`# Form: "Feedback, raw"`,
		"# Exported: 2024-07-01T00:00:00Z",
		"# Responses: 2",
		"# Date range: last 30 days",
		"Name,Comment",
		`Ada,"Says ""hi"", bye"`,
		"Bob,",
	}, "\n")
	if got != want {
		t.Errorf("SingleForm =\n%s\nwant\n%s", got, want)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("document has a trailing newline")
	}
}

func TestSingleFormMetadata(t *testing.T) {
	opts := Options{
		IncludeMetadata: true,
		IncludeIP:       true,
		Now:             time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	got := SingleForm(exportForm(), exportResponses(), opts)
	lines := strings.Split(got, "\n")

	header := "Response ID,Form ID,Respondent Email,Status,Submitted At,IP,Name,Comment"
	if lines[3] != header {
		t.Errorf("header = %q, want %q", lines[3], header)
	}
	firstRow := `100,1,a@b.com,new,2024-06-01T12:00:00Z,10.0.0.1,Ada,"Says ""hi"", bye"`
	if lines[4] != firstRow {
		t.Errorf("row = %q, want %q", lines[4], firstRow)
	}
}

func TestCrossForm(t *testing.T) {
	forms := []model.Form{
		exportForm(),
		{
			ID:    2,
			Title: "Other",
			Fields: []model.FormField{
				{ID: 20, Type: field.ShortText, Label: "Age"},
			},
		},
	}
	responses := append(exportResponses(), model.FormResponse{
		ID: 200, FormID: 2, Status: model.ResponseNew,
		SubmittedAt: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Values: []model.ResponseFieldValue{
			{FieldID: 20, Value: "30"},
			{FieldID: 999, Value: "orphaned"}, // field deleted since
		},
	})

	got := CrossForm(forms, responses, Options{})
	lines := strings.Split(got, "\n")

	// Labels sorted lexicographically; the orphaned value's missing
	// field metadata becomes an empty label, sorting first.
	if lines[0] != ",Age,Comment,Name" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[3] != "orphaned,30,," {
		t.Errorf("orphan row = %q", lines[3])
	}
}

func TestCrossFormMetadataTitle(t *testing.T) {
	got := CrossForm([]model.Form{exportForm()}, exportResponses()[:1], Options{IncludeMetadata: true})
	lines := strings.Split(got, "\n")
	if !strings.Contains(lines[0], "Form Title") {
		t.Errorf("cross-form metadata header missing form title: %q", lines[0])
	}
	if !strings.Contains(lines[1], `"Feedback, raw"`) {
		t.Errorf("row missing escaped form title: %q", lines[1])
	}
}

func TestAggregate(t *testing.T) {
	form := exportForm()
	form.Fields = append(form.Fields, model.FormField{ID: 12, Type: field.Section, Label: "Intro"})

	responses := exportResponses()
	responses = append(responses, model.FormResponse{
		ID: 102, FormID: 1, Status: model.ResponseNew,
		SubmittedAt: time.Date(2024, 6, 2, 23, 0, 0, 0, time.UTC),
		Values:      []model.ResponseFieldValue{{FieldID: 10, Value: "Cy"}},
	})

	a := Aggregate(form, responses)

	if a.Total != 3 {
		t.Errorf("total = %d, want 3", a.Total)
	}
	wantDays := []DayCount{{"2024-06-01", 1}, {"2024-06-02", 2}}
	if len(a.ByDay) != len(wantDays) {
		t.Fatalf("byDay = %v", a.ByDay)
	}
	for i, w := range wantDays {
		if a.ByDay[i] != w {
			t.Errorf("byDay[%d] = %v, want %v", i, a.ByDay[i], w)
		}
	}
	if a.ByStatus[model.ResponseNew] != 2 || a.ByStatus[model.ResponseRead] != 1 {
		t.Errorf("byStatus = %v", a.ByStatus)
	}
	if len(a.ByField) != 2 {
		t.Fatalf("byField includes sections: %v", a.ByField)
	}
	if a.ByField[0].Answered != 3 || a.ByField[1].Answered != 1 {
		t.Errorf("byField counts = %v", a.ByField)
	}
}
