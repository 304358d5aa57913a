package routes

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/formdeck/formdeck/field"
	"github.com/formdeck/formdeck/model"
)

func TestExportResponses(t *testing.T) {
	a := setupTestApp(t)
	form := insertForm(t, a, model.Form{
		Title:  "Customer Survey",
		Status: model.StatusPublished,
		Fields: []model.FormField{
			{Type: field.ShortText, Label: "Name"},
		},
	})
	insertResponse(t, a, form.ID, "a@example.com", []model.ResponseFieldValue{
		{FieldID: form.Fields[0].ID, Value: "Ada"},
	})
	params := map[string]string{"id": strconv.Itoa(form.ID)}
	handler := ExportResponses(a)

	t.Run("csv", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, newRequest(t, "GET", "/?format=csv", nil, params))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
			t.Errorf("content type = %q", ct)
		}
		cd := rec.Header().Get("Content-Disposition")
		if !strings.HasPrefix(cd, `attachment; filename="customer-survey-responses-`) ||
			!strings.HasSuffix(cd, `.csv"`) {
			t.Errorf("content disposition = %q", cd)
		}

		body := rec.Body.String()
		if !strings.HasPrefix(body, "# Form: Customer Survey\n") {
			t.Errorf("body = %q", body)
		}
		if !strings.Contains(body, "\nName\nAda") {
			t.Errorf("body missing header and row: %q", body)
		}
		if strings.HasSuffix(body, "\n") {
			t.Error("body has a trailing newline")
		}
	})

	t.Run("excel", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, newRequest(t, "GET", "/?format=excel", nil, params))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.ms-excel" {
			t.Errorf("content type = %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.HasSuffix(cd, `.xls"`) {
			t.Errorf("content disposition = %q", cd)
		}
	})

	t.Run("metadata columns", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, newRequest(t, "GET", "/?metadata=true", nil, params))
		body := rec.Body.String()
		if !strings.Contains(body, "Response ID,Form ID,Respondent Email,Status,Submitted At,Name") {
			t.Errorf("metadata header missing: %q", body)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, newRequest(t, "GET", "/?format=pdf", nil, params))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown form", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, newRequest(t, "GET", "/", nil, map[string]string{"id": "9999"}))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestExportAllResponses(t *testing.T) {
	a := setupTestApp(t)
	first := insertForm(t, a, model.Form{
		Title:  "First",
		Status: model.StatusPublished,
		Fields: []model.FormField{{Type: field.ShortText, Label: "Name"}},
	})
	second := insertForm(t, a, model.Form{
		Title:  "Second",
		Status: model.StatusPublished,
		Fields: []model.FormField{{Type: field.Number, Label: "Age"}},
	})
	insertResponse(t, a, first.ID, "", []model.ResponseFieldValue{
		{FieldID: first.Fields[0].ID, Value: "Ada"},
	})
	insertResponse(t, a, second.ID, "", []model.ResponseFieldValue{
		{FieldID: second.Fields[0].ID, Value: "30"},
	})

	rec := httptest.NewRecorder()
	ExportAllResponses(a)(rec, newRequest(t, "GET", "/", nil, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="responses-`) {
		t.Errorf("content disposition = %q", cd)
	}

	lines := strings.Split(rec.Body.String(), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "Age,Name" {
		t.Errorf("header = %q, want sorted label union", lines[0])
	}
	if lines[1] != ",Ada" || lines[2] != "30," {
		t.Errorf("rows = %q", lines[1:])
	}
}
