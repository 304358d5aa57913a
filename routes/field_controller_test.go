package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/formdeck/formdeck/field"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/model"
)

func fieldParams(formID int) map[string]string {
	return map[string]string{"id": strconv.Itoa(formID)}
}

func TestCreateFieldChoiceNeedsOptions(t *testing.T) {
	a := setupTestApp(t)
	form := insertForm(t, a, model.Form{Title: "F", Status: model.StatusDraft})
	handler := CreateField(a)

	rec := httptest.NewRecorder()
	handler(rec, newRequest(t, "POST", "/", model.FormField{
		Type:  field.Dropdown,
		Label: "Plan",
	}, fieldParams(form.ID)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body httpx.ErrorBody
	decodeBody(t, rec, &body)
	if len(body.Details) != 1 {
		t.Errorf("details = %v", body.Details)
	}

	rec = httptest.NewRecorder()
	handler(rec, newRequest(t, "POST", "/", model.FormField{
		Type:    field.Dropdown,
		Label:   "Plan",
		Options: []string{"Basic"},
	}, fieldParams(form.ID)))
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
}

func TestCreateFieldAppendsAtEnd(t *testing.T) {
	a := setupTestApp(t)
	form := insertForm(t, a, model.Form{
		Title:  "F",
		Status: model.StatusDraft,
		Fields: []model.FormField{
			{Type: field.ShortText, Label: "A"},
			{Type: field.ShortText, Label: "B"},
		},
	})
	handler := CreateField(a)

	rec := httptest.NewRecorder()
	handler(rec, newRequest(t, "POST", "/", model.FormField{
		Type:  field.ShortText,
		Label: "C",
	}, fieldParams(form.ID)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	fields, err := fetchFields(context.Background(), a.DB, form.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 3 || fields[2].Label != "C" || fields[2].Order != 2 {
		t.Errorf("fields = %+v", fields)
	}
}

func TestReorderFields(t *testing.T) {
	a := setupTestApp(t)
	form := insertForm(t, a, model.Form{
		Title:  "F",
		Status: model.StatusPublished,
		Fields: []model.FormField{
			{Type: field.ShortText, Label: "A"},
			{Type: field.ShortText, Label: "B"},
			{Type: field.ShortText, Label: "C"},
		},
	})
	aID, bID, cID := form.Fields[0].ID, form.Fields[1].ID, form.Fields[2].ID
	handler := ReorderFields(a)

	rec := httptest.NewRecorder()
	handler(rec, newRequest(t, "PUT", "/", map[string]any{
		"fieldIds": []int{cID, aID, bID},
	}, fieldParams(form.ID)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	fields, err := fetchFields(context.Background(), a.DB, form.ID)
	if err != nil {
		t.Fatal(err)
	}
	wantLabels := []string{"C", "A", "B"}
	for i, f := range fields {
		if f.Label != wantLabels[i] || f.Order != i {
			t.Errorf("fields[%d] = %q at position %d, want %q at %d", i, f.Label, f.Order, wantLabels[i], i)
		}
	}
}

func TestReorderFieldsRejectsPartialOrdering(t *testing.T) {
	a := setupTestApp(t)
	form := insertForm(t, a, model.Form{
		Title:  "F",
		Status: model.StatusDraft,
		Fields: []model.FormField{
			{Type: field.ShortText, Label: "A"},
			{Type: field.ShortText, Label: "B"},
		},
	})
	handler := ReorderFields(a)

	tests := []struct {
		name     string
		fieldIds []int
	}{
		{"missing field", []int{form.Fields[0].ID}},
		{"duplicate field", []int{form.Fields[0].ID, form.Fields[0].ID}},
		{"foreign field", []int{form.Fields[0].ID, 9999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, newRequest(t, "PUT", "/", map[string]any{
				"fieldIds": tt.fieldIds,
			}, fieldParams(form.ID)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestDeleteFieldRenumbersAndKeepsValues(t *testing.T) {
	a := setupTestApp(t)
	form := insertForm(t, a, model.Form{
		Title:  "F",
		Status: model.StatusPublished,
		Fields: []model.FormField{
			{Type: field.ShortText, Label: "A"},
			{Type: field.ShortText, Label: "B"},
			{Type: field.ShortText, Label: "C"},
		},
	})
	bID := form.Fields[1].ID
	insertResponse(t, a, form.ID, "", []model.ResponseFieldValue{{FieldID: bID, Value: "answer"}})

	handler := DeleteField(a)
	rec := httptest.NewRecorder()
	handler(rec, newRequest(t, "DELETE", "/", nil, map[string]string{
		"id":      strconv.Itoa(form.ID),
		"fieldId": strconv.Itoa(bID),
	}))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	fields, err := fetchFields(context.Background(), a.DB, form.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 {
		t.Fatalf("fields = %+v", fields)
	}
	for i, f := range fields {
		if f.Order != i {
			t.Errorf("position gap after delete: fields[%d].Order = %d", i, f.Order)
		}
	}

	// the orphaned historic value must survive the field
	if got := countRows(t, a, "response_field_value"); got != 1 {
		t.Errorf("historic value deleted with its field (%d left)", got)
	}
}
