package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/config"
	"github.com/formdeck/formdeck/database"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/model"
)

// setupTestApp opens a throwaway on-disk database with the full migrated
// schema. Foreign keys are forced on for every pooled connection so cascade
// behavior is the same as in production.
func setupTestApp(t *testing.T) app.App {
	t.Helper()

	cfg := config.Config{
		DBUrl:       filepath.Join(t.TempDir(), "formdeck_test.sqlite") + "?_foreign_keys=on",
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
		RateLimit:   1000,
		RateWindow:  time.Minute,
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
	}
}

// newRequest builds a request carrying chi URL params, the way the router
// would hand it to a handler.
func newRequest(t *testing.T, method, target string, body any, params map[string]string) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	r := httptest.NewRequest(method, target, reader)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
}

// insertForm writes a form and its fields straight into the store and
// returns it with all generated ids filled in.
func insertForm(t *testing.T, a app.App, form model.Form) model.Form {
	t.Helper()
	ctx := context.Background()

	tags, err := marshalStrings(form.Tags)
	if err != nil {
		t.Fatalf("failed to marshal tags: %v", err)
	}
	err = a.QueryRowContext(ctx, `
		INSERT INTO form (title, description, status, tags, max_submissions, prevent_duplicates)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, version`,
		form.Title, form.Description, form.Status, tags,
		form.Settings.MaxSubmissions, form.Settings.PreventDuplicates,
	).Scan(&form.ID, &form.Version)
	if err != nil {
		t.Fatalf("failed to insert form: %v", err)
	}

	for i := range form.Fields {
		f := &form.Fields[i]
		f.FormID = form.ID
		f.Order = i
		options, err := marshalStrings(f.Options)
		if err != nil {
			t.Fatalf("failed to marshal options: %v", err)
		}
		err = a.QueryRowContext(ctx, `
			INSERT INTO form_field (form_id, type, label, placeholder, required, options, position, settings)
			VALUES (?, ?, ?, ?, ?, ?, ?, '{}')
			RETURNING id`,
			form.ID, f.Type, f.Label, f.Placeholder, f.Required, options, i,
		).Scan(&f.ID)
		if err != nil {
			t.Fatalf("failed to insert field: %v", err)
		}
	}

	return form
}

// insertResponse writes a response with its values, bypassing validation.
func insertResponse(t *testing.T, a app.App, formID int, email string, values []model.ResponseFieldValue) int {
	t.Helper()
	ctx := context.Background()

	var responseID int
	err := a.QueryRowContext(ctx, `
		INSERT INTO form_response (form_id, respondent_email, status, submitted_at, ip, user_agent)
		VALUES (?, ?, 'new', ?, '127.0.0.1', 'test')
		RETURNING id`,
		formID, email, time.Now().UTC(),
	).Scan(&responseID)
	if err != nil {
		t.Fatalf("failed to insert response: %v", err)
	}

	for _, v := range values {
		_, err = a.ExecContext(ctx, `
			INSERT INTO response_field_value (response_id, field_id, value)
			VALUES (?, ?, ?)`,
			responseID, v.FieldID, v.Value,
		)
		if err != nil {
			t.Fatalf("failed to insert response value: %v", err)
		}
	}
	return responseID
}

func countRows(t *testing.T, a app.App, table string) int {
	t.Helper()
	var n int
	err := a.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n)
	if err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
