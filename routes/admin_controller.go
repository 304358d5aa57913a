package routes

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/field"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/log"
	"github.com/formdeck/formdeck/model"
)

// checkField enforces the server-side field invariants shared by create and
// update: known type, non-empty label, at least one option for choice types.
func checkField(f model.FormField) []string {
	var problems []string
	if !field.Known(f.Type) {
		problems = append(problems, fmt.Sprintf("unknown field type %q", f.Type))
	}
	if f.Label == "" {
		problems = append(problems, "field label must not be empty")
	}
	if field.Known(f.Type) {
		if field.AcceptsOptions(f.Type) && len(f.Options) == 0 {
			problems = append(problems, fmt.Sprintf("%q fields need at least one option", f.Type))
		}
		if !field.AcceptsOptions(f.Type) && len(f.Options) > 0 {
			problems = append(problems, fmt.Sprintf("%q fields do not take options", f.Type))
		}
	}
	return problems
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := model.Form{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "malformed request body")
			return
		}

		var problems []string
		if form.Title == "" {
			problems = append(problems, "title must not be empty")
		}
		if max := form.Settings.MaxSubmissions; max != nil && *max < 1 {
			problems = append(problems, "maxSubmissions must be positive")
		}
		for _, f := range form.Fields {
			problems = append(problems, checkField(f)...)
		}
		if len(problems) > 0 {
			httpx.LogErrorDetails(w, r, http.StatusBadRequest, log.DebugLevel, "create_form.invalid", "invalid form", problems)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		tags, err := marshalStrings(form.Tags)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.tags", err)
			return
		}

		var formId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO form (title, description, status, tags, max_submissions, prevent_duplicates)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`,
			form.Title,
			form.Description,
			model.StatusDraft,
			tags,
			form.Settings.MaxSubmissions,
			form.Settings.PreventDuplicates,
		).Scan(&formId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO form_field (form_id, type, label, placeholder, required, options, position, settings)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.fields.prepare", err)
			return
		}
		defer stmt.Close()

		for i, f := range form.Fields {
			placeholder := f.Placeholder
			if placeholder == "" {
				placeholder = field.DefaultPlaceholder(f.Type)
			}
			options, err := marshalStrings(f.Options)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_form.fields.options", err)
				return
			}
			settings, err := marshalSettings(f.Settings)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_form.fields.settings", err)
				return
			}
			_, err = stmt.ExecContext(r.Context(), formId, f.Type, f.Label, placeholder, f.Required, options, i, settings)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_form.fields.insert", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.commit", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": formId,
		})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT f.id, f.version, f.title, f.description, f.status, f.created_at,
				(SELECT COUNT(*) FROM form_response resp WHERE resp.form_id = f.id)
			FROM form f
			ORDER BY f.created_at DESC, f.id DESC`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_forms", err)
			return
		}
		defer rows.Close()

		type formSummary struct {
			model.Form
			ResponseCount int `json:"responseCount"`
		}
		forms := []formSummary{}
		for rows.Next() {
			s := formSummary{}
			err = rows.Scan(&s.ID, &s.Version, &s.Title, &s.Description, &s.Status, &s.CreatedAt, &s.ResponseCount)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_forms.scan", err)
				return
			}
			forms = append(forms, s)
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := fetchForm(r.Context(), app.DB, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

// UpdateForm changes title, description, tags and settings. Fields are
// managed through their own endpoints so historic response values keep
// their field references.
func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form := model.Form{}
		err = render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "malformed request body")
			return
		}
		if form.Title == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_form.title", "title must not be empty")
			return
		}
		if max := form.Settings.MaxSubmissions; max != nil && *max < 1 {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_form.max_submissions", "maxSubmissions must be positive")
			return
		}

		tags, err := marshalStrings(form.Tags)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.tags", err)
			return
		}

		res, err := app.ExecContext(r.Context(), `
			UPDATE form
			SET
				title = ?,
				description = ?,
				tags = ?,
				max_submissions = ?,
				prevent_duplicates = ?,
				version = version + 1
			WHERE	id = ?
				AND version = ?`,
			form.Title,
			form.Description,
			tags,
			form.Settings.MaxSubmissions,
			form.Settings.PreventDuplicates,
			formId,
			form.Version,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form", err)
			return
		}
		// optimistic lock
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_form.verify.conflict")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func UpdateFormStatus(app app.App) http.HandlerFunc {
	valid := map[model.FormStatus]bool{
		model.StatusDraft:     true,
		model.StatusPublished: true,
		model.StatusArchived:  true,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Status model.FormStatus `json:"status"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil || !valid[body.Status] {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_form_status.parse", "status must be draft, published or archived")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			UPDATE form SET status = ? WHERE id = ?`,
			body.Status, formId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form_status", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form_status.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "update_form_status", formId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		// fields, responses and values go with the form via FK cascade
		res, err := app.ExecContext(r.Context(), `
			DELETE FROM form WHERE id = ?`,
			formId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_form", formId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
