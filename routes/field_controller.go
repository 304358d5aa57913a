package routes

import (
	"context"
	"database/sql"
	"errors"
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

func CreateField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		f := model.FormField{}
		err = render.DecodeJSON(r.Body, &f)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "malformed request body")
			return
		}
		if problems := checkField(f); len(problems) > 0 {
			httpx.LogErrorDetails(w, r, http.StatusBadRequest, log.DebugLevel, "create_field.invalid", "invalid field", problems)
			return
		}

		var exists int
		err = app.QueryRowContext(r.Context(), `SELECT 1 FROM form WHERE id = ?`, formId).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "create_field.form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.create_field.form", err)
			return
		}

		placeholder := f.Placeholder
		if placeholder == "" {
			placeholder = field.DefaultPlaceholder(f.Type)
		}
		options, err := marshalStrings(f.Options)
		if err != nil {
			httpx.LogInternalError(w, r, "db.create_field.options", err)
			return
		}
		settings, err := marshalSettings(f.Settings)
		if err != nil {
			httpx.LogInternalError(w, r, "db.create_field.settings", err)
			return
		}

		// new fields go last
		var fieldId int
		err = app.QueryRowContext(r.Context(), `
			INSERT INTO form_field (form_id, type, label, placeholder, required, options, position, settings)
			VALUES (?, ?, ?, ?, ?, ?,
				(SELECT COUNT(*) FROM form_field WHERE form_id = ?), ?)
			RETURNING id`,
			formId, f.Type, f.Label, placeholder, f.Required, options, formId, settings,
		).Scan(&fieldId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.create_field", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": fieldId,
		})
	}
}

func UpdateField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		fieldId, err := strconv.Atoi(chi.URLParam(r, "fieldId"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.field_id")
			return
		}

		f := model.FormField{}
		err = render.DecodeJSON(r.Body, &f)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "malformed request body")
			return
		}
		if problems := checkField(f); len(problems) > 0 {
			httpx.LogErrorDetails(w, r, http.StatusBadRequest, log.DebugLevel, "update_field.invalid", "invalid field", problems)
			return
		}

		options, err := marshalStrings(f.Options)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field.options", err)
			return
		}
		settings, err := marshalSettings(f.Settings)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field.settings", err)
			return
		}

		res, err := app.ExecContext(r.Context(), `
			UPDATE form_field
			SET
				type = ?,
				label = ?,
				placeholder = ?,
				required = ?,
				options = ?,
				settings = ?
			WHERE	id = ?
				AND form_id = ?`,
			f.Type, f.Label, f.Placeholder, f.Required, options, settings,
			fieldId, formId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "update_field", fieldId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteField removes a field from its form. Historic response values keep
// referencing the dead field id; export renders them under an empty label.
func DeleteField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		fieldId, err := strconv.Atoi(chi.URLParam(r, "fieldId"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.field_id")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(r.Context(), `
			DELETE FROM form_field
			WHERE	id = ?
				AND form_id = ?`,
			fieldId, formId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_field", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_field.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_field", fieldId)
			return
		}

		// close the gap so sibling positions stay contiguous
		err = renumberFields(r.Context(), tx, formId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_field.renumber", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_field.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ReorderFields applies a full ordering in one transaction. The body lists
// every field id of the form in its new order; positions are renumbered
// contiguously from zero.
func ReorderFields(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			FieldIds []int `json:"fieldIds"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "malformed request body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		fields, err := fetchFields(r.Context(), tx, formId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.reorder_fields.fetch", err)
			return
		}

		current := make(map[int]bool, len(fields))
		for _, f := range fields {
			current[f.ID] = true
		}
		if len(body.FieldIds) != len(fields) {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "reorder_fields.count",
				"ordering must list all %d fields", len(fields))
			return
		}
		seen := make(map[int]bool, len(body.FieldIds))
		for _, id := range body.FieldIds {
			if !current[id] || seen[id] {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "reorder_fields.ids",
					"field %d is duplicated or does not belong to this form", id)
				return
			}
			seen[id] = true
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			UPDATE form_field
			SET position = ?
			WHERE	id = ?
				AND form_id = ?`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.reorder_fields.prepare", err)
			return
		}
		defer stmt.Close()

		for position, id := range body.FieldIds {
			_, err = stmt.ExecContext(r.Context(), position, id, formId)
			if err != nil {
				httpx.LogInternalError(w, r, "db.reorder_fields.update", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.reorder_fields.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// renumberFields rewrites positions 0..n-1 preserving the current order.
func renumberFields(ctx context.Context, tx *sql.Tx, formId int) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM form_field
		WHERE form_id = ?
		ORDER BY position`,
		formId,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for position, id := range ids {
		_, err = tx.ExecContext(ctx, `
			UPDATE form_field SET position = ? WHERE id = ?`,
			position, id,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
