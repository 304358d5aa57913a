package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/log"
	"github.com/formdeck/formdeck/model"
	"github.com/formdeck/formdeck/submission"
)

// PublicGetFormById serves the published definition a respondent renders.
// Draft and archived forms are not exposed.
func PublicGetFormById(app app.App) http.HandlerFunc {
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
		if form.Status != model.StatusPublished {
			httpx.LogNotFound(w, r, "get_form.unpublished", formId)
			return
		}

		render.JSON(w, r, form)
	}
}

func PublicSubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		req := submission.Request{}
		err = render.DecodeJSON(r.Body, &req)
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

		form, err := fetchForm(r.Context(), tx, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		accepted, err := submission.Validate(r.Context(), submissionStore{tx}, form, req)
		var verr *submission.ValidationError
		switch {
		case errors.Is(err, submission.ErrNotPublished):
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "submit.not_published", "form is not accepting submissions")
			return
		case errors.Is(err, submission.ErrSubmissionLimit):
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "submit.limit_reached", "submission limit reached")
			return
		case errors.As(err, &verr):
			httpx.LogErrorDetails(w, r, http.StatusBadRequest, log.DebugLevel, "submit.invalid", "validation failed", verr.Details)
			return
		case err != nil:
			httpx.LogInternalError(w, r, "submit.validate", err)
			return
		}

		submittedAt := time.Now().UTC()
		ip := strings.Split(r.RemoteAddr, ":")[0]

		var responseId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO form_response (form_id, respondent_email, status, submitted_at, ip, user_agent)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`,
			formId,
			accepted.RespondentEmail,
			accepted.Status,
			submittedAt,
			ip,
			r.UserAgent(),
		).Scan(&responseId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO response_field_value (response_id, field_id, value)
			VALUES (?, ?, ?)`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response.values.prepare", err)
			return
		}
		defer stmt.Close()

		for _, v := range accepted.Values {
			_, err = stmt.ExecContext(r.Context(), responseId, v.FieldID, v.Value)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_response.values.insert", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response.commit", err)
			return
		}

		notifyWebhooks(app, form, responseId, submittedAt, accepted.Values)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"responseId":  responseId,
			"submittedAt": submittedAt,
		})
	}
}
