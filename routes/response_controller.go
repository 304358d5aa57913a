package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/export"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/log"
	"github.com/formdeck/formdeck/model"
)

// parseResponseFilter reads the shared listing/export query parameters:
// status, range (7d|30d|90d), search. The label is empty when no range was
// requested.
func parseResponseFilter(r *http.Request) (responseFilter, string) {
	filter := responseFilter{
		Status: model.ResponseStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}

	rangeParam := r.URL.Query().Get("range")
	var label string
	var days int
	switch rangeParam {
	case "7d":
		days, label = 7, "last 7 days"
	case "30d":
		days, label = 30, "last 30 days"
	case "90d":
		days, label = 90, "last 90 days"
	}
	if days > 0 {
		filter.Since = time.Now().UTC().AddDate(0, 0, -days)
	}
	return filter, label
}

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var exists int
		err = app.QueryRowContext(r.Context(), `SELECT 1 FROM form WHERE id = ?`, formId).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_responses.form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_responses.form", err)
			return
		}

		filter, _ := parseResponseFilter(r)
		responses, err := fetchResponses(r.Context(), app.DB, formId, filter)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_responses", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}

func UpdateResponseStatus(app app.App) http.HandlerFunc {
	valid := map[model.ResponseStatus]bool{
		model.ResponseNew:      true,
		model.ResponseRead:     true,
		model.ResponseFlagged:  true,
		model.ResponseArchived: true,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		responseId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Status model.ResponseStatus `json:"status"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil || !valid[body.Status] {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_response_status.parse", "status must be new, read, flagged or archived")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			UPDATE form_response SET status = ? WHERE id = ?`,
			body.Status, responseId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_response_status", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_response_status.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "update_response_status", responseId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responseId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		// values cascade with the response
		res, err := app.ExecContext(r.Context(), `
			DELETE FROM form_response WHERE id = ?`,
			responseId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_response", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_response.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_response", responseId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func GetFormAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		form, err := fetchForm(r.Context(), app.DB, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_analytics.form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_analytics.form", err)
			return
		}

		filter, _ := parseResponseFilter(r)
		responses, err := fetchResponses(r.Context(), app.DB, formId, filter)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_analytics.responses", err)
			return
		}

		render.JSON(w, r, export.Aggregate(form, responses))
	}
}
