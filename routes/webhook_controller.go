package routes

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/log"
	"github.com/formdeck/formdeck/model"
)

type webhook struct {
	ID      int    `json:"id"`
	FormID  int    `json:"formId"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

func CreateWebhook(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		hook := webhook{Enabled: true}
		err = render.DecodeJSON(r.Body, &hook)
		if err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "malformed request body")
			return
		}
		u, err := url.Parse(hook.URL)
		if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "create_webhook.url", "url must be an absolute http(s) URL")
			return
		}

		var exists int
		err = app.QueryRowContext(r.Context(), `SELECT 1 FROM form WHERE id = ?`, formId).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "create_webhook.form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.create_webhook.form", err)
			return
		}

		var hookId int
		err = app.QueryRowContext(r.Context(), `
			INSERT INTO webhook (form_id, url, enabled)
			VALUES (?, ?, ?)
			RETURNING id`,
			formId, hook.URL, hook.Enabled,
		).Scan(&hookId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.create_webhook", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": hookId,
		})
	}
}

func ListWebhooks(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT id, form_id, url, enabled
			FROM webhook
			WHERE form_id = ?
			ORDER BY id`,
			formId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_webhooks", err)
			return
		}
		defer rows.Close()

		hooks := []webhook{}
		for rows.Next() {
			h := webhook{}
			err = rows.Scan(&h.ID, &h.FormID, &h.URL, &h.Enabled)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_webhooks.scan", err)
				return
			}
			hooks = append(hooks, h)
		}

		render.JSON(w, r, map[string]any{
			"webhooks": hooks,
		})
	}
}

func DeleteWebhook(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hookId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			DELETE FROM webhook WHERE id = ?`,
			hookId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_webhook", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_webhook.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_webhook", hookId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

var webhookClient = &http.Client{Timeout: 5 * time.Second}

// notifyWebhooks delivers an accepted submission to the form's enabled
// webhooks. Delivery is best-effort with no retry; failures are logged and
// never affect the submission response.
func notifyWebhooks(app app.App, form model.Form, responseId int, submittedAt time.Time, values []model.ResponseFieldValue) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := app.QueryContext(ctx, `
		SELECT url FROM webhook
		WHERE form_id = ?
			AND enabled`,
		form.ID,
	)
	if err != nil {
		log.Errorf("webhook.list: %s", err)
		return
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			log.Errorf("webhook.list.scan: %s", err)
			return
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"event":       "response.created",
		"eventId":     uuid.NewString(),
		"formId":      form.ID,
		"formTitle":   form.Title,
		"responseId":  responseId,
		"submittedAt": submittedAt,
		"values":      values,
	})
	if err != nil {
		log.Errorf("webhook.payload: %s", err)
		return
	}

	for _, u := range urls {
		resp, err := webhookClient.Post(u, "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Warnf("webhook.deliver %s: %s", u, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Warnf("webhook.deliver %s: status %d", u, resp.StatusCode)
		}
	}
}
