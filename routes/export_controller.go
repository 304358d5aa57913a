package routes

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/export"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/log"
	"github.com/formdeck/formdeck/model"
)

var reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// exportFormat resolves the format query parameter to content type and file
// extension. Excel accepts the same delimited body under its own MIME type.
func exportFormat(r *http.Request) (contentType, extension string, ok bool) {
	switch r.URL.Query().Get("format") {
	case "", "csv":
		return "text/csv; charset=utf-8", "csv", true
	case "excel":
		return "application/vnd.ms-excel", "xls", true
	}
	return "", "", false
}

func exportOptions(r *http.Request, label string) export.Options {
	return export.Options{
		IncludeMetadata: r.URL.Query().Get("metadata") == "true",
		IncludeIP:       r.URL.Query().Get("ip") == "true",
		DateRangeLabel:  label,
	}
}

func writeAttachment(w http.ResponseWriter, contentType, filename, body string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write([]byte(body))
}

func ExportResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		contentType, extension, ok := exportFormat(r)
		if !ok {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "export.format", "format must be csv or excel")
			return
		}

		form, err := fetchForm(r.Context(), app.DB, formId)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "export.form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.export.form", err)
			return
		}

		filter, label := parseResponseFilter(r)
		responses, err := fetchResponses(r.Context(), app.DB, formId, filter)
		if err != nil {
			httpx.LogInternalError(w, r, "db.export.responses", err)
			return
		}

		body := export.SingleForm(form, responses, exportOptions(r, label))

		title := reUnsafeFilename.ReplaceAllString(strings.ToLower(form.Title), "-")
		filename := fmt.Sprintf("%s-responses-%s.%s",
			strings.Trim(title, "-"),
			time.Now().UTC().Format("2006-01-02"),
			extension,
		)
		writeAttachment(w, contentType, filename, body)
	}
}

// ExportAllResponses exports across every form; columns become the sorted
// union of field labels.
func ExportAllResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentType, extension, ok := exportFormat(r)
		if !ok {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "export.format", "format must be csv or excel")
			return
		}

		rows, err := app.QueryContext(r.Context(), `SELECT id FROM form ORDER BY id`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.export_all.forms", err)
			return
		}
		defer rows.Close()

		var formIds []int
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				httpx.LogInternalError(w, r, "db.export_all.forms.scan", err)
				return
			}
			formIds = append(formIds, id)
		}
		if err := rows.Err(); err != nil {
			httpx.LogInternalError(w, r, "db.export_all.forms.err", err)
			return
		}

		filter, label := parseResponseFilter(r)
		var forms []model.Form
		var responses []model.FormResponse
		for _, formId := range formIds {
			form, err := fetchForm(r.Context(), app.DB, formId)
			if err != nil {
				httpx.LogInternalError(w, r, "db.export_all.form", err)
				return
			}
			forms = append(forms, form)

			formResponses, err := fetchResponses(r.Context(), app.DB, formId, filter)
			if err != nil {
				httpx.LogInternalError(w, r, "db.export_all.responses", err)
				return
			}
			responses = append(responses, formResponses...)
		}

		body := export.CrossForm(forms, responses, exportOptions(r, label))

		filename := fmt.Sprintf("responses-%s.%s", time.Now().UTC().Format("2006-01-02"), extension)
		writeAttachment(w, contentType, filename, body)
	}
}
