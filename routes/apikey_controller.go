package routes

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/httpx"
	"github.com/formdeck/formdeck/log"
)

type apiKey struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateApiKey mints a new key. The plaintext token is returned exactly once;
// only its bcrypt hash and a display prefix are stored.
func CreateApiKey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil || strings.TrimSpace(body.Name) == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "create_apikey.name", "name must not be empty")
			return
		}

		token := "fd_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		prefix := token[:11]

		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, r, "create_apikey.hash", err)
			return
		}

		var keyId int
		err = app.QueryRowContext(r.Context(), `
			INSERT INTO api_key (name, prefix, key_hash)
			VALUES (?, ?, ?)
			RETURNING id`,
			body.Name, prefix, string(hash),
		).Scan(&keyId)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_apikey", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":    keyId,
			"name":  body.Name,
			"token": token,
		})
	}
}

func ListApiKeys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT id, name, prefix, created_at
			FROM api_key
			ORDER BY created_at DESC, id DESC`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_apikeys", err)
			return
		}
		defer rows.Close()

		keys := []apiKey{}
		for rows.Next() {
			k := apiKey{}
			err = rows.Scan(&k.ID, &k.Name, &k.Prefix, &k.CreatedAt)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_apikeys.scan", err)
				return
			}
			keys = append(keys, k)
		}

		render.JSON(w, r, map[string]any{
			"apiKeys": keys,
		})
	}
}

func DeleteApiKey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			DELETE FROM api_key WHERE id = ?`,
			keyId,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_apikey", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_apikey.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_apikey", keyId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
