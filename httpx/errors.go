package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/formdeck/formdeck/log"
)

// ErrorBody is the JSON shape of every user-facing failure.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// Will log an error, and send a generic JSON 500 body
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorBody{Error: http.StatusText(http.StatusInternalServerError)})
}

// Will log a debug message, and send a JSON 404 body
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrorBody{Error: "not found"})
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// Will log an error code and message at the given level,
// and send a JSON error body with the given status
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: errMsg})
}

// Will log an error code at the given level, and send a JSON error body
// carrying the full detail list
func LogErrorDetails(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, details []string) {
	log.Log(level, code+":", details)
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: msg, Details: details})
}
