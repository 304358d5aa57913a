package httpx

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/formdeck/formdeck/config"
)

func NewBearerServer(db *sql.DB, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(db), nil)
}
