package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/formdeck/formdeck/config"
)

// App bundles what every controller needs.
type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
}
