package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/formdeck/formdeck/app"
	"github.com/formdeck/formdeck/ratelimit"
	"github.com/formdeck/formdeck/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	root.
		With(middlewares.CookieAuth(app.BearerServer), middlewares.Admin(app.TokenSecret)).
		Mount("/admin", servePrivateFiles("/admin"))
	root.Mount("/", servePublicFiles())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	limiter := ratelimit.NewMemoryCounter()
	api.Route("/forms", func(r chi.Router) {
		r.Use(middlewares.RateLimit(limiter, app.RateLimit, app.RateWindow))
		r.Get(`/{id:^\d+$}`, PublicGetFormById(app))
		r.Post(`/{id:^\d+$}/submissions`, PublicSubmitForm(app))
	})

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		// CRUD form
		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Get(`/forms/{id:^\d+$}`, GetFormById(app))
		r.Put(`/forms/{id:^\d+$}`, UpdateForm(app))
		r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))
		r.Put(`/forms/{id:^\d+$}/status`, UpdateFormStatus(app))

		// CRUD fields
		r.Post(`/forms/{id:^\d+$}/fields`, CreateField(app))
		r.Put(`/forms/{id:^\d+$}/fields/order`, ReorderFields(app))
		r.Put(`/forms/{id:^\d+$}/fields/{fieldId:^\d+$}`, UpdateField(app))
		r.Delete(`/forms/{id:^\d+$}/fields/{fieldId:^\d+$}`, DeleteField(app))

		// responses, analytics, export
		r.Get(`/forms/{id:^\d+$}/responses`, ListResponses(app))
		r.Get(`/forms/{id:^\d+$}/analytics`, GetFormAnalytics(app))
		r.Get(`/forms/{id:^\d+$}/export`, ExportResponses(app))
		r.Get("/export", ExportAllResponses(app))
		r.Put(`/responses/{id:^\d+$}/status`, UpdateResponseStatus(app))
		r.Delete(`/responses/{id:^\d+$}`, DeleteResponse(app))

		// integrations
		r.Post(`/forms/{id:^\d+$}/webhooks`, CreateWebhook(app))
		r.Get(`/forms/{id:^\d+$}/webhooks`, ListWebhooks(app))
		r.Delete(`/webhooks/{id:^\d+$}`, DeleteWebhook(app))
		r.Post("/apikeys", CreateApiKey(app))
		r.Get("/apikeys", ListApiKeys(app))
		r.Delete(`/apikeys/{id:^\d+$}`, DeleteApiKey(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func servePublicFiles() http.Handler {
	return http.FileServer(http.Dir("public"))
}

func servePrivateFiles(path string) http.Handler {
	return http.StripPrefix(path, http.FileServer(http.Dir("private")))
}
