package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)

	// blog service
	router.HandlerFunc(http.MethodGet, "/v1/blogs", app.listBlogsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs", app.createBlogHandler)
	router.HandlerFunc(http.MethodGet, "/v1/blogs/:id", app.showBlogHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs/validate", app.validateBlogFieldHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs/generate", app.generateBlogHandler)

	return app.middleware(router)
}

// middleware tags and logs every request, including one whose handler panics.
func (app *application) middleware(next http.Handler) http.Handler {
	return app.logRequest(app.recoverPanic(next))
}
