// Package matineerest provides REST API utilities with CORS support and
// common middleware.
package matineerest

import (
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"
)

func Middlewares(service matineecli.Service, routes chi.Router) chi.Router {
	routes.Use(
		withCORS(),
		withLogger(matineecli.Logger(service)),
		middleware.Recoverer,
	)
	return routes
}

func Webserver(service matineecli.Service, routes chi.Router) error {
	logger := matineecli.Logger(service)

	if matineecli.CommonOpts.Console {
		logger.Info().Int("port", matineecli.CommonOpts.Port).Msg("starting http server")
		addr := fmt.Sprintf(":%v", matineecli.CommonOpts.Port)
		return http.ListenAndServe(addr, routes)
	}

	lambda.Start(apigateway.Wrap(routes, matineecli.CommonOpts.Env))
	return nil
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
