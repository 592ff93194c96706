package routes

import (
	"fmt"
	"io"
	"net/http"

	"github.com/docker/cli/cli/command/formatter/tabwriter"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
)

type AddRoutesFn func(router chi.Router)

var defaultOrigins = []string{"https://*", "http://*"}

// Add registers the routes behind CORS for the given front end origins. The
// front end sends the session cookie along, so credentials are allowed.
func Add(r chi.Router, allowedOrigins []string, routes ...AddRoutesFn) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	for _, route := range routes {
		route(r)
	}
}

// Print writes the registered routes as a table, used at debug start-up.
func Print(r chi.Router, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METHOD\tROUTE\tMIDDLEWARES")

	err := chi.Walk(r, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", method, route, len(middlewares))

		return nil
	})
	if err != nil {
		return fmt.Errorf("walking routes: %w", err)
	}

	return w.Flush()
}
