// Package requestlogger logs one line per HTTP request served by the portal.
package requestlogger

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog"
)

// Middleware logs requests at info, client errors at warn and server errors
// at error level. Requests whose path starts with one of skipPrefixes are not
// logged.
func Middleware(logger zerolog.Logger, skipPrefixes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range skipPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			requestID := middleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = "n/a"
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				bytesIn := r.ContentLength
				if bytesIn < 0 {
					bytesIn = 0
				}

				route, project := routeOf(r)

				event := levelFor(logger, ww.Status())
				event.Timestamp().
					Str("request_id", requestID).
					Str("request", fmt.Sprintf("%s %s", r.Method, r.URL.Path)).
					Int("status", ww.Status()).
					Str("route", route).
					Str("project", project).
					Str("browser", browser(r.Header.Get("User-Agent"))).
					Float64("latency_ms", float64(time.Since(start).Nanoseconds())/1e6).
					Int64("bytes_in", bytesIn).
					Int("bytes_out", ww.BytesWritten()).
					Msg("incoming_request")
			}()

			next.ServeHTTP(ww, r)
		}

		return http.HandlerFunc(fn)
	}
}

func levelFor(logger zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status >= http.StatusBadRequest:
		return logger.Warn()
	}

	return logger.Info()
}

// routeOf reads the matched pattern and project key, which chi fills in
// while routing the request.
func routeOf(r *http.Request) (string, string) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "", ""
	}

	return rctx.RoutePattern(), rctx.URLParam("key")
}

func browser(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}

	ua := useragent.Parse(userAgent)

	switch {
	case ua.Name == "":
		return "unknown"
	case ua.OS == "":
		return ua.Name
	}

	return fmt.Sprintf("%s (%s)", ua.Name, ua.OS)
}
