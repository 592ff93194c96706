// Package transport provides a generic HTTP transport layer for services.
//
// Inspired by:
// - https://www.willem.dev/articles/generic-http-handlers/ - for use of generics
// - https://github.com/go-kit/kit - for StatusCoder interface

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tablewise/portal/pkg/errs"
)

// MaxJSONBodyBytes bounds request bodies decoded by RequestFromJSON. Uploads
// carry their own limit in their decoder.
const MaxJSONBodyBytes = 64 << 10

type StatusCoder interface {
	StatusCode() int
}

type Encoder interface {
	Encode(w http.ResponseWriter) error
}

// DecoderFunc is a function that decodes a request into a struct
type DecoderFunc[In any] func(r *http.Request) (In, error)

// TargetFunc is a function that handles the request and returns a response, ideally
// we shouldn't have to use the http.Request, but sometimes we need it to fetch
// query parameters, headers, or similar
type TargetFunc[In any, Out any] func(context.Context, *http.Request, In) (Out, error)

type Transport[In any, Out any] struct {
	decoderFn DecoderFunc[In]
	targetFn  TargetFunc[In, Out]
}

func For[In any, Out any](target TargetFunc[In, Out]) *Transport[In, Out] {
	return &Transport[In, Out]{
		targetFn: target,
	}
}

// RequestFrom decodes the request with a custom decoder, for bodies that
// are not JSON.
func (h *Transport[In, Out]) RequestFrom(decoder DecoderFunc[In]) *Transport[In, Out] {
	h.decoderFn = decoder

	return h
}

// RequestFromJSON decodes the body as JSON. An empty body decodes to the
// zero value, so actions like save can be posted without one.
func (h *Transport[In, Out]) RequestFromJSON() *Transport[In, Out] {
	h.decoderFn = func(r *http.Request) (In, error) {
		const op errs.Op = "transport.RequestFromJSON"

		var in In

		data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxJSONBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return in, errs.E(errs.InvalidRequest, op, errs.Detail("Request body is too large"), err)
			}

			return in, errs.E(errs.InvalidRequest, op, err)
		}

		if len(bytes.TrimSpace(data)) == 0 {
			return in, nil
		}

		err = json.Unmarshal(data, &in)
		if err != nil {
			return in, errs.E(errs.InvalidRequest, op, errs.Detail("Request body is not valid JSON"), err)
		}

		return in, nil
	}

	return h
}

func (h *Transport[In, Out]) encode(w http.ResponseWriter, out Out) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	// If the output implements the StatusCoder interface, use the status code from it
	code := http.StatusOK
	if sc, ok := any(out).(StatusCoder); ok {
		code = sc.StatusCode()
	}

	w.WriteHeader(code)
	if code == http.StatusNoContent {
		return nil
	}

	err := json.NewEncoder(w).Encode(out)
	if err != nil {
		return err
	}

	return nil
}

func (h *Transport[In, Out]) Build(logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

		logger.Debug().Str("method", r.Method).Str("url", r.URL.RequestURI()).Msg("handling request")

		var in In
		var err error

		if h.decoderFn != nil {
			in, err = h.decoderFn(r)
			if err != nil {
				errs.HTTPErrorResponse(w, logger, errs.E(errs.InvalidRequest, err))
				return
			}
		}

		out, err := h.targetFn(r.Context(), r, in)
		if err != nil {
			errs.HTTPErrorResponse(w, logger, err)
			return
		}

		// If the output implements the Encoder interface, use it
		if v, ok := any(out).(Encoder); ok {
			err := v.Encode(w)
			if err != nil {
				errs.HTTPErrorResponse(w, logger, errs.E(errs.Internal, err))
				return
			}

			return
		}

		// By default, we always encode the response as JSON, you can use
		// the Encoder or StatusCoder interfaces to customize the response
		err = h.encode(w, out)
		if err != nil {
			errs.HTTPErrorResponse(w, logger, errs.E(errs.Internal, err))
			return
		}
	}
}

// Empty provides a convenience struct for returning an empty response
type Empty struct{}

func (e *Empty) StatusCode() int {
	return http.StatusNoContent
}

// WithCookies writes cookies before encoding the wrapped response as JSON.
type WithCookies[T any] struct {
	Cookies []*http.Cookie
	Status  int
	Body    T
}

func (c *WithCookies[T]) Encode(w http.ResponseWriter) error {
	for _, cookie := range c.Cookies {
		http.SetCookie(w, cookie)
	}

	code := c.Status
	if code == 0 {
		code = http.StatusOK
	}

	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return nil
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	return json.NewEncoder(w).Encode(c.Body)
}

func NewWithCookies[T any](status int, body T, cookies ...*http.Cookie) *WithCookies[T] {
	return &WithCookies[T]{
		Cookies: cookies,
		Status:  status,
		Body:    body,
	}
}
