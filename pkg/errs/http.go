package errs

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type ErrResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
	Param  string `json:"param,omitempty"`
}

func StatusCode(kind Kind) int {
	switch kind {
	case InvalidRequest, Validation:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case NotExist:
		return http.StatusNotFound
	case Exist, Conflict:
		return http.StatusConflict
	case IO:
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// HTTPErrorResponse logs err and writes it as a JSON error body. Internal
// failures never leak their cause to the client unless a Detail was set.
func HTTPErrorResponse(w http.ResponseWriter, lg zerolog.Logger, err error) {
	if err == nil {
		lg.Error().Msg("nil error passed to HTTPErrorResponse")
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	kind := KindOf(err)
	code := StatusCode(kind)

	var param string

	var e *Error
	if ok := asError(err, &e); ok {
		param = string(e.Param)
	}

	lg.Error().
		Err(err).
		Int("status", code).
		Str("kind", kind.String()).
		Str("param", param).
		Strs("stack", OpStack(err)).
		Msg("error response")

	detail := DetailOf(err)
	if detail == "" {
		switch kind {
		case Other, Internal, Database, IO:
			detail = http.StatusText(code)
		default:
			detail = Cause(err).Error()
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(ErrResponse{
		Detail: detail,
		Kind:   kind.String(),
		Param:  param,
	})
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}

	return ok
}
