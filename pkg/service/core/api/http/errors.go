package http

import (
	"errors"
	"net/http"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/remote"
)

// remoteError classifies a failure of the remote service. The detail sent
// by the service travels along so it can be shown to the user.
func remoteError(op errs.Op, param errs.Parameter, err error) error {
	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) {
		return errs.E(errs.IO, op, param, err)
	}

	kind := errs.IO

	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = errs.InvalidRequest
	case http.StatusUnauthorized:
		kind = errs.Unauthenticated
	case http.StatusForbidden:
		kind = errs.Unauthorized
	case http.StatusNotFound:
		kind = errs.NotExist
	case http.StatusConflict:
		kind = errs.Conflict
	}

	return errs.E(kind, op, param, errs.Detail(apiErr.Detail), err)
}
