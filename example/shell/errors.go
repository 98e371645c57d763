package shell

import (
	"errors"
	"net/http"

	"github.com/circulationkit/library-circulation-go/circulation"
)

// StatusCodeFor maps the store's error kinds to HTTP status codes. Every
// kind is recoverable at this boundary; only storage failures surface as a
// server-side error.
func StatusCodeFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, circulation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, circulation.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, circulation.ErrReferentialConflict):
		return http.StatusConflict
	case errors.Is(err, circulation.ErrItemUnavailable):
		return http.StatusConflict
	case errors.Is(err, circulation.ErrAlreadyReturned):
		return http.StatusConflict
	case errors.Is(err, circulation.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, circulation.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
