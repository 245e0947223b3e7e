package httpapi

import (
	"errors"
	"net/http"

	"github.com/wardwatch/wardwatch/internal/dispatch"
	"github.com/wardwatch/wardwatch/internal/domain"
)

// HTTPError is an error with a status code and a stable machine-readable key.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrBadRequest           = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized         = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrNotFound             = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict             = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnsupportedMediaType = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrUnprocessableEntity  = HTTPError{Code: http.StatusUnprocessableEntity, Key: "validation_error"}
	ErrNotImplemented       = HTTPError{Code: http.StatusNotImplemented, Key: "not_implemented"}
	ErrInternal             = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
)

var (
	ErrInvalidJSON   = errors.New("invalid JSON body")
	ErrMissingActor  = errors.New("actorId is required")
	ErrInvalidQuery  = errors.New("invalid query parameter")
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid bearer token")
	ErrNotConfigured = errors.New("feature is not configured")
)

// classify maps an error onto the HTTPError the client sees. Unknown errors
// become 500s and their text is not exposed.
func classify(err error) (HTTPError, bool) {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr, true
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrMissingActor), errors.Is(err, ErrInvalidQuery):
		return ErrBadRequest, true
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		return ErrUnauthorized, true
	case errors.Is(err, domain.ErrAlertNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrQueueEntryNotFound):
		return ErrNotFound, true
	case errors.Is(err, domain.ErrInvalidState):
		return ErrConflict, true
	case errors.Is(err, domain.ErrInvalidAlert),
		errors.Is(err, domain.ErrInvalidNotification),
		errors.Is(err, domain.ErrExpiredNotification),
		errors.Is(err, domain.ErrInvalidPhoneNumber),
		errors.Is(err, dispatch.ErrNoChannels):
		return ErrUnprocessableEntity, true
	case errors.Is(err, ErrNotConfigured):
		return ErrNotImplemented, true
	}
	return ErrInternal, false
}
