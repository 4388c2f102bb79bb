package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/windowdb/cursor"
	"github.com/fulldump/windowdb/database"
	"github.com/fulldump/windowdb/service"
	"github.com/fulldump/windowdb/window"
)

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (p PrettyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"error": struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		}{
			p.Message,
			p.Description,
		},
	})
}

func (p PrettyError) MarshalTo(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

var ErrUnavailable = errors.New("temporary unavailable")

type StatusGetter interface {
	GetStatus() string
}

func InterceptorUnavailable(db StatusGetter) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			status := db.GetStatus()
			if status == database.StatusOpening {
				box.SetError(ctx, fmt.Errorf("%w: opening", ErrUnavailable))
				return
			}
			if status == database.StatusClosing {
				box.SetError(ctx, fmt.Errorf("%w: closing", ErrUnavailable))
				return
			}
			next(ctx)
		}
	}
}

// errorStatus maps an error to its HTTP status and a human description.
func errorStatus(ctx context.Context, err error) (int, string) {
	r := box.GetRequest(ctx)

	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError

	switch {
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "database is not operating, retry later"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "user is not authenticated"
	case errors.Is(err, box.ErrResourceNotFound):
		return http.StatusNotFound, fmt.Sprintf("resource '%s' not found", r.URL.String())
	case errors.Is(err, box.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, fmt.Sprintf("method '%s' not allowed", r.Method)
	case errors.Is(err, service.ErrorCollectionNotFound):
		return http.StatusNotFound, "collection not found"
	case errors.Is(err, service.ErrorCursorNotFound):
		return http.StatusNotFound, "cursor not found"
	case errors.Is(err, service.ErrorCollectionAlreadyExists):
		return http.StatusConflict, "collection already exists"
	case errors.Is(err, service.ErrorSQLDisabled):
		return http.StatusNotImplemented, "configure a SQL driver to open SQL cursors"
	case errors.Is(err, cursor.ErrCursorClosed):
		return http.StatusGone, "cursor is closed"
	case errors.Is(err, cursor.ErrRowTooLarge):
		return http.StatusRequestEntityTooLarge, "row does not fit in the window byte budget"
	case errors.Is(err, window.ErrInvalidPolicy):
		return http.StatusBadRequest, "invalid window policy"
	case errors.Is(err, service.ErrorInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.As(err, &syntaxError), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, "Malformed JSON"
	case errors.As(err, &typeError):
		return http.StatusBadRequest, "Unexpected JSON type"
	case errors.Is(err, database.ErrCollectionNotFound):
		return http.StatusNotFound, "collection not found"
	}

	return http.StatusInternalServerError, "Unexpected error"
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}

		status, description := errorStatus(ctx, err)
		w := box.GetResponse(ctx)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(PrettyError{
			Message:     err.Error(),
			Description: description,
		})
	}
}
