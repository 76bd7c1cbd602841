// Package web holds the JSON plumbing shared by the HTTP handlers.
package web

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"librarydesk/internal/validation"
)

const maxBodyBytes = 1 << 20

// MsgInternal is the only body a client ever sees for an unexpected failure.
const MsgInternal = "Something went wrong!"

var ErrMalformedBody = errors.New("malformed JSON body")

var json = jsoniter.Config{
	EscapeHTML:             true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// MessageBody is the {"message": ...} envelope used by every status response.
type MessageBody struct {
	Message string `json:"message"`
}

type validationBody struct {
	Errors []validation.FieldError `json:"errors"`
}

// DecodeObject reads the request body as a JSON object. An empty body or a
// non-object document decodes to an empty map so field validation reports
// what is missing.
func DecodeObject(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, ErrMalformedBody
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return obj, nil
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"` + MsgInternal + `"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, MessageBody{Message: msg})
}

// Invalid writes the 400 field-error list.
func Invalid(w http.ResponseWriter, verr *validation.ValidationError) {
	JSON(w, http.StatusBadRequest, validationBody{Errors: verr.Fields})
}

// BadBody answers a request whose body could not be read as JSON.
func BadBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, ErrMalformedBody) {
		Message(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	ServerError(w, r, logger, err)
}

// Validation writes err as a 400 when it is a *validation.ValidationError and
// reports whether it did.
func Validation(w http.ResponseWriter, err error) bool {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		Invalid(w, verr)
		return true
	}
	return false
}

// ServerError logs err with the request id and writes the generic 500.
func ServerError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.ErrorContext(r.Context(), "request failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	Message(w, http.StatusInternalServerError, MsgInternal)
}

// PathID parses the named chi URL parameter as a positive integer id.
func PathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
