package main

import (
	"context"
	"errors"
	"net/http"
)

// CustomResponseWriter records the status code and body size of a
// response for the request logging and statistics middlewares.
type CustomResponseWriter struct {
	http.ResponseWriter
	code  int
	bytes int
	wrote bool
}

// NewCustomResponseWriter provides CustomResponseWriter with 200 as status code.
func NewCustomResponseWriter(rw http.ResponseWriter) *CustomResponseWriter {
	return &CustomResponseWriter{
		ResponseWriter: rw,
		code:           http.StatusOK,
	}
}

// WriteHeader implements http.WriteHeader interface.
func (cw *CustomResponseWriter) WriteHeader(code int) {
	if !cw.wrote {
		cw.code = code
		cw.wrote = true
		cw.ResponseWriter.WriteHeader(code)
	}
}

// Write implements http.Write interface.
func (cw *CustomResponseWriter) Write(bytes []byte) (int, error) {
	if !cw.wrote {
		cw.WriteHeader(cw.code)
	}
	n, err := cw.ResponseWriter.Write(bytes)
	cw.bytes += n
	return n, err
}

// Status returns the written status code.
func (cw *CustomResponseWriter) Status() int {
	return cw.code
}

// Bytes returns bytes written as response body.
func (cw *CustomResponseWriter) Bytes() int {
	return cw.bytes
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (cw *CustomResponseWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// StatusClientClosedRequest is the nginx status for requests dropped by the client.
const StatusClientClosedRequest = 499

// APIError is the body sent when a catalog operation fails.
type APIError struct {
	RequestID string      `json:"requestid"`
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

// APIResponse is the body sent on success. Total is only set by listings.
type APIResponse struct {
	RequestID string      `json:"requestid"`
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Total     *int        `json:"total,omitempty"`
	Data      interface{} `json:"data"`
}

func NewAPIError(requestid string, status int, message string, data interface{}) *APIError {
	return &APIError{RequestID: requestid, Status: status, Message: message, Data: data}
}

func GenericResponse(requestid string, status int, message string, total *int, data interface{}) *APIResponse {
	return &APIResponse{RequestID: requestid, Status: status, Message: message, Total: total, Data: data}
}

// WriteErrorResponse sends errResp unless the request context is already done.
func WriteErrorResponse(ctx context.Context, w http.ResponseWriter, errResp *APIError) error {
	return writeJSON(ctx, w, errResp.Status, errResp)
}

// WriteResponse sends resp unless the request context is already done.
func WriteResponse(ctx context.Context, w http.ResponseWriter, resp *APIResponse) error {
	return writeJSON(ctx, w, resp.Status, resp)
}

// writeJSON encodes body with status. A timed out request is recorded
// as 504 and a request cancelled by the client as 499, without a body.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			w.WriteHeader(http.StatusGatewayTimeout)
		} else {
			w.WriteHeader(StatusClientClosedRequest)
		}
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// StatusForError maps catalog errors to http status codes.
func StatusForError(err error) int {
	var verr ValidationError
	var derr *DeserializationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.As(err, &derr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
