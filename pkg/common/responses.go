package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

// MaxBodyBytes bounds every JSON request body
const MaxBodyBytes = 1 << 20

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	RespondWithMeta(w, status, data, nil)
}

// RespondWithMeta sends a response with metadata
func RespondWithMeta(w http.ResponseWriter, status int, data interface{}, meta *MetaInfo) {
	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// Meta builds the metadata block for a request
func Meta(r *http.Request) *MetaInfo {
	return &MetaInfo{
		RequestID: ExtractRequestID(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ExtractRequestID returns the id assigned by the RequestID middleware,
// falling back to the inbound headers
func ExtractRequestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	if id, ok := GetRequestID(r.Context()); ok && id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Amzn-Trace-Id")
}

// ParseJSONBody decodes a JSON request body with a size limit. Unknown
// fields and trailing data are rejected as validation errors.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return pkgerrors.NewValidationError("request body is required")
		case errors.As(err, &tooLarge):
			return pkgerrors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		default:
			return pkgerrors.NewValidationError("invalid request body: " + err.Error())
		}
	}
	if decoder.More() {
		return pkgerrors.NewValidationError("request body must contain a single JSON object")
	}
	return nil
}
