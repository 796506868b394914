// internal/app/features/shared/jsonapi/jsonapi.go
//
// Small helpers shared by the JSON features: one envelope for errors,
// one for success payloads, and a strict request decoder.
package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mwhitaker/enrollhub/internal/app/system/limits"
)

// Respond writes v as JSON with the given status code.
func Respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} with the given status code.
func Error(w http.ResponseWriter, code int, msg string) {
	Respond(w, code, map[string]string{"error": msg})
}

// Decode reads the request body into dst, rejecting unknown fields and
// oversized bodies. Returns a message suitable for a 400 response.
func Decode(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, limits.MaxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
