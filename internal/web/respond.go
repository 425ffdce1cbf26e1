package web

import (
	"encoding/json"
	"net/http"
)

const (
	msgInternalError  = "Internal server error"
	msgInvalidBody    = "Invalid request body"
	msgItemNotFound   = "Item not found"
	msgNoProfile      = "Profile not found"
	msgUnknownTier    = "Unknown budget tier"
	maxRequestBodyLen = 1 << 20
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyLen)
	return json.NewDecoder(r.Body).Decode(v)
}
