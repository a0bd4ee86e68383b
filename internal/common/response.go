package common

import (
	"encoding/json"
	"log"
	"net/http"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithDomainError picks status and code from err. Internal failures are
// logged and replaced with a generic message.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	status := HTTPStatusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %v", err)
		message = ErrInternalServer.Error()
	}
	RespondWithJSON(w, status, ErrorResponse{Error: message, Code: ErrorCodeFromError(err)})
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// DecodeJSON wraps decode failures in ErrBadRequest.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return Errorf("invalid request payload: %v: %w", err, ErrBadRequest)
	}
	return nil
}
