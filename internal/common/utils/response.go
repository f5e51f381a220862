// internal/common/utils/response.go
// Standardized gateway responses, the same envelope the backend answers with

package utils

import (
	"encoding/json"
	"net/http"
)

// Response is the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Notice  bool        `json:"notice,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	RespondWithJSON(w, statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	RespondWithJSON(w, statusCode, Response{
		Success: false,
		Error:   message,
	})
}

// DetailedErrorResponse sends an error with a short title and optional details
func DetailedErrorResponse(w http.ResponseWriter, title, message string, details interface{}, statusCode int) {
	RespondWithJSON(w, statusCode, Response{
		Success: false,
		Message: title,
		Error:   message,
		Details: details,
	})
}

// NoticeResponse sends an error the UI shows as a notice rather than a failure
func NoticeResponse(w http.ResponseWriter, title, message string, statusCode int) {
	RespondWithJSON(w, statusCode, Response{
		Success: false,
		Message: title,
		Error:   message,
		Notice:  true,
	})
}

// MessageResponse sends a simple message response
func MessageResponse(w http.ResponseWriter, message string, statusCode int) {
	RespondWithJSON(w, statusCode, Response{
		Success: true,
		Message: message,
	})
}

// RespondWithJSON sends a JSON response with the specified status code and payload
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":"Error marshaling JSON"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
