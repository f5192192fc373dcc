package protocol

import "net/http"

// Status codes with the reason phrases the server sends.
const (
	StatusSwitchingProtocol   = 101
	StatusOK                  = 200
	StatusCreated             = 201
	StatusNoContent           = 204
	StatusNotModified         = 303
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusConflict            = 409
	StatusInternalServerError = 500
)

var statusText = map[int]string{
	StatusSwitchingProtocol:   "Switching Protocol",
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusNoContent:           "No Content",
	StatusNotModified:         "Not Modified",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusConflict:            "Conflict",
	StatusInternalServerError: "Internal Server Error",
}

// StatusText returns the reason phrase for code. Codes outside the server's
// own table fall back to the standard IANA phrase.
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
