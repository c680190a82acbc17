package auth

import "net/http"

// APIError is the error body returned by the auth endpoints.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// HTTPStatus returns the status code of the error
func (e *APIError) HTTPStatus() int {
	return e.Status
}

var (
	ErrInvalidEmailOrPassword = &APIError{Status: http.StatusUnauthorized, Code: "INVALID_EMAIL_OR_PASSWORD", Message: "Invalid email or password"}
	ErrUserAlreadyExists      = &APIError{Status: http.StatusUnprocessableEntity, Code: "USER_ALREADY_EXISTS", Message: "User already exists. Use another email."}
	ErrInvalidEmail           = &APIError{Status: http.StatusBadRequest, Code: "INVALID_EMAIL", Message: "Invalid email"}
	ErrPasswordTooShort       = &APIError{Status: http.StatusBadRequest, Code: "PASSWORD_TOO_SHORT", Message: "Password too short"}
	ErrPasswordTooLong        = &APIError{Status: http.StatusBadRequest, Code: "PASSWORD_TOO_LONG", Message: "Password too long"}
	ErrInvalidOrigin          = &APIError{Status: http.StatusForbidden, Code: "INVALID_ORIGIN", Message: "Invalid origin"}
	ErrInvalidBody            = &APIError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: "Invalid request body"}
	ErrFailedToCreateUser     = &APIError{Status: http.StatusUnprocessableEntity, Code: "FAILED_TO_CREATE_USER", Message: "Failed to create user"}
	ErrFailedToCreateSession  = &APIError{Status: http.StatusInternalServerError, Code: "FAILED_TO_CREATE_SESSION", Message: "Failed to create session"}
	ErrNotFound               = &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Not found"}
)
