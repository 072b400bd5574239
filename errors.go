package tours

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes not covered by go-errors
const (
	TextCodeUnauthenticated       = "UNAUTHENTICATED"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeUserGone              = "USER_GONE"
	TextCodeStaleCredential       = "STALE_CREDENTIAL"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeIncorrectPassword     = "INCORRECT_PASSWORD"
	TextCodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeDeliveryFailure       = "DELIVERY_FAILURE"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeRecordNotFound        = "RECORD_NOT_FOUND"
	TextCodeDuplicateField        = "DUPLICATE_FIELD"
)

var (
	// ErrUnauthenticated no token was presented
	ErrUnauthenticated = goerrors.New("Please log in to access this route or resource", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode(TextCodeUnauthenticated)

	// ErrInvalidToken signature check failed or token is malformed
	ErrInvalidToken = goerrors.New("Invalid token. Please log in again", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(TextCodeInvalidToken)

	// ErrTokenExpired token is past its expiration
	ErrTokenExpired = goerrors.New("Session expired. Please log in again", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(goerrors.TextCodeTokenExpired)

	// ErrUserGone the token subject no longer exists or is inactive
	ErrUserGone = goerrors.New("The user who this token belongs to does no longer exist", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(TextCodeUserGone)

	// ErrStaleCredential the token predates the last password change
	ErrStaleCredential = goerrors.New("Your password was recently changed. Please log in again with your current password", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode(TextCodeStaleCredential)

	// ErrIncorrectCredentials generic login failure, never reveals which part was wrong
	ErrIncorrectCredentials = goerrors.New("Incorrect email or password", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).
				WithTextCode(goerrors.TextCodeInvalidCredentials)

	// ErrMissingCredentials login payload without email or password
	ErrMissingCredentials = goerrors.New("Please provide your email and password", goerrors.CategoryBadInput).
				WithCode(http.StatusBadRequest)

	// ErrForbidden role not allowed
	ErrForbidden = goerrors.New("You do not have permission to perform this action", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).
			WithTextCode(TextCodeForbidden)

	// ErrIncorrectPassword current password mismatch on update
	ErrIncorrectPassword = goerrors.New("Incorrect password! Please enter your current password", goerrors.CategoryValidation).
				WithCode(http.StatusBadRequest).
				WithTextCode(TextCodeIncorrectPassword)

	// ErrInvalidOrExpiredToken reset token unknown, consumed or expired
	ErrInvalidOrExpiredToken = goerrors.New("Token is invalid or has expired", goerrors.CategoryValidation).
					WithCode(http.StatusBadRequest).
					WithTextCode(TextCodeInvalidOrExpiredToken)

	// ErrUserNotFound no user with the given email
	ErrUserNotFound = goerrors.New("No such user found. Make sure you entered the correct email address", goerrors.CategoryNotFound).
			WithCode(http.StatusNotFound).
			WithTextCode(TextCodeUserNotFound)

	// ErrDeliveryFailure email could not be sent
	ErrDeliveryFailure = goerrors.New("An error occurred while sending the email. Try again later!", goerrors.CategoryExternal).
				WithCode(http.StatusInternalServerError).
				WithTextCode(TextCodeDeliveryFailure)

	// ErrDuplicateReview a user reviews a tour only once
	ErrDuplicateReview = goerrors.New("You have already reviewed this tour", goerrors.CategoryConflict).
				WithCode(http.StatusConflict).
				WithTextCode(TextCodeDuplicateField)

	// ErrNoEmptyString password must not be empty
	ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
				WithCode(http.StatusBadRequest).
				WithTextCode(goerrors.TextCodeEmptyPassword)

	// ErrMismatchedHashAndPassword bcrypt comparison failed
	ErrMismatchedHashAndPassword = goerrors.New("mismatched hash and password", goerrors.CategoryAuth).
					WithCode(http.StatusUnauthorized).
					WithTextCode(goerrors.TextCodeInvalidCredentials)
)

// HasTextCode reports whether err is a go-errors error with the given text code.
// Use it when the sentinel may have been wrapped, since Wrap clones.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// NewNotFound builds a not found error for a named resource
func NewNotFound(resource string) *goerrors.Error {
	return goerrors.New("No "+resource+" found with that ID", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(TextCodeRecordNotFound).
		WithMetadata(map[string]any{"resource": resource})
}

// NewValidationError builds a 400 validation error
func NewValidationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest)
}

// NewConflict builds a 409 for a uniqueness violation on field
func NewConflict(field, value string) *goerrors.Error {
	return goerrors.New("The field '"+field+"' must have a unique value. The value '"+value+"' is not unique.", goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(TextCodeDuplicateField).
		WithMetadata(map[string]any{"field": field})
}

func richOrWrap(err error, category goerrors.Category, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, category, message)
}
