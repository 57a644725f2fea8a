package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind is the closed set of failure kinds surfaced by the package.
// Every kind doubles as the TextCode of its sentinel error and as the
// "error" field of HTTP error responses.
type ErrorKind string

const (
	KindUnknown              ErrorKind = ""
	KindInvalidCredentials   ErrorKind = "invalid_credentials"
	KindDuplicateEmail       ErrorKind = "duplicate_email"
	KindUnsupportedScheme    ErrorKind = "unsupported_scheme"
	KindTokenInvalid         ErrorKind = "access_token_invalid"
	KindTokenExpired         ErrorKind = "access_token_expired"
	KindRefreshTokenInvalid  ErrorKind = "refresh_token_invalid"
	KindRefreshTokenExpired  ErrorKind = "refresh_token_expired"
	KindRefreshTokenRevoked  ErrorKind = "refresh_token_revoked"
	KindResetTokenInvalid    ErrorKind = "reset_token_invalid"
	KindResetTokenExpired    ErrorKind = "reset_token_expired"
	KindPersistenceFailure   ErrorKind = "persistence_failure"
	KindEmailDeliveryFailure ErrorKind = "email_delivery_failure"
	KindValidationFailed     ErrorKind = "validation_failed"
	KindNotFound             ErrorKind = "not_found"
)

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords so callers cannot tell the two apart.
var ErrInvalidCredentials = goerrors.New("the email or password provided is incorrect", goerrors.CategoryAuth).
	WithTextCode(string(KindInvalidCredentials)).
	WithCode(goerrors.CodeBadRequest)

var ErrDuplicateEmail = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(string(KindDuplicateEmail)).
	WithCode(goerrors.CodeConflict)

var ErrUnsupportedScheme = goerrors.New("unsupported authentication scheme", goerrors.CategoryAuth).
	WithTextCode(string(KindUnsupportedScheme)).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenInvalid = goerrors.New("the provided access token is invalid", goerrors.CategoryAuth).
	WithTextCode(string(KindTokenInvalid)).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenExpired = goerrors.New("the provided access token has expired, please request a new token", goerrors.CategoryAuth).
	WithTextCode(string(KindTokenExpired)).
	WithCode(goerrors.CodeUnauthorized)

var ErrRefreshTokenInvalid = goerrors.New("the provided refresh token is invalid", goerrors.CategoryAuth).
	WithTextCode(string(KindRefreshTokenInvalid)).
	WithCode(goerrors.CodeUnauthorized)

var ErrRefreshTokenExpired = goerrors.New("the provided refresh token has expired, please log in again", goerrors.CategoryAuth).
	WithTextCode(string(KindRefreshTokenExpired)).
	WithCode(goerrors.CodeUnauthorized)

var ErrRefreshTokenRevoked = goerrors.New("the provided refresh token is no longer valid", goerrors.CategoryAuth).
	WithTextCode(string(KindRefreshTokenRevoked)).
	WithCode(goerrors.CodeUnauthorized)

var ErrResetTokenInvalid = goerrors.New("the password reset token is invalid", goerrors.CategoryBadInput).
	WithTextCode(string(KindResetTokenInvalid)).
	WithCode(goerrors.CodeBadRequest)

var ErrResetTokenExpired = goerrors.New("the password reset token has expired", goerrors.CategoryBadInput).
	WithTextCode(string(KindResetTokenExpired)).
	WithCode(goerrors.CodeBadRequest)

var ErrPersistenceFailure = goerrors.New("failed to persist record", goerrors.CategoryInternal).
	WithTextCode(string(KindPersistenceFailure)).
	WithCode(goerrors.CodeInternal)

var ErrEmailDeliveryFailure = goerrors.New("failed to send email", goerrors.CategoryInternal).
	WithTextCode(string(KindEmailDeliveryFailure)).
	WithCode(goerrors.CodeInternal)

var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(string(KindNotFound)).
	WithCode(goerrors.CodeNotFound)

var ErrValidationFailed = goerrors.New("the request payload is invalid", goerrors.CategoryValidation).
	WithTextCode(string(KindValidationFailed)).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(string(KindValidationFailed)).
	WithCode(goerrors.CodeBadRequest)

// KindOf classifies err. Errors not produced by this package report KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ErrorKind(richErr.TextCode)
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, KindTokenExpired) || IsKind(err, KindRefreshTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, KindTokenInvalid) || IsKind(err, KindRefreshTokenInvalid) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

// wrapKind clones a sentinel and attaches cause as its source so the
// original failure stays available for server side logging.
func wrapKind(sentinel *goerrors.Error, cause error, metadata map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	clone.Source = cause
	if len(metadata) > 0 {
		clone = clone.WithMetadata(metadata)
	}
	return clone
}
