package services

import "errors"

type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindAlreadyVerified     ErrorKind = "already_verified"
	KindLinkAlreadySent     ErrorKind = "link_already_sent"
	KindInvalidToken        ErrorKind = "invalid_token"
	KindCodeExpired         ErrorKind = "code_expired"
	KindCodeNotFound        ErrorKind = "code_not_found"
	KindEmailNotVerified    ErrorKind = "email_not_verified"
	KindDeviceExists        ErrorKind = "device_exists"
	KindNoUnconfirmedDevice ErrorKind = "no_unconfirmed_device"
	KindNoConfirmedDevice   ErrorKind = "no_confirmed_device"
	KindInvalidCode         ErrorKind = "invalid_code"
	KindTwoFactorNotEnabled ErrorKind = "two_factor_not_enabled"
	KindDeliveryFailure     ErrorKind = "delivery_failure"
	KindInvalidEmail        ErrorKind = "invalid_email"
	KindEmailTaken          ErrorKind = "email_taken"
	KindInvalidSession      ErrorKind = "invalid_session"
	KindUnknownProvider     ErrorKind = "unknown_provider"
	KindProviderFailure     ErrorKind = "provider_failure"
)

// AuthError is a client-facing failure. Message is safe to return to the
// caller; Err keeps the underlying cause for logs.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind, so wrapped copies compare equal
// to the sentinels below.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// wrap returns a copy of sentinel carrying cause.
func wrap(sentinel *AuthError, cause error) *AuthError {
	return &AuthError{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// AsAuthError extracts the AuthError from err's chain.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

var (
	ErrNotFound = &AuthError{
		Kind:    KindNotFound,
		Message: "No existing account is associated with this email.",
	}
	ErrAlreadyVerified = &AuthError{
		Kind:    KindAlreadyVerified,
		Message: "This user account has already been verified.",
	}
	ErrLinkAlreadySent = &AuthError{
		Kind:    KindLinkAlreadySent,
		Message: "Check your email for an already existing verification link.",
	}
	ErrInvalidToken = &AuthError{
		Kind:    KindInvalidToken,
		Message: "Invalid OTP code detected.",
	}
	ErrCodeExpired = &AuthError{
		Kind:    KindCodeExpired,
		Message: "OTP code has expired. A new verification link has been sent to your email.",
	}
	ErrCodeNotFound = &AuthError{
		Kind:    KindCodeNotFound,
		Message: "OTP code does not exist.",
	}
	ErrEmailNotVerified = &AuthError{
		Kind:    KindEmailNotVerified,
		Message: "This account has not been verified. Check your email for a verification link or request a new one.",
	}
	ErrDeviceExists = &AuthError{
		Kind:    KindDeviceExists,
		Message: "A TOTP device already exists for this account.",
	}
	ErrNoUnconfirmedDevice = &AuthError{
		Kind:    KindNoUnconfirmedDevice,
		Message: "No unconfirmed TOTP device is associated with this email.",
	}
	ErrNoConfirmedDevice = &AuthError{
		Kind:    KindNoConfirmedDevice,
		Message: "No confirmed TOTP device is associated with this email.",
	}
	ErrInvalidCode = &AuthError{
		Kind:    KindInvalidCode,
		Message: "Invalid TOTP token detected.",
	}
	ErrTwoFactorNotEnabled = &AuthError{
		Kind:    KindTwoFactorNotEnabled,
		Message: "2FA setup must be completed before login.",
	}
	ErrDeliveryFailure = &AuthError{
		Kind:    KindDeliveryFailure,
		Message: "The verification email could not be sent. Try again later.",
	}
	ErrInvalidEmail = &AuthError{
		Kind:    KindInvalidEmail,
		Message: "Enter a valid email address.",
	}
	ErrEmailTaken = &AuthError{
		Kind:    KindEmailTaken,
		Message: "An account with this email already exists.",
	}
	ErrInvalidSession = &AuthError{
		Kind:    KindInvalidSession,
		Message: "Session token is invalid or expired.",
	}
	ErrUnknownProvider = &AuthError{
		Kind:    KindUnknownProvider,
		Message: "Unsupported sign-in provider.",
	}
	ErrProviderFailure = &AuthError{
		Kind:    KindProviderFailure,
		Message: "Sign-in with the external provider failed.",
	}
)
