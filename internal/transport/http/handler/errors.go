package handler

const (
	errInternalServer   = "Internal server error"
	errInvalidEmail     = "Invalid email"
	errInvalidInput     = "Invalid input"
	errDomainNotAllowed = "Email domain not allowed"
	errTooManyRequests  = "Too many requests"
	errCodeInvalid      = "Invalid or expired code"
	errNotAuthenticated = "Not authenticated"
	errUsernameInvalid  = "Username is invalid"
	errUsernameTaken    = "Username is taken"
)
