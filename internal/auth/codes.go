// Package auth implements bearer-token verification against Auth0,
// just-in-time principal resolution and role-based request gating.
package auth

// Machine-readable failure codes returned to API clients. These are the
// stable contract; response message text is not.
const (
	CodeNoToken          = "NO_TOKEN"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeNoAuthUser       = "NO_AUTH_USER"
	CodeNoUser           = "NO_USER"
	CodeInsufficientRole = "INSUFFICIENT_ROLE"
	CodeMissingEmail     = "MISSING_EMAIL"
	CodeUserinfoError    = "USERINFO_ERROR"
	CodeUserCreateError  = "USER_CREATE_ERROR"
)
