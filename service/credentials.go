package service

import "strings"

const (
	TestTokenPrefix = "TEST-"
	LiveTokenPrefix = "APP_USR-"
)

// ValidateAccessToken accepts sandbox (TEST-) and production (APP_USR-) access tokens.
func ValidateAccessToken(accessToken string) bool {
	return strings.HasPrefix(accessToken, TestTokenPrefix) || strings.HasPrefix(accessToken, LiveTokenPrefix)
}

// IsTestEnvironment reports whether the access token belongs to the sandbox.
func IsTestEnvironment(accessToken string) bool {
	return strings.HasPrefix(accessToken, TestTokenPrefix)
}
