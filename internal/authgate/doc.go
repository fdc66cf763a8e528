// Package authgate verifies UI credentials before a connection is
// admitted to the hub.
//
// Two modes are supported. In tokeninfo mode an OAuth access token is
// checked against the provider's token-info endpoint (the token's
// audience must match the configured client id) and the user's profile
// is fetched with a second call. In jwt mode the credential is a
// locally signed JWT and no network calls are made.
//
// Verification is stateless. Credentials are never cached; each call
// stands alone, and a single silent retry is applied to transient
// transport failures before an error is surfaced.
package authgate
