// Package oauth implements the provider side of OAuth sign-in and account
// linking: authorization URLs, code exchange, and identity extraction. It
// knows nothing about local users; callers decide what to do with the
// returned Identity.
package oauth

// Identity is the provider-verified identity extracted after code exchange.
type Identity struct {
	Provider       string
	ProviderUserID string
	Email          string
	Label          string
	Name           string
	AvatarURL      string
}
