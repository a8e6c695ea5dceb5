package oauth

// Identity is the normalized profile returned by an external provider after
// a successful code exchange.
type Identity struct {
	ProviderID string
	Login      string
	Name       string
	Email      string
}
