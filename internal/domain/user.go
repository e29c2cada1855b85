// Package domain contains core domain types for the 청춘 chat core.
package domain

// Identity is the signed-in user as seen by the chat core.
type Identity struct {
	UserID      string `json:"user_id"`
	Token       string `json:"-"`
	DisplayName string `json:"display_name,omitempty"`
}

// HasToken returns true if the identity carries a bearer token.
func (i Identity) HasToken() bool {
	return i.Token != ""
}
