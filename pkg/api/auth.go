package api

import "time"

// LoginRequest authenticates an operator account.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries the minted bearer token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Dictionary describes a registered dictionary. Content is only present in
// create/update requests and single-dictionary responses.
type Dictionary struct {
	Name    string `json:"name"`
	Label   string `json:"label,omitempty"`
	Content string `json:"content,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
