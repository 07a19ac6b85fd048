package model

// User represents the authenticated account as returned by the gateway.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"created_at"`
}

// Credentials represents a login or registration request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response with a bearer token and user info.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Session is the authenticated user plus their bearer credential.
type Session struct {
	User  User
	Token string
}
