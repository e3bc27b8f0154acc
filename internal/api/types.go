package api

// Wire shapes for the auth and claim endpoints. Field names follow the
// backend contract shared with the UI layer.

// UserPayload is the user object as the backend serializes it.
type UserPayload struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResponse is the success body of POST /auth/login.
type LoginResponse struct {
	User         UserPayload `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	Permissions  []string    `json:"permissions"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
	// RefreshExpiresIn is the refresh token lifetime in seconds; 0 when the
	// backend does not report it.
	RefreshExpiresIn int64 `json:"refreshExpiresIn,omitempty"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the success body of POST /auth/refresh.
type RefreshResponse struct {
	Token            string   `json:"token"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresIn        int64    `json:"expiresIn"`
	Permissions      []string `json:"permissions,omitempty"`
	RefreshExpiresIn int64    `json:"refreshExpiresIn,omitempty"`
}

// VerifyResponse is the body of GET /auth/verify. ClaimedCustomers is the
// server's authoritative claim list used to reconcile local state.
type VerifyResponse struct {
	Valid            bool        `json:"valid"`
	User             UserPayload `json:"user"`
	Permissions      []string    `json:"permissions"`
	ClaimedCustomers []string    `json:"claimedCustomers,omitempty"`
}

// transferRequest is the body of POST /customers/{id}/transfer.
type transferRequest struct {
	TargetUserID string `json:"targetUserId"`
}

// releaseAllRequest is the body of POST /customers/release-all.
type releaseAllRequest struct {
	CustomerIDs []string `json:"customerIds"`
}

// errorResponse is the backend's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}
