package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// LoginRequest carries credentials for POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns a bearer token.
type LoginResponse struct {
	AccessToken string    `json:"access_token" yaml:"access_token"`
	TokenType   string    `json:"token_type" yaml:"token_type"`
	ExpiresAt   time.Time `json:"expires_at" yaml:"expires_at"`
}

// MeResponse describes the authenticated identity.
type MeResponse struct {
	ID       int64  `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
}

// FileResponse is one entry of the caller's file listing.
type FileResponse struct {
	Hash       string    `json:"hash" yaml:"hash"`
	SizeBytes  int64     `json:"size_bytes" yaml:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

// UploadResponse is returned by POST /v1/files.
type UploadResponse struct {
	Hash      string `json:"hash" yaml:"hash"`
	Duplicate bool   `json:"duplicate,omitempty" yaml:"duplicate,omitempty"`
}

// DeleteResponse is returned by DELETE /v1/files/{hash}.
type DeleteResponse struct {
	Message string `json:"message" yaml:"message"`
	Hash    string `json:"hash" yaml:"hash"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status" yaml:"status"`
}
