package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Auth.
	mux.HandleFunc("POST /v1/auth/login", s.handleAuthLogin)
	mux.Handle("GET /v1/auth/me", s.withAuthFunc(s.handleAuthMe))

	// Files.
	mux.Handle("GET /v1/files", s.withAuthFunc(s.handleListFiles))
	mux.Handle("POST /v1/files", s.withAuthFunc(s.handleUploadFile))
	mux.Handle("GET /v1/files/{hash}", s.withAuthFunc(s.handleDownloadFile))
	mux.Handle("DELETE /v1/files/{hash}", s.withAuthFunc(s.handleDeleteFile))

	return mux
}
