package server

import (
	"errors"
	"fmt"
	"net/http"

	"hashfile/internal/api"
	internalauth "hashfile/internal/auth"
)

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		s.writeServiceError(w, r, internalError(fmt.Errorf("auth is not configured")))
		return
	}

	var req api.LoginRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	result, err := s.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials):
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized("invalid credentials"))
		case errors.Is(err, internalauth.ErrInvalidUsername):
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidUsername))
		case errors.Is(err, errMissingPassword):
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeMissingRequired))
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}

	s.log().Info("login succeeded", "user_id", result.User.ID, "username", result.User.Username)
	s.writeJSON(w, http.StatusOK, api.LoginResponse{
		AccessToken: result.Token,
		TokenType:   authTypeBearer,
		ExpiresAt:   result.ExpiresAt,
	})
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized("unauthorized"))
		return
	}
	s.writeJSON(w, http.StatusOK, api.MeResponse{ID: principal.User.ID, Username: principal.User.Username})
}
