package http

import (
	"errors"
	"net/http"
	"time"

	"gota/internal/auth"
	"gota/internal/core"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      core.Principal `json:"user"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgBadJSON).Write(w)
		return
	}

	sess, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, core.ErrUnauthorized) {
		ErrorResponse(http.StatusUnauthorized, msgBadCredentials).Write(w)
		return
	}
	if err != nil {
		writeError(w, r, "login", err)
		return
	}

	auth.SetCookie(w, sess, s.secure)
	NewResponse().JSON(loginResponse{User: sess.Principal(), ExpiresAt: sess.ExpiresAt}).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		writeError(w, r, "logout", err)
		return
	}
	auth.ClearCookie(w, s.secure)
	NewResponse().Status(http.StatusNoContent).Write(w)
}
