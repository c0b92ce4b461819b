package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"notulio/internal/auth"
	"notulio/internal/core"
	"notulio/internal/store"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string     `json:"token"`
	User  *core.User `json:"user"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleSignUp handles POST /api/auth/signup
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, user)
}

// handleSignIn handles POST /api/auth/signin
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.log.Error("sign-in failed", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}

	s.respondJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// handleVerifyEmail handles POST /api/auth/verify
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, store.ErrTokenInvalid) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("email verification failed", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// handleForgotPassword handles POST /api/auth/forgot-password. Always answers
// 202 so the endpoint cannot confirm whether an address is registered.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.log.Error("password reset request failed", "error", err.Error())
	}

	s.respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// handleResetPassword handles POST /api/auth/reset-password
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, store.ErrTokenInvalid) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

// handleMe handles GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		s.respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), sess.Subject)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}
