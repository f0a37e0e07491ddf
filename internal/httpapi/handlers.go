package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"credgate/internal/autherr"
	"credgate/internal/services"
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

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type signOutRequest struct {
	RefreshToken string `json:"refreshToken"`
	All          bool   `json:"all"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type authResponse struct {
	User         services.UserView `json:"user"`
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

type rotateResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return autherr.E(autherr.BadRequest, "invalid request body")
	}
	return nil
}

func toAuthResponse(res *services.AuthResult) authResponse {
	return authResponse{
		User:         res.User,
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
	}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.SignUp(r.Context(), req.Email, req.Password, req.Name, clientIP(r), r.UserAgent())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.SignIn(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Rotate(r.Context(), req.RefreshToken, clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rotateResponse{
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
	})
}

// handleSignOut revokes the session the supplied refresh token is bound to,
// or every session when "all" is set or no token is supplied. The body is
// optional.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		s.writeError(w, r, autherr.E(autherr.Unauthorized, "missing bearer token"))
		return
	}
	var req signOutRequest
	if r.Body != nil {
		// A missing or empty body means "sign out everywhere".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	token := req.RefreshToken
	if req.All {
		token = ""
	}
	if err := s.svc.SignOut(r.Context(), p.UserID, token, clientIP(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		s.writeError(w, r, autherr.E(autherr.Unauthorized, "missing bearer token"))
		return
	}
	user, err := s.svc.GetUser(r.Context(), p.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		s.writeError(w, r, autherr.E(autherr.Unauthorized, "missing bearer token"))
		return
	}
	if err := s.svc.DeleteUser(r.Context(), p.UserID, clientIP(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOIDCStart(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.OIDCStart(r.Context(), clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, res.AuthURL, http.StatusFound)
}

func (s *Server) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.writeError(w, r, autherr.E(autherr.Unauthorized, "sign-in was denied at the identity provider"))
		return
	}
	res, err := s.svc.OIDCComplete(r.Context(), q.Get("code"), q.Get("state"), clientIP(r), r.UserAgent())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// handleResetRequest always answers 202 on success, whether or not the email
// has an account.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.RequestPasswordReset(r.Context(), req.Email, clientIP(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.ResetPassword(r.Context(), req.Token, req.Password, clientIP(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
