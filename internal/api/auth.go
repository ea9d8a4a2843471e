package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"readi/internal/httpjson"
	"readi/internal/models"
	"readi/internal/store"
)

// isMobileAgent reports whether the callback runs inside the iOS app's
// authentication session, which needs a redirect even on failure.
func isMobileAgent(ua string) bool {
	for _, marker := range []string{"Mobile", "iPhone", "iPad", "Simulator"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

func (s *Server) handleAuthGoogle(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.deps.Auth.AuthURL()
	if err != nil {
		s.fail(w, r, "AUTH_ERROR", "Failed to initiate authentication", err, false)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token, err := s.completeSignIn(r, q)
	mobile := isMobileAgent(r.UserAgent())

	if err != nil {
		s.logger.Error("OAuth callback error", "error", err, "mobile", mobile)
		if mobile {
			http.Redirect(w, r, s.opts.IOSAppScheme+"auth/callback?error="+url.QueryEscape(err.Error()), http.StatusFound)
			return
		}
		httpjson.Error(w, http.StatusBadRequest, "OAUTH_ERROR", "Failed to complete authentication", err.Error())
		return
	}

	target := strings.TrimSuffix(s.opts.WebURL, "/") + "/auth/callback?token=" + url.QueryEscape(token)
	if mobile {
		target = s.opts.IOSAppScheme + "auth/callback?token=" + url.QueryEscape(token)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) completeSignIn(r *http.Request, q url.Values) (string, error) {
	if e := q.Get("error"); e != "" {
		return "", errors.New("google returned error: " + e)
	}
	if err := s.deps.Auth.VerifyState(q.Get("state")); err != nil {
		return "", errors.New("invalid or expired state parameter")
	}
	_, token, err := s.deps.Auth.SignIn(r.Context(), q.Get("code"))
	return token, err
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsOf(r)
	token, err := s.deps.Auth.Refresh(r.Context(), claims)
	if err != nil {
		s.logger.Warn("Token refresh failed.", "userID", claims.UserID, "error", err)
		writeError(w, http.StatusUnauthorized, "REFRESH_ERROR", "Failed to refresh token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless; the client discards its copy.
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

type meResponse struct {
	*models.User
	Profile *models.Profile `json:"profile"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	user, err := s.deps.Store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch user information", err, false)
		return
	}

	profile, err := s.deps.Store.GetProfile(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch user information", err, false)
		return
	}
	if profile != nil {
		profile.User = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": meResponse{User: user, Profile: profile}})
}
