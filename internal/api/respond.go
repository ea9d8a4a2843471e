package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"readi/internal/auth"
	"readi/internal/httpjson"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	httpjson.Write(w, status, v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	httpjson.Error(w, status, code, message, nil)
}

// fail logs err and writes a 500 envelope. The error text is only exposed
// when withDetails is set.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, code, message string, err error, withDetails bool) {
	s.logger.Error(message, "path", r.URL.Path, "error", err)
	var details any
	if withDetails {
		details = err.Error()
	}
	httpjson.Error(w, http.StatusInternalServerError, code, message, details)
}

func claimsOf(r *http.Request) (*auth.Claims, bool) {
	return auth.ClaimsFromContext(r.Context())
}

// userID returns the authenticated user. Protected routes always carry claims.
func userID(r *http.Request) string {
	if claims, ok := claimsOf(r); ok {
		return claims.UserID
	}
	return ""
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// intQuery parses an optional integer query parameter within [lo, hi].
func intQuery(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}
