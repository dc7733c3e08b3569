package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/authctx"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"github.com/muneebhashone/gqlauth/internal/server/sessions"
	"github.com/muneebhashone/gqlauth/internal/server/strategies"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	loginPath = "/login"

	resultSuccess = "success"
	resultFailure = "failure"
	resultError   = "error"
)

var tracer = otel.Tracer("github.com/muneebhashone/gqlauth/internal/server/httpapi")

type tokenResponse struct {
	Token string `json:"token"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

// login runs the local strategy and, on success, delivers the token both as
// a cookie and in the body, next to a fresh session.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "httpapi.login")
	defer span.End()
	span.SetAttributes(attribute.String("auth.strategy", strategies.LocalName))

	id, err := h.Strategies.Authenticate(ctx, strategies.LocalName, r)
	if err != nil {
		span.SetStatus(codes.Error, "authentication failed")
		h.authFailed(w, r, strategies.LocalName, err)
		return
	}

	token, err := h.establish(w, r, id)
	if err != nil {
		span.RecordError(err)
		h.authFailed(w, r, strategies.LocalName, err)
		return
	}

	h.record(strategies.LocalName, resultSuccess)
	h.logger.Info(ctx, "login succeeded", "strategy", strategies.LocalName, "user_id", id.ID)
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *handlers) googleBegin(w http.ResponseWriter, r *http.Request) {
	s, err := h.Strategies.Lookup(strategies.GoogleName)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	in, ok := s.(strategies.Initiator)
	if !ok {
		http.NotFound(w, r)
		return
	}
	in.Begin(w, r)
}

func (h *handlers) googleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "httpapi.oauth_callback")
	defer span.End()
	span.SetAttributes(attribute.String("auth.strategy", strategies.GoogleName))

	s, err := h.Strategies.Lookup(strategies.GoogleName)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if f, ok := s.(strategies.Finisher); ok {
		f.Finish(w)
	}

	id, err := s.Authenticate(ctx, r)
	if err == nil {
		_, err = h.establish(w, r, id)
	}
	if err != nil {
		span.SetStatus(codes.Error, "authentication failed")
		if errors.Is(err, common.ErrSessionStoreUnavailable) {
			h.authFailed(w, r, strategies.GoogleName, err)
			return
		}
		if common.IsLoginFailure(err) {
			h.record(strategies.GoogleName, resultFailure)
			h.logger.Info(ctx, "oauth login failed", "error", err)
		} else {
			h.record(strategies.GoogleName, resultError)
			h.logger.Error(ctx, "oauth login error", "error", err)
		}
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	}

	h.record(strategies.GoogleName, resultSuccess)
	h.logger.Info(ctx, "login succeeded", "strategy", strategies.GoogleName, "user_id", id.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// logout is best effort: store errors are logged, never returned.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := h.Sessions.SessionID(r); ok {
		if err := h.Sessions.DestroySession(r.Context(), sid); err != nil {
			h.logger.Warn(r.Context(), "session destroy failed", "sid", common.Fingerprint(sid), "error", err)
		}
	}
	h.Sessions.ClearCookie(w)
	http.SetCookie(w, &http.Cookie{
		Name:     authctx.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, logoutResponse{Success: true})
}

// establish rotates the session to a new one bound to id and sets the
// session and token cookies. It returns the signed token.
func (h *handlers) establish(w http.ResponseWriter, r *http.Request, id models.Identity) (string, error) {
	ctx := r.Context()
	if st, ok := sessions.FromContext(ctx); ok && st.SessionID != "" {
		if err := h.Sessions.DestroySession(ctx, st.SessionID); err != nil {
			h.logger.Warn(ctx, "previous session not destroyed", "error", err)
		}
	}

	sid, err := h.Sessions.CreateSession(ctx, id)
	if err != nil {
		return "", err
	}
	token, err := h.Tokens.Sign(id)
	if err != nil {
		return "", err
	}

	h.Sessions.SetCookie(w, sid)
	http.SetCookie(w, &http.Cookie{
		Name:     authctx.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.TokenMaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// authFailed maps a strategy error onto the response. Credential failures
// redirect back to the login page without saying what was wrong.
func (h *handlers) authFailed(w http.ResponseWriter, r *http.Request, strategy string, err error) {
	ctx := r.Context()
	switch {
	case common.IsLoginFailure(err):
		h.record(strategy, resultFailure)
		h.logger.Info(ctx, "login failed", "strategy", strategy)
		http.Redirect(w, r, loginPath, http.StatusFound)
	case errors.Is(err, common.ErrStrategyInput):
		h.record(strategy, resultFailure)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed credentials"})
	case errors.Is(err, common.ErrSessionStoreUnavailable):
		h.record(strategy, resultError)
		h.logger.Error(ctx, "session store unavailable during login", "strategy", strategy, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
	default:
		h.record(strategy, resultError)
		h.logger.Error(ctx, "login error", "strategy", strategy, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *handlers) record(strategy, result string) {
	if h.Logins != nil {
		h.Logins.Login(strategy, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
