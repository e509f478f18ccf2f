package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/gateway/checkout"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/httpx"
	"github.com/sirupsen/logrus"
)

const (
	CookieName      = "jwtToken"
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserRoles = "X-User-Roles"

	validatePath = "/api/auth/validate"
)

type Identity struct {
	ID    checkout.Ref `json:"id"`
	Name  string       `json:"name"`
	Roles []string     `json:"roles"`
}

// Authenticator validates the session cookie against the auth service.
type Authenticator struct {
	client  *http.Client
	authURL string
	log     *logrus.Entry
}

func NewAuthenticator(client *http.Client, authURL string, log *logrus.Entry) *Authenticator {
	return &Authenticator{
		client:  client,
		authURL: strings.TrimRight(authURL, "/"),
		log:     log,
	}
}

// Middleware rejects requests without a valid jwtToken cookie and replaces
// any client supplied identity headers with the validated ones.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range identityHeaders {
			r.Header.Del(h)
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			unauthorized(w)
			return
		}

		id, err := a.validate(r.Context(), cookie.Value)
		if err != nil {
			a.log.WithContext(r.Context()).WithError(err).Debug("token validation failed")
			unauthorized(w)
			return
		}

		r.Header.Set(HeaderUserID, string(id.ID))
		r.Header.Set(HeaderUserName, id.Name)
		r.Header.Set(HeaderUserRoles, strings.Join(id.Roles, ","))
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) validate(ctx context.Context, token string) (*Identity, error) {
	if a.authURL == "" {
		return nil, errAuthNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.authURL+validatePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, err
	}
	return &id, nil
}

func unauthorized(w http.ResponseWriter) {
	httpx.RespondError(w, http.StatusUnauthorized, "", "Unauthorized")
}

// setSessionCookie stores the token returned by a successful login.
func setSessionCookie(w http.ResponseWriter, r *http.Request, data any) {
	obj, ok := data.(map[string]any)
	if !ok {
		return
	}
	token, _ := obj["jwtToken"].(string)
	if token == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}
