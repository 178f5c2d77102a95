// Package auth delegates identity to an external OIDC provider. The
// session holds the verified identity and the oauth token; the token is
// handed to the backend client on demand and never persisted elsewhere.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/core/claims"
	"golang.org/x/oauth2"
)

const (
	identityKey = "identity"
	tokenKey    = "oauth_token"
	providerKey = "oauth_provider"
	stateKey    = "oauth_state"
	returnKey   = "oauth_return"
)

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

type Provider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// MakeProviders discovers the configured OIDC issuers and builds their
// oauth configs and ID-token verifiers.
func MakeProviders(ctx context.Context, configs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(configs))

	for _, cfg := range configs {
		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %q: %w", cfg.Name, err)
		}

		provs[cfg.Name] = Provider{
			oauth: &oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}

	return provs, nil
}

// Identity is what the session remembers about the signed-in user.
type Identity struct {
	Subject  string `json:"subject"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

func login(ctx context.Context, session *scs.SessionManager, name string, idn Identity, tok *oauth2.Token) error {
	// Renew the session token on privilege change.
	if err := session.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}

	ib, err := json.Marshal(idn)
	if err != nil {
		return fmt.Errorf("marshaling identity: %w", err)
	}
	tb, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshaling oauth token: %w", err)
	}

	session.Put(ctx, identityKey, string(ib))
	session.Put(ctx, tokenKey, string(tb))
	session.Put(ctx, providerKey, name)
	return nil
}

func identityFrom(ctx context.Context, session *scs.SessionManager) (Identity, bool) {
	raw := session.GetString(ctx, identityKey)
	if raw == "" {
		return Identity{}, false
	}

	var idn Identity
	if err := json.Unmarshal([]byte(raw), &idn); err != nil {
		session.Remove(ctx, identityKey)
		return Identity{}, false
	}
	return idn, true
}

// LoadAndSave adapts the session manager's middleware to this API's
// handler shape.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			sh := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			}))
			sh.ServeHTTP(w, r)

			return err
		}
		return h
	}
	return m
}

// Authenticate requires a signed-in identity and puts it on the context.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			idn, ok := identityFrom(ctx, session)
			if !ok {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			ctx = claims.Set(ctx, claims.Claims{
				Subject:  idn.Subject,
				Email:    idn.Email,
				FullName: idn.FullName,
				Phone:    idn.Phone,
			})

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Identify puts the identity on the context when present but lets
// anonymous requests through. The return-flow verifier uses it: a user
// may land back from the payment provider in a fresh, signed-out tab.
func Identify(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if idn, ok := identityFrom(ctx, session); ok {
				ctx = claims.Set(ctx, claims.Claims{
					Subject:  idn.Subject,
					Email:    idn.Email,
					FullName: idn.FullName,
					Phone:    idn.Phone,
				})
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Tokens builds the backend client's token provider: it reads the session
// token, refreshing it through the originating provider when expired. Any
// failure yields no token, which degrades the request to unauthenticated.
func Tokens(session *scs.SessionManager, providers map[string]Provider) backend.TokenProvider {
	return backend.TokenProviderFunc(func(ctx context.Context) (string, error) {
		raw := session.GetString(ctx, tokenKey)
		if raw == "" {
			return "", errors.New("no session token")
		}

		var tok oauth2.Token
		if err := json.Unmarshal([]byte(raw), &tok); err != nil {
			return "", fmt.Errorf("decoding session token: %w", err)
		}

		if tok.Valid() {
			return tok.AccessToken, nil
		}

		if tok.RefreshToken == "" {
			return "", errors.New("session token expired")
		}

		p, ok := providers[session.GetString(ctx, providerKey)]
		if !ok {
			return "", errors.New("unknown token provider")
		}

		fresh, err := p.oauth.TokenSource(ctx, &tok).Token()
		if err != nil {
			return "", fmt.Errorf("refreshing token: %w", err)
		}

		if b, err := json.Marshal(fresh); err == nil {
			session.Put(ctx, tokenKey, string(b))
		}
		return fresh.AccessToken, nil
	})
}

// SanitizeReturnPath accepts only same-origin relative paths, preventing
// the sign-in redirect from becoming an open redirect.
func SanitizeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") {
		return "/"
	}
	if strings.HasPrefix(p, "//") || strings.Contains(p, "\\") {
		return "/"
	}
	return p
}
