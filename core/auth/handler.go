package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/random"
)

// HandleLogin starts the OIDC flow: remember state and the validated
// return path, then send the browser to the provider.
func HandleLogin(session *scs.SessionManager, providers map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, ok := providers[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(fmt.Errorf("unknown provider %q", web.Param(r, "provider")))
		}

		state, err := random.StringSecure(24)
		if err != nil {
			return fmt.Errorf("generating state: %w", err)
		}

		session.Put(ctx, stateKey, state)
		session.Put(ctx, returnKey, SanitizeReturnPath(web.Query(r, "redirect_url")))

		return web.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusFound)
	}
}

// HandleCallback finishes the OIDC flow: verify state and the ID token,
// store identity and token in the session, and return the user to where
// they started.
func HandleCallback(session *scs.SessionManager, providers map[string]Provider, defaultRedirect string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "provider")
		p, ok := providers[name]
		if !ok {
			return weberr.NotFound(fmt.Errorf("unknown provider %q", name))
		}

		state := session.PopString(ctx, stateKey)
		if state == "" || state != web.Query(r, "state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		tok, err := p.oauth.Exchange(ctx, web.Query(r, "code"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("exchanging code: %w", err))
		}

		rawID, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.BadRequest(errors.New("no id_token in provider response"))
		}

		idToken, err := p.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("verifying id token: %w", err))
		}

		var profile struct {
			Email string `json:"email"`
			Name  string `json:"name"`
			Phone string `json:"phone_number"`
		}
		if err := idToken.Claims(&profile); err != nil {
			return fmt.Errorf("extracting claims: %w", err)
		}

		idn := Identity{
			Subject:  idToken.Subject,
			Email:    profile.Email,
			FullName: profile.Name,
			Phone:    profile.Phone,
		}
		if err := login(ctx, session, name, idn, tok); err != nil {
			return err
		}

		returnTo := session.PopString(ctx, returnKey)
		if returnTo == "" {
			returnTo = defaultRedirect
		}
		return web.Redirect(w, r, SanitizeReturnPath(returnTo), http.StatusFound)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleCheck forwards the sign-in hint lookup. The backend answers with
// a generic message either way, so this route reveals nothing about
// account existence; it is rate limited at the route level.
func HandleCheck(b *backend.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		email := web.Query(r, "email")
		if email == "" {
			return weberr.BadRequest(errors.New("email query parameter is required"))
		}

		msg, err := b.CheckClient(ctx, email)
		if err != nil {
			return err
		}

		out := struct {
			Message string `json:"message"`
		}{Message: msg}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
