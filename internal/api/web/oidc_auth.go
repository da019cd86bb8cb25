package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/hlog"
	"github.com/skybi/inbox/internal/api/web/session"
	"github.com/skybi/inbox/internal/metrics"
	"github.com/skybi/inbox/internal/random"
	"golang.org/x/oauth2"
	"net/http"
	"time"
)

var (
	stateLength         = 16
	nonceLength         = 16
	cookieNameState     = "login_state"
	cookieLifetimeState = int(time.Hour.Seconds())
)

// OAuth error codes reported for callback failures the provider did not name itself
const (
	errCodeMismatchingState = "mismatching_state"
	errCodeExchangeFailed   = "token_exchange_failed"
	errCodeMissingIDToken   = "missing_id_token"
	errCodeInvalidIDToken   = "invalid_id_token"
	errCodeInvalidNonce     = "invalid_nonce"
)

type loginFlowState struct {
	ID       string `json:"id"`
	Nonce    string `json:"nonce"`
	Verifier string `json:"verifier"`
}

type idTokenClaims struct {
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

func (claims *idTokenClaims) displayName() string {
	switch {
	case claims.Name != "":
		return claims.Name
	case claims.PreferredUsername != "":
		return claims.PreferredUsername
	default:
		return claims.Email
	}
}

// EndpointLogin handles the 'GET /login' endpoint
func (service *Service) EndpointLogin(writer http.ResponseWriter, request *http.Request) {
	// Create and set the login flow state cookie
	state := loginFlowState{
		ID:       random.MustString(stateLength, random.CharsetAlphanumeric),
		Nonce:    random.MustString(nonceLength, random.CharsetAlphanumeric),
		Verifier: oauth2.GenerateVerifier(),
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	http.SetCookie(writer, &http.Cookie{
		Name:     cookieNameState,
		Value:    base64.RawURLEncoding.EncodeToString(stateJSON),
		Path:     "/",
		MaxAge:   cookieLifetimeState,
		Secure:   service.Config.IsSecure(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect the user to the authorization endpoint of the identity provider
	authURL := service.oauth2Config.AuthCodeURL(state.ID, oidc.Nonce(state.Nonce), oauth2.S256ChallengeOption(state.Verifier))
	http.Redirect(writer, request, authURL, http.StatusFound)
}

// EndpointAuthCallback handles the 'GET /auth' endpoint the identity provider redirects to
func (service *Service) EndpointAuthCallback(writer http.ResponseWriter, request *http.Request) {
	logger := hlog.FromRequest(request)
	query := request.URL.Query()

	// The provider reports a denied or failed authorization through the query
	if code := query.Get("error"); code != "" {
		logger.Info().Str("error", code).Str("description", query.Get("error_description")).Msg("identity provider rejected the authorization")
		service.loginFailed(writer, code)
		return
	}

	// Validate the state against the login flow cookie
	state, err := readLoginFlowState(request)
	if err != nil || query.Get("state") != state.ID {
		service.loginFailed(writer, errCodeMismatchingState)
		return
	}
	unsetCookie(writer, cookieNameState)

	// Exchange the code for a token and verify the ID token + nonce
	token, err := service.oauth2Config.Exchange(request.Context(), query.Get("code"), oauth2.VerifierOption(state.Verifier))
	if err != nil {
		logger.Info().Err(err).Msg("could not exchange the authorization code")
		service.loginFailed(writer, exchangeErrorCode(err))
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		service.loginFailed(writer, errCodeMissingIDToken)
		return
	}
	idToken, err := service.idTokenVerifier.Verify(request.Context(), rawIDToken)
	if err != nil {
		logger.Info().Err(err).Msg("received an invalid ID token")
		service.loginFailed(writer, errCodeInvalidIDToken)
		return
	}
	if idToken.Nonce != state.Nonce {
		service.loginFailed(writer, errCodeInvalidNonce)
		return
	}
	claims := new(idTokenClaims)
	if err := idToken.Claims(claims); err != nil {
		service.loginFailed(writer, errCodeInvalidIDToken)
		return
	}

	// Store the token in a new session
	ses, rawSessionToken, err := service.Sessions.Create(request.Context(), &session.Create{
		OAuth2Token: token,
		Subject:     idToken.Subject,
		DisplayName: claims.displayName(),
		Expires:     time.Now().Add(service.Config.SessionLifetime).Unix(),
	})
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.Metrics.ObserveLogin(metrics.LoginSucceeded)
	service.Metrics.SessionsCreated.Inc()
	logger.Debug().
		Stringer("session", ses.ID).
		Str("subject", ses.Subject).
		Str("token_type", token.Type()).
		Time("token_expiry", token.Expiry).
		Msg("created session")

	http.SetCookie(writer, &http.Cookie{
		Name:     cookieNameSession,
		Value:    rawSessionToken,
		Path:     "/",
		Secure:   service.Config.IsSecure(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(writer, request, "/emails", http.StatusFound)
}

// EndpointLogout handles the 'GET /logout' endpoint
func (service *Service) EndpointLogout(writer http.ResponseWriter, request *http.Request) {
	if cookie, err := request.Cookie(cookieNameSession); err == nil && cookie.Value != "" {
		if err := service.Sessions.TerminateByRawToken(request.Context(), cookie.Value); err != nil {
			service.writer.WriteInternalError(writer, err)
			return
		}
	}
	unsetCookie(writer, cookieNameSession)
	http.Redirect(writer, request, "/", http.StatusFound)
}

func (service *Service) loginFailed(writer http.ResponseWriter, code string) {
	service.Metrics.ObserveLogin(metrics.LoginFailed)
	service.oauthError(writer, code)
}

func readLoginFlowState(request *http.Request) (*loginFlowState, error) {
	cookie, err := request.Cookie(cookieNameState)
	if err != nil {
		return nil, err
	}
	stateJSON, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, err
	}
	state := new(loginFlowState)
	if err := json.Unmarshal(stateJSON, state); err != nil {
		return nil, err
	}
	if state.ID == "" {
		return nil, errors.New("empty login flow state")
	}
	return state, nil
}

// exchangeErrorCode extracts the error code the token endpoint responded with.
// The error itself may carry the raw response body and is only logged.
func exchangeErrorCode(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		return retrieveErr.ErrorCode
	}
	return errCodeExchangeFailed
}

func unsetCookie(writer http.ResponseWriter, name string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
