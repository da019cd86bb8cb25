package web

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const (
	testClientID     = "client-1"
	testClientSecret = "secret-1"
	testAccessToken  = "access-123"
	testValidCode    = "valid-code"
	testBrokenCode   = "broken-code"
	testKeyID        = "test-key"
)

// fakeProvider is an OIDC identity provider serving discovery, JWKS and a token endpoint
type fakeProvider struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	// signKey replaces key when signing ID tokens; it is never published in the JWKS
	signKey *rsa.PrivateKey

	mu           sync.Mutex
	nonce        string
	lastVerifier string
	omitIDToken  bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	provider := &fakeProvider{t: t, key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", provider.discovery)
	mux.HandleFunc("/keys", provider.keys)
	mux.HandleFunc("/token", provider.token)
	provider.server = httptest.NewServer(mux)
	t.Cleanup(provider.server.Close)
	return provider
}

func (provider *fakeProvider) URL() string {
	return provider.server.URL
}

func (provider *fakeProvider) setNonce(nonce string) {
	provider.mu.Lock()
	defer provider.mu.Unlock()
	provider.nonce = nonce
}

func (provider *fakeProvider) verifier() string {
	provider.mu.Lock()
	defer provider.mu.Unlock()
	return provider.lastVerifier
}

func (provider *fakeProvider) discovery(writer http.ResponseWriter, _ *http.Request) {
	writeTestJSON(writer, http.StatusOK, map[string]any{
		"issuer":                                provider.URL(),
		"authorization_endpoint":                provider.URL() + "/authorize",
		"token_endpoint":                        provider.URL() + "/token",
		"jwks_uri":                              provider.URL() + "/keys",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (provider *fakeProvider) keys(writer http.ResponseWriter, _ *http.Request) {
	writeTestJSON(writer, http.StatusOK, jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       &provider.key.PublicKey,
			KeyID:     testKeyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}},
	})
}

func (provider *fakeProvider) token(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		writeTestJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if request.PostForm.Get("code") == testBrokenCode {
		writer.Header().Set("Content-Type", "text/plain")
		writer.WriteHeader(http.StatusInternalServerError)
		writer.Write([]byte("upstream database timeout at db-7.internal"))
		return
	}
	if request.PostForm.Get("code") != testValidCode {
		writeTestJSON(writer, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "The provided authorization code is invalid or expired.",
		})
		return
	}

	provider.mu.Lock()
	provider.lastVerifier = request.PostForm.Get("code_verifier")
	nonce := provider.nonce
	omitIDToken := provider.omitIDToken
	provider.mu.Unlock()

	response := map[string]any{
		"access_token": testAccessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !omitIDToken {
		response["id_token"] = provider.signIDToken(map[string]any{
			"iss":   provider.URL(),
			"aud":   testClientID,
			"sub":   "user-1",
			"name":  "Jane Doe",
			"nonce": nonce,
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
	}
	writeTestJSON(writer, http.StatusOK, response)
}

func (provider *fakeProvider) signIDToken(claims map[string]any) string {
	provider.mu.Lock()
	key := provider.key
	if provider.signKey != nil {
		key = provider.signKey
	}
	provider.mu.Unlock()

	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.RS256,
		Key:       jose.JSONWebKey{Key: key, KeyID: testKeyID},
	}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(provider.t, err)

	payload, err := json.Marshal(claims)
	require.NoError(provider.t, err)
	signed, err := signer.Sign(payload)
	require.NoError(provider.t, err)
	raw, err := signed.CompactSerialize()
	require.NoError(provider.t, err)
	return raw
}

// fakeMessagesAPI serves the messages endpoint and answers with a configurable status
type fakeMessagesAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	status    int
	body      string
	lastQuery string
}

const testMessagesBody = `{"value":[{"id":"msg-1","subject":"Hello"}]}`

func newFakeMessagesAPI(t *testing.T) *fakeMessagesAPI {
	api := &fakeMessagesAPI{status: http.StatusOK, body: testMessagesBody}
	api.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		api.lastQuery = request.URL.RawQuery

		writer.Header().Set("Content-Type", "application/json")
		if request.Header.Get("Authorization") != "Bearer "+testAccessToken {
			writer.WriteHeader(http.StatusUnauthorized)
			writer.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken"}}`))
			return
		}
		writer.WriteHeader(api.status)
		writer.Write([]byte(api.body))
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (api *fakeMessagesAPI) respond(status int, body string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.status = status
	api.body = body
}

func (api *fakeMessagesAPI) query() string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.lastQuery
}

func writeTestJSON(writer http.ResponseWriter, status int, value any) {
	body, _ := json.Marshal(value)
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	writer.Write(body)
}
