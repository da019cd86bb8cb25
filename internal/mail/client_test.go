package mail

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestListMessagesSendsBearerToken(t *testing.T) {
	var authorization, accept string
	server := newTestServer(t, func(writer http.ResponseWriter, request *http.Request) {
		authorization = request.Header.Get("Authorization")
		accept = request.Header.Get("Accept")
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"value":[]}`))
	})

	body, err := NewClient(server.URL).ListMessages(context.Background(), &oauth2.Token{AccessToken: "access-1", TokenType: "Bearer"}, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"value":[]}`, string(body))
	assert.Equal(t, "Bearer access-1", authorization)
	assert.Equal(t, "application/json", accept)
}

func TestListMessagesQuery(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		query    *ListQuery
		expected map[string]string
	}{
		{name: "no query", query: nil, expected: map[string]string{}},
		{name: "zero values are omitted", query: &ListQuery{}, expected: map[string]string{}},
		{name: "top and skip", query: &ListQuery{Top: 25, Skip: 50}, expected: map[string]string{"$top": "25", "$skip": "50"}},
		{name: "endpoint query is kept", endpoint: "?$select=subject", query: &ListQuery{Top: 5}, expected: map[string]string{"$select": "subject", "$top": "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := map[string]string{}
			server := newTestServer(t, func(writer http.ResponseWriter, request *http.Request) {
				for key := range request.URL.Query() {
					received[key] = request.URL.Query().Get(key)
				}
				writer.Write([]byte(`{}`))
			})

			_, err := NewClient(server.URL+tt.endpoint).ListMessages(context.Background(), &oauth2.Token{AccessToken: "a"}, tt.query)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, received)
		})
	}
}

func TestListMessagesUpstreamError(t *testing.T) {
	server := newTestServer(t, func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusForbidden)
		writer.Write([]byte(`{"error":{"code":"ErrorAccessDenied"}}`))
	})

	body, err := NewClient(server.URL).ListMessages(context.Background(), &oauth2.Token{AccessToken: "a"}, nil)

	assert.Nil(t, body)
	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusForbidden, upstreamErr.StatusCode)
	assert.Equal(t, "application/json", upstreamErr.ContentType)
	assert.Equal(t, `{"error":{"code":"ErrorAccessDenied"}}`, string(upstreamErr.Body))
	assert.Contains(t, upstreamErr.Error(), "403")
}

func TestListMessagesExpiredTokenIsStillSent(t *testing.T) {
	var authorization string
	server := newTestServer(t, func(writer http.ResponseWriter, request *http.Request) {
		authorization = request.Header.Get("Authorization")
		writer.WriteHeader(http.StatusUnauthorized)
	})
	token := &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}

	_, err := NewClient(server.URL).ListMessages(context.Background(), token, nil)

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
	assert.Equal(t, "Bearer stale", authorization)
}

func TestListMessagesTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := NewClient(server.URL).ListMessages(context.Background(), &oauth2.Token{AccessToken: "a"}, nil)

	require.Error(t, err)
	var upstreamErr *UpstreamError
	assert.False(t, errors.As(err, &upstreamErr))
}

func TestListMessagesUsesConfiguredHTTPClient(t *testing.T) {
	var userAgent string
	server := newTestServer(t, func(writer http.ResponseWriter, request *http.Request) {
		userAgent = request.Header.Get("User-Agent")
		writer.Write([]byte(`{}`))
	})
	client := NewClient(server.URL)
	client.HTTPClient = &http.Client{Transport: userAgentTransport{agent: "inbox-test"}}

	_, err := client.ListMessages(context.Background(), &oauth2.Token{AccessToken: "a"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "inbox-test", userAgent)
}

type userAgentTransport struct {
	agent string
}

func (transport userAgentTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	request = request.Clone(request.Context())
	request.Header.Set("User-Agent", transport.agent)
	return http.DefaultTransport.RoundTrip(request)
}

func TestNewClientDefaultEndpoint(t *testing.T) {
	assert.Equal(t, DefaultEndpoint, NewClient("").Endpoint)
}
