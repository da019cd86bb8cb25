package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"golang.org/x/oauth2"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultEndpoint is the Microsoft Graph endpoint listing the messages of the signed-in user
const DefaultEndpoint = "https://graph.microsoft.com/v1.0/me/messages"

// UpstreamError is returned whenever the messages API answers with a status other than 200 OK
type UpstreamError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (err *UpstreamError) Error() string {
	return fmt.Sprintf("messages API responded with status %d: %s", err.StatusCode, string(err.Body))
}

// ListQuery holds the optional paging parameters of a message list request.
// Zero values are not sent.
type ListQuery struct {
	Top  int
	Skip int
}

func (query *ListQuery) values() url.Values {
	values := url.Values{}
	if query == nil {
		return values
	}
	if query.Top > 0 {
		values.Set("$top", strconv.Itoa(query.Top))
	}
	if query.Skip > 0 {
		values.Set("$skip", strconv.Itoa(query.Skip))
	}
	return values
}

// Client fetches the messages of a user from a REST API authenticated by an OAuth2 bearer token
type Client struct {
	Endpoint string

	// HTTPClient is the base client the bearer transport wraps; http.DefaultClient is used if nil
	HTTPClient *http.Client
}

// NewClient creates a new messages client targeting the given endpoint
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{Endpoint: endpoint}
}

// ListMessages issues a single GET request to the messages endpoint and returns the raw JSON body.
// Responses other than 200 OK result in an *UpstreamError carrying the upstream status code and body.
func (client *Client) ListMessages(ctx context.Context, token *oauth2.Token, query *ListQuery) (json.RawMessage, error) {
	endpoint, err := url.Parse(client.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse messages endpoint: %w", err)
	}
	values := endpoint.Query()
	for key, vals := range query.values() {
		values[key] = vals
	}
	endpoint.RawQuery = values.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create messages request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	if client.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client.HTTPClient)
	}
	response, err := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)).Do(request)
	if err != nil {
		return nil, fmt.Errorf("request messages: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read messages response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			StatusCode:  response.StatusCode,
			ContentType: response.Header.Get("Content-Type"),
			Body:        body,
		}
	}
	return body, nil
}
