package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPath is the raw SQL endpoint of the backend.
const DefaultPath = "sql?mode=raw"

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	Endpoint    string
	Path        string
	BearerToken string
	Timeout     time.Duration
}

// HTTPClient posts statements to the backend's SQL endpoint as
// application/x-www-form-urlencoded and decodes the JSON reply.
type HTTPClient struct {
	endpoint    *url.URL
	path        string
	bearerToken string
	client      *http.Client
}

func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	endpoint, err := url.Parse(config.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, &APIError{
			Code:    http.StatusBadRequest,
			Message: fmt.Sprintf("invalid endpoint URL: %v", config.Endpoint),
			Err:     err,
		}
	}
	path := config.Path
	if path == "" {
		path = DefaultPath
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		endpoint:    endpoint,
		path:        path,
		bearerToken: config.BearerToken,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *HTTPClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

func (c *HTTPClient) WithPath(path string) Client {
	if path == "" || path == c.path {
		return c
	}
	clone := *c
	clone.path = path
	return &clone
}

// Path returns the routing path requests are sent to.
func (c *HTTPClient) Path() string {
	return c.path
}

func (c *HTTPClient) Send(ctx context.Context, query string) (res Result, err error) {
	start := time.Now()
	defer func() { observe(start, res, err) }()

	reqURL, err := c.requestURL()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("query", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &APIError{
			Code:    http.StatusBadGateway,
			Message: "failed to create request",
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	log.Debug().Str("url", reqURL).Str("query", query).Msg("Sending backend request")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &APIError{
			Code:    http.StatusBadGateway,
			Message: "failed to execute request",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Code:    http.StatusBadGateway,
			Message: "failed to read response body",
			Err:     err,
		}
	}

	// The backend reports statement errors as JSON with a non-2xx status;
	// those are results, not transport failures.
	res, decodeErr := DecodeResult(body)
	if decodeErr == nil {
		return res, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &APIError{
			Code:    http.StatusBadGateway,
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, msg),
		}
	}
	return nil, &APIError{
		Code:    http.StatusBadGateway,
		Message: "invalid backend response",
		Err:     decodeErr,
	}
}

func (c *HTTPClient) requestURL() (string, error) {
	path, rawQuery, _ := strings.Cut(c.path, "?")
	u := c.endpoint.JoinPath(path)
	if rawQuery != "" {
		q, err := url.ParseQuery(rawQuery)
		if err != nil {
			return "", &APIError{
				Code:    http.StatusBadRequest,
				Message: fmt.Sprintf("invalid request path: %v", c.path),
				Err:     err,
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
