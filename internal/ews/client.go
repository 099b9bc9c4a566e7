// Package ews is a minimal Exchange Web Services client: just enough of
// autodiscover and EWS to prove that a set of credentials can open a
// mailbox. It is not a general EWS implementation.
package ews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/core"
)

const (
	defaultServerVersion = "Exchange2013_SP1"
	ewsPath              = "/EWS/Exchange.asmx"
	autodiscoverPath     = "/autodiscover/autodiscover.xml"
	maxBodySize          = 1 << 20
)

// Compile-time interface check.
var _ core.DirectoryClient = (*Client)(nil)

// Client talks to Exchange over HTTP(S) with basic authentication.
type Client struct {
	httpClient         *http.Client
	timeout            time.Duration
	insecureSkipVerify bool
	autodiscoverScheme string
	serverVersion      string
	autodiscoverURLs   func(domain string) []string
	logger             logrus.FieldLogger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInsecureSkipVerify disables TLS verification (lab servers only).
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) { c.insecureSkipVerify = skip }
}

// WithAutodiscoverScheme sets the scheme of the default autodiscover URLs.
func WithAutodiscoverScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.autodiscoverScheme = scheme
		}
	}
}

// WithServerVersion sets the RequestServerVersion header value.
func WithServerVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.serverVersion = v
		}
	}
}

// WithAutodiscoverURLs replaces the candidate URL list for a domain.
func WithAutodiscoverURLs(fn func(domain string) []string) Option {
	return func(c *Client) { c.autodiscoverURLs = fn }
}

// WithHTTPClient uses an existing HTTP client instead of building one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an Exchange client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:            30 * time.Second,
		autodiscoverScheme: "https",
		serverVersion:      defaultServerVersion,
		logger:             logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.autodiscoverURLs == nil {
		c.autodiscoverURLs = c.defaultAutodiscoverURLs
	}

	if c.httpClient == nil {
		// Credentials are per request (basic auth), so the client itself
		// carries no API secret.
		hc, err := httpclient.NewAuthClient(
			httpclient.AuthModeNone,
			"",
			httpclient.WithTimeout(c.timeout),
			httpclient.WithInsecureSkipVerify(c.insecureSkipVerify),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create exchange http client: %w", err)
		}
		c.httpClient = hc
	}
	return c, nil
}

// Configure binds credentials to a static server and checks that the server
// accepts them. endpoint is either a hostname or a full EWS URL.
func (c *Client) Configure(
	ctx context.Context,
	endpoint string,
	cred core.Credentials,
) (*core.DirectoryConfig, error) {
	serviceURL := ServiceURL(endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.SetBasicAuth(cred.Username, cred.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	return &core.DirectoryConfig{Endpoint: serviceURL}, nil
}

// OpenSession opens the mailbox as a delegate. Without req.Config the EWS
// endpoint is found by autodiscover first.
func (c *Client) OpenSession(ctx context.Context, req core.SessionRequest) (*core.Session, error) {
	endpoint := ""
	if req.Config != nil {
		endpoint = req.Config.Endpoint
	} else {
		var err error
		endpoint, err = c.Autodiscover(ctx, req.SMTPAddress, req.Credentials)
		if err != nil {
			return nil, err
		}
	}

	if err := c.getRootFolder(ctx, endpoint, req.SMTPAddress, req.Credentials); err != nil {
		return nil, err
	}
	return &core.Session{Endpoint: endpoint, SMTPAddress: req.SMTPAddress}, nil
}

// ServiceURL expands a bare hostname to the standard EWS URL.
func ServiceURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + strings.TrimSuffix(endpoint, "/") + ewsPath
}

func (c *Client) defaultAutodiscoverURLs(domain string) []string {
	return []string{
		c.autodiscoverScheme + "://" + domain + autodiscoverPath,
		c.autodiscoverScheme + "://autodiscover." + domain + autodiscoverPath,
	}
}

func (c *Client) post(
	ctx context.Context,
	url string,
	body string,
	cred core.Credentials,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.SetBasicAuth(cred.Username, cred.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, code)
	default:
		return nil
	}
}
