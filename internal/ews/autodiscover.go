package ews

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-authgate/exchauth/internal/core"
)

const autodiscoverRequest = `<?xml version="1.0" encoding="utf-8"?>
<Autodiscover xmlns="http://schemas.microsoft.com/exchange/autodiscover/outlook/requestschema/2006">
  <Request>
    <EMailAddress>%s</EMailAddress>
    <AcceptableResponseSchema>http://schemas.microsoft.com/exchange/autodiscover/outlook/responseschema/2006a</AcceptableResponseSchema>
  </Request>
</Autodiscover>`

type autodiscoverResponse struct {
	XMLName  xml.Name `xml:"Autodiscover"`
	Response struct {
		Error *struct {
			ErrorCode string `xml:"ErrorCode"`
			Message   string `xml:"Message"`
		} `xml:"Error"`
		Account struct {
			Protocols []struct {
				Type   string `xml:"Type"`
				EwsURL string `xml:"EwsUrl"`
			} `xml:"Protocol"`
		} `xml:"Account"`
	} `xml:"Response"`
}

// Autodiscover finds the EWS endpoint of a mailbox. Candidates are tried in
// order; a credential rejection from any of them ends the search.
func (c *Client) Autodiscover(
	ctx context.Context,
	smtpAddress string,
	cred core.Credentials,
) (string, error) {
	at := strings.LastIndex(smtpAddress, "@")
	if at < 0 || at == len(smtpAddress)-1 {
		return "", fmt.Errorf("%w: no domain in %q", ErrAutodiscoverFailed, smtpAddress)
	}
	domain := smtpAddress[at+1:]

	body := fmt.Sprintf(autodiscoverRequest, xmlEscape(smtpAddress))

	var lastErr error
	for _, url := range c.autodiscoverURLs(domain) {
		endpoint, err := c.tryAutodiscover(ctx, url, body, cred)
		if err == nil {
			return endpoint, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.WithField("url", url).WithError(err).Debug("[EWS] autodiscover candidate failed")
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no candidates")
	}
	return "", fmt.Errorf("%w: %v", ErrAutodiscoverFailed, lastErr)
}

func (c *Client) tryAutodiscover(
	ctx context.Context,
	url, body string,
	cred core.Credentials,
) (string, error) {
	status, data, err := c.post(ctx, url, body, cred)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := statusError(status); err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrInvalidResponse, status)
	}

	var resp autodiscoverResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if e := resp.Response.Error; e != nil {
		return "", fmt.Errorf("%w: autodiscover error %s: %s", ErrInvalidResponse, e.ErrorCode, e.Message)
	}

	// Prefer the internal (EXCH) endpoint, then the external (EXPR) one.
	var fallback string
	for _, p := range resp.Response.Account.Protocols {
		if p.EwsURL == "" {
			continue
		}
		switch p.Type {
		case "EXCH":
			return p.EwsURL, nil
		case "EXPR":
			fallback = p.EwsURL
		default:
			if fallback == "" {
				fallback = p.EwsURL
			}
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("%w: no EwsUrl in autodiscover response", ErrInvalidResponse)
	}
	return fallback, nil
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
