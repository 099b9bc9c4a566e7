package ews

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-authgate/exchauth/internal/core"
)

const getFolderRequest = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
    xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
    xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
  <soap:Header>
    <t:RequestServerVersion Version="%s"/>
  </soap:Header>
  <soap:Body>
    <m:GetFolder>
      <m:FolderShape><t:BaseShape>IdOnly</t:BaseShape></m:FolderShape>
      <m:FolderIds>
        <t:DistinguishedFolderId Id="root">
          <t:Mailbox><t:EmailAddress>%s</t:EmailAddress></t:Mailbox>
        </t:DistinguishedFolderId>
      </m:FolderIds>
    </m:GetFolder>
  </soap:Body>
</soap:Envelope>`

type getFolderEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
		Messages []struct {
			ResponseClass string `xml:"ResponseClass,attr"`
			ResponseCode  string `xml:"ResponseCode"`
			MessageText   string `xml:"MessageText"`
		} `xml:"GetFolderResponse>ResponseMessages>GetFolderResponseMessage"`
	} `xml:"Body"`
}

// getRootFolder binds to the mailbox root folder, which succeeds only when
// the credentials may open the mailbox.
func (c *Client) getRootFolder(
	ctx context.Context,
	endpoint, smtpAddress string,
	cred core.Credentials,
) error {
	body := fmt.Sprintf(getFolderRequest, xmlEscape(c.serverVersion), xmlEscape(smtpAddress))

	status, data, err := c.post(ctx, endpoint, body, cred)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return ErrUnauthorized
	}

	var env getFolderEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		if status >= 500 {
			return fmt.Errorf("%w: HTTP %d", ErrUnavailable, status)
		}
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	// EWS reports SOAP faults with HTTP 500.
	if f := env.Body.Fault; f != nil {
		return fmt.Errorf("%w: soap fault %s: %s", ErrInvalidResponse, f.Code, f.String)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, status)
	}
	if len(env.Body.Messages) == 0 {
		return fmt.Errorf("%w: empty GetFolder response", ErrInvalidResponse)
	}

	msg := env.Body.Messages[0]
	if !strings.EqualFold(msg.ResponseClass, "Success") {
		return fmt.Errorf("%w: %s", ErrMailboxAccessDenied, msg.ResponseCode)
	}
	return nil
}
