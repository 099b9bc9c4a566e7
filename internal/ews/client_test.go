package ews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/exchauth/internal/core"
)

const (
	testUser     = `dom\alice`
	testPassword = "s3cret-pa55"
)

const autodiscoverOK = `<?xml version="1.0" encoding="utf-8"?>
<Autodiscover xmlns="http://schemas.microsoft.com/exchange/autodiscover/responseschema/2006">
  <Response xmlns="http://schemas.microsoft.com/exchange/autodiscover/outlook/responseschema/2006a">
    <Account>
      <Protocol><Type>EXPR</Type><EwsUrl>https://external.invalid/EWS/Exchange.asmx</EwsUrl></Protocol>
      <Protocol><Type>EXCH</Type><EwsUrl>%s</EwsUrl></Protocol>
    </Account>
  </Response>
</Autodiscover>`

const getFolderOK = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:GetFolderResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
      <m:ResponseMessages>
        <m:GetFolderResponseMessage ResponseClass="%s">
          <m:ResponseCode>%s</m:ResponseCode>
        </m:GetFolderResponseMessage>
      </m:ResponseMessages>
    </m:GetFolderResponse>
  </s:Body>
</s:Envelope>`

// fakeExchange serves autodiscover and EWS for one account.
type fakeExchange struct {
	*httptest.Server
	mailboxes map[string]bool // smtp address -> accessible
	requests  []string
}

func newFakeExchange(t *testing.T) *fakeExchange {
	t.Helper()
	f := &fakeExchange{mailboxes: map[string]bool{"alice@example.com": true}}

	mux := http.NewServeMux()
	mux.HandleFunc(autodiscoverPath, func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, "autodiscover")
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, autodiscoverOK, f.URL+ewsPath)
	})
	mux.HandleFunc(ewsPath, func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, r.Method+" ews")
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		for mailbox, ok := range f.mailboxes {
			if strings.Contains(string(body), "<t:EmailAddress>"+mailbox+"</t:EmailAddress>") {
				if ok {
					fmt.Fprintf(w, getFolderOK, "Success", "NoError")
					return
				}
			}
		}
		fmt.Fprintf(w, getFolderOK, "Error", "ErrorNonExistentMailbox")
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeExchange) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	return ok && user == testUser && pass == testPassword
}

func newTestClient(t *testing.T, f *fakeExchange, extra ...Option) *Client {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	opts := []Option{
		WithHTTPClient(f.Client()),
		WithLogger(logger),
		WithAutodiscoverURLs(func(string) []string {
			return []string{f.URL + autodiscoverPath}
		}),
	}
	c, err := NewClient(append(opts, extra...)...)
	require.NoError(t, err)
	return c
}

func goodCreds() core.Credentials {
	return core.Credentials{Username: testUser, Password: testPassword}
}

func TestServiceURL(t *testing.T) {
	assert.Equal(t, "https://mail.example.com/EWS/Exchange.asmx", ServiceURL("mail.example.com"))
	assert.Equal(t, "https://mail.example.com/EWS/Exchange.asmx", ServiceURL("mail.example.com/"))
	assert.Equal(t, "http://x/custom.asmx", ServiceURL("http://x/custom.asmx"))
}

func TestNewClient_BuildsHTTPClient(t *testing.T) {
	c, err := NewClient(WithTimeout(2*time.Second), WithInsecureSkipVerify(true))
	require.NoError(t, err)
	assert.NotNil(t, c.httpClient)
	assert.Equal(t, []string{
		"https://example.com/autodiscover/autodiscover.xml",
		"https://autodiscover.example.com/autodiscover/autodiscover.xml",
	}, c.autodiscoverURLs("example.com"))
}

func TestConfigure(t *testing.T) {
	f := newFakeExchange(t)
	c := newTestClient(t, f)

	cfg, err := c.Configure(context.Background(), f.URL+ewsPath, goodCreds())
	require.NoError(t, err)
	assert.Equal(t, f.URL+ewsPath, cfg.Endpoint)

	_, err = c.Configure(context.Background(), f.URL+ewsPath,
		core.Credentials{Username: testUser, Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestConfigure_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = c.Configure(context.Background(), srv.URL, goodCreds())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenSession_Autodiscover(t *testing.T) {
	f := newFakeExchange(t)
	c := newTestClient(t, f)

	sess, err := c.OpenSession(context.Background(), core.SessionRequest{
		SMTPAddress: "alice@example.com",
		Credentials: goodCreds(),
	})
	require.NoError(t, err)
	assert.Equal(t, f.URL+ewsPath, sess.Endpoint)
	assert.Equal(t, "alice@example.com", sess.SMTPAddress)
	assert.Equal(t, []string{"autodiscover", "POST ews"}, f.requests)
}

func TestOpenSession_StaticEndpointSkipsAutodiscover(t *testing.T) {
	f := newFakeExchange(t)
	c := newTestClient(t, f)

	sess, err := c.OpenSession(context.Background(), core.SessionRequest{
		SMTPAddress: "alice@example.com",
		Credentials: goodCreds(),
		Config:      &core.DirectoryConfig{Endpoint: f.URL + ewsPath},
	})
	require.NoError(t, err)
	assert.Equal(t, f.URL+ewsPath, sess.Endpoint)
	assert.Equal(t, []string{"POST ews"}, f.requests)
}

func TestOpenSession_MailboxDenied(t *testing.T) {
	f := newFakeExchange(t)
	f.mailboxes["bob@example.com"] = false
	c := newTestClient(t, f)

	_, err := c.OpenSession(context.Background(), core.SessionRequest{
		SMTPAddress: "bob@example.com",
		Credentials: goodCreds(),
		Config:      &core.DirectoryConfig{Endpoint: f.URL + ewsPath},
	})
	assert.ErrorIs(t, err, ErrMailboxAccessDenied)
}

func TestOpenSession_BadPasswordStopsAutodiscover(t *testing.T) {
	f := newFakeExchange(t)
	c := newTestClient(t, f, WithAutodiscoverURLs(func(string) []string {
		return []string{f.URL + autodiscoverPath, f.URL + autodiscoverPath}
	}))

	_, err := c.OpenSession(context.Background(), core.SessionRequest{
		SMTPAddress: "alice@example.com",
		Credentials: core.Credentials{Username: testUser, Password: "wrong"},
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, []string{"autodiscover"}, f.requests)
	assert.NotContains(t, err.Error(), "wrong")
}

func TestAutodiscover_FallsThroughCandidates(t *testing.T) {
	f := newFakeExchange(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not xml"))
	}))
	defer broken.Close()

	c := newTestClient(t, f, WithAutodiscoverURLs(func(string) []string {
		return []string{broken.URL + autodiscoverPath, f.URL + autodiscoverPath}
	}))

	endpoint, err := c.Autodiscover(context.Background(), "alice@example.com", goodCreds())
	require.NoError(t, err)
	assert.Equal(t, f.URL+ewsPath, endpoint)
}

func TestAutodiscover_Exhausted(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer broken.Close()

	c, err := NewClient(
		WithHTTPClient(broken.Client()),
		WithAutodiscoverURLs(func(string) []string { return []string{broken.URL} }),
	)
	require.NoError(t, err)

	_, err = c.Autodiscover(context.Background(), "alice@example.com", goodCreds())
	assert.ErrorIs(t, err, ErrAutodiscoverFailed)

	_, err = c.Autodiscover(context.Background(), "no-domain", goodCreds())
	assert.ErrorIs(t, err, ErrAutodiscoverFailed)
}

func TestCredentialsNeverLogged(t *testing.T) {
	cred := goodCreds()
	assert.NotContains(t, fmt.Sprintf("%v %+v %#v %s", cred, cred, cred, cred), testPassword)
}
