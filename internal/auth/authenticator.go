// Package auth proves credentials against the directory server.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/core"
	"github.com/go-authgate/exchauth/internal/identity"
)

// Strategy is how the directory endpoint is found.
type Strategy string

const (
	StrategyAutodiscover Strategy = "autodiscover"
	StrategyStatic       Strategy = "static"
)

// StrategyFor picks the strategy for a domain_servers value.
func StrategyFor(endpoint string) Strategy {
	if config.IsAutodiscover(endpoint) {
		return StrategyAutodiscover
	}
	return StrategyStatic
}

// Result is the outcome of one directory authentication. Reason is set
// whenever Authenticated is false.
type Result struct {
	Authenticated bool
	Session       *core.Session
	Strategy      Strategy
	Reason        error
}

// Authenticator runs one bounded directory round trip per call. It never
// retries.
type Authenticator struct {
	client  core.DirectoryClient
	timeout time.Duration
	metrics core.Recorder
	logger  logrus.FieldLogger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(
	client core.DirectoryClient,
	timeout time.Duration,
	m core.Recorder,
	logger logrus.FieldLogger,
) *Authenticator {
	return &Authenticator{
		client:  client,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

type sessionResult struct {
	session *core.Session
	err     error
}

// Authenticate opens a session for id at endpoint (a domain_servers value)
// using id.CanonicalLogin and password.
func (a *Authenticator) Authenticate(
	ctx context.Context,
	id *identity.Identity,
	endpoint, password string,
) Result {
	strategy := StrategyFor(endpoint)
	cred := core.Credentials{Username: id.CanonicalLogin, Password: password}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()

	// Buffered so the goroutine can finish after we stop waiting.
	done := make(chan sessionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sessionResult{err: fmt.Errorf("directory client panic: %v", r)}
			}
		}()
		sess, err := a.open(ctx, strategy, endpoint, id.SMTPAddress, cred)
		done <- sessionResult{session: sess, err: err}
	}()

	var res sessionResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	duration := time.Since(start)

	log := a.logger.WithFields(logrus.Fields{
		"username": id.CanonicalLogin,
		"domain":   id.Domain,
		"strategy": string(strategy),
	})

	if res.err == nil && res.session == nil {
		res.err = errors.New("directory returned no session")
	}
	if res.err != nil {
		reason := ErrDirectoryAuthFailed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ErrDirectoryTimeout
		}
		a.metrics.RecordDirectoryCall(string(strategy), false, duration)
		log.WithError(res.err).Debug("[Auth] directory rejected login")
		return Result{
			Strategy: strategy,
			Reason:   fmt.Errorf("%w: %v", reason, res.err),
		}
	}

	a.metrics.RecordDirectoryCall(string(strategy), true, duration)
	log.WithField("endpoint", res.session.Endpoint).Debug("[Auth] directory accepted login")
	return Result{
		Authenticated: true,
		Session:       res.session,
		Strategy:      strategy,
	}
}

func (a *Authenticator) open(
	ctx context.Context,
	strategy Strategy,
	endpoint, smtpAddress string,
	cred core.Credentials,
) (*core.Session, error) {
	req := core.SessionRequest{SMTPAddress: smtpAddress, Credentials: cred}

	if strategy == StrategyStatic {
		cfg, err := a.client.Configure(ctx, endpoint, cred)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, errors.New("directory returned no configuration")
		}
		req.Config = cfg
	}

	return a.client.OpenSession(ctx, req)
}
