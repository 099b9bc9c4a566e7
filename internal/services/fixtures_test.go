package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/exchauth/internal/auth"
	"github.com/go-authgate/exchauth/internal/cache"
	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/core"
	"github.com/go-authgate/exchauth/internal/metrics"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/store"
)

const testPassword = "Tr0ub4dor&3"

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

// testPolicy allows one DNS domain via autodiscover, one via a static
// server and one short NetBIOS-style domain.
func testPolicy() *config.Policy {
	p := config.DefaultPolicy()
	p.DefaultDomain = "example.com"
	p.NetbiosToDomainMap = map[string]string{"corp": "corp.example.com"}
	p.DomainServers = map[string]string{
		"example.com":      config.Autodiscover,
		"corp.example.com": "mail.corp.example.com",
		"legacy":           "mail.legacy.local",
	}
	return p
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(
		context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), logrus.StandardLogger(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stubDirectory accepts a login when the password matches.
type stubDirectory struct {
	password string
	calls    atomic.Int32
}

func (d *stubDirectory) check(cred core.Credentials) error {
	d.calls.Add(1)
	if cred.Password != d.password {
		return errors.New("401 unauthorized")
	}
	return nil
}

func (d *stubDirectory) Configure(
	_ context.Context,
	endpoint string,
	cred core.Credentials,
) (*core.DirectoryConfig, error) {
	if err := d.check(cred); err != nil {
		return nil, err
	}
	return &core.DirectoryConfig{Endpoint: "https://" + endpoint + "/EWS/Exchange.asmx"}, nil
}

func (d *stubDirectory) OpenSession(_ context.Context, req core.SessionRequest) (*core.Session, error) {
	if req.Config == nil {
		if err := d.check(req.Credentials); err != nil {
			return nil, err
		}
		return &core.Session{Endpoint: "https://autodiscovered/EWS/Exchange.asmx", SMTPAddress: req.SMTPAddress}, nil
	}
	return &core.Session{Endpoint: req.Config.Endpoint, SMTPAddress: req.SMTPAddress}, nil
}

// slowDirectory never answers before its context ends.
type slowDirectory struct{}

func (slowDirectory) Configure(ctx context.Context, _ string, _ core.Credentials) (*core.DirectoryConfig, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowDirectory) OpenSession(ctx context.Context, _ core.SessionRequest) (*core.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// countingHook records provisioning notifications.
type countingHook struct {
	mu    sync.Mutex
	users []string
}

func (h *countingHook) OnUserProvisioned(_ context.Context, user *models.User, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, user.Username)
	return nil
}

func (h *countingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users)
}

type testEnv struct {
	svc    *UserService
	logs   *logtest.Hook
	policy *config.Policy
}

type envOption func(*envConfig)

type envConfig struct {
	directory core.DirectoryClient
	timeout   time.Duration
	hook      core.ProvisionHook
	audit     *AuditService
	recorder  core.Recorder
	cache     core.Cache[models.User]
	policy    *config.Policy
}

func withDirectory(d core.DirectoryClient, timeout time.Duration) envOption {
	return func(c *envConfig) { c.directory, c.timeout = d, timeout }
}

func withHook(h core.ProvisionHook) envOption { return func(c *envConfig) { c.hook = h } }

func withAudit(a *AuditService) envOption { return func(c *envConfig) { c.audit = a } }

func withRecorder(r core.Recorder) envOption { return func(c *envConfig) { c.recorder = r } }

func withCache(cc core.Cache[models.User]) envOption { return func(c *envConfig) { c.cache = cc } }

func withPolicy(p *config.Policy) envOption { return func(c *envConfig) { c.policy = p } }

func newTestEnv(t *testing.T, repo core.UserRepository, opts ...envOption) *testEnv {
	t.Helper()

	cfg := &envConfig{
		directory: &stubDirectory{password: testPassword},
		timeout:   time.Second,
		recorder:  metrics.NewNoopMetrics(),
		cache:     cache.NewMemoryCache[models.User](),
		policy:    testPolicy(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	authenticator := auth.NewAuthenticator(cfg.directory, cfg.timeout, cfg.recorder, logger)
	svc := NewUserService(
		repo,
		config.NewStaticPolicy(cfg.policy),
		authenticator,
		cfg.hook,
		cfg.audit,
		cfg.recorder,
		logger,
		cfg.cache,
		5*time.Minute,
	)
	return &testEnv{svc: svc, logs: hook, policy: cfg.policy}
}
