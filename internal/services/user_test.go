package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/go-authgate/exchauth/internal/config"
	"github.com/go-authgate/exchauth/internal/core"
	"github.com/go-authgate/exchauth/internal/mocks"
	"github.com/go-authgate/exchauth/internal/models"
	"github.com/go-authgate/exchauth/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestUser(t *testing.T, db *store.Store, username, domain string) *models.User {
	t.Helper()
	u := &models.User{
		ID:       uuid.New().String(),
		Username: username,
		Role:     "user",
		IsActive: true,
		Domain:   domain,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

// callFetchFn is a DoAndReturn helper that invokes the cache fetch function,
// simulating a cache miss where the real DB fetch is executed.
func callFetchFn[T any](
	ctx context.Context,
	key string,
	_ time.Duration,
	fn func(context.Context, string) (T, error),
) (T, error) {
	return fn(ctx, key)
}

func TestAuthenticate_ProvisionsUnknownUser(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	hook := mocks.NewMockProvisionHook(ctrl)
	env := newTestEnv(t, db, withHook(hook))

	hook.EXPECT().
		OnUserProvisioned(gomock.Any(), gomock.Any(), "example.com").
		DoAndReturn(func(_ context.Context, u *models.User, _ string) error {
			assert.Equal(t, "alice@example.com", u.Username)
			assert.NotEmpty(t, u.ID)
			return nil
		}).Times(1)

	user, err := env.svc.Authenticate(context.Background(), "Alice@Example.COM", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "example.com", user.Domain)
	assert.Equal(t, "user", user.Role)
	assert.True(t, user.IsActive)
	require.NotNil(t, user.LastLoginAt)

	stored, err := db.GetUserByUsername(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestAuthenticate_BareUsernameUsesDefaultDomain(t *testing.T) {
	db := setupTestStore(t)
	env := newTestEnv(t, db)

	user, err := env.svc.Authenticate(context.Background(), "Bob", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", user.Username)
	assert.Equal(t, "bob@example.com", user.Email)
}

func TestAuthenticate_NetbiosStaticEndpoint(t *testing.T) {
	db := setupTestStore(t)
	dir := &stubDirectory{password: testPassword}
	env := newTestEnv(t, db, withDirectory(dir, time.Second))

	user, err := env.svc.Authenticate(context.Background(), `CORP\Carol`, testPassword)
	require.NoError(t, err)
	assert.Equal(t, `corp\carol`, user.Username)
	assert.Equal(t, "corp.example.com", user.Domain)
	// The resolved domain is a DNS name, so the email field is stamped.
	assert.Equal(t, `corp\carol`, user.Email)
	assert.Equal(t, int32(1), dir.calls.Load())
}

func TestAuthenticate_ShortDomainLeavesEmail(t *testing.T) {
	db := setupTestStore(t)
	env := newTestEnv(t, db)

	user, err := env.svc.Authenticate(context.Background(), `legacy\dave`, testPassword)
	require.NoError(t, err)
	assert.Equal(t, `legacy\dave`, user.Username)
	assert.Empty(t, user.Email)
}

func TestAuthenticate_ExistingUserPolicyReapplied(t *testing.T) {
	db := setupTestStore(t)
	existing := makeTestUser(t, db, "erin@example.com", "example.com")

	ctrl := gomock.NewController(t)
	hook := mocks.NewMockProvisionHook(ctrl) // no calls expected

	p := testPolicy()
	p.DomainUserProperties = map[string]models.UserPolicy{
		"example.com": {IsStaff: boolPtr(true), Role: strPtr("admin"), FirstName: strPtr("Erin")},
	}
	env := newTestEnv(t, db, withHook(hook), withPolicy(p))

	user, err := env.svc.Authenticate(context.Background(), "erin@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsAdmin())
	assert.Equal(t, "Erin", user.FirstName)

	// A policy change is picked up by the next login.
	p.DomainUserProperties["example.com"] = models.UserPolicy{IsStaff: boolPtr(false), IsActive: boolPtr(false)}
	user, err = env.svc.Authenticate(context.Background(), "erin@example.com", testPassword)
	require.NoError(t, err)
	assert.False(t, user.IsStaff)
	assert.False(t, user.IsActive)

	stored, err := db.GetUserByID(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsStaff)
	assert.False(t, stored.IsActive)
	assert.Equal(t, "admin", stored.Role)

	n, err := db.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAuthenticate_ProvisioningDisabled(t *testing.T) {
	db := setupTestStore(t)
	p := testPolicy()
	p.CreateUnknownUser = false
	env := newTestEnv(t, db, withPolicy(p))

	user, err := env.svc.Authenticate(context.Background(), "frank@example.com", testPassword)
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrAuthenticationDenied)

	n, err := db.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Existing users still log in.
	makeTestUser(t, db, "grace@example.com", "example.com")
	user, err = env.svc.Authenticate(context.Background(), "grace@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", user.Username)
}

func TestAuthenticate_RejectionsIndistinguishable(t *testing.T) {
	emailOnly := testPolicy()
	emailOnly.AllowedFormats = []string{config.FormatEmail}
	noProvision := testPolicy()
	noProvision.CreateUnknownUser = false

	tests := []struct {
		name     string
		username string
		password string
		opts     []envOption
	}{
		{name: "format not allowed", username: "bob", password: testPassword, opts: []envOption{withPolicy(emailOnly)}},
		{name: "domain not allowed", username: "bob@other.org", password: testPassword},
		{name: "unknown netbios alias", username: `nowhere\bob`, password: testPassword},
		{name: "empty username", username: "", password: testPassword},
		{name: "wrong password", username: "bob@example.com", password: "nope"},
		{name: "wrong password static", username: `corp\bob`, password: "nope"},
		{name: "not provisioned", username: "bob@example.com", password: testPassword, opts: []envOption{withPolicy(noProvision)}},
		{
			name:     "directory timeout",
			username: "bob@example.com",
			password: testPassword,
			opts:     []envOption{withDirectory(slowDirectory{}, 20*time.Millisecond)},
		},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestStore(t)
			env := newTestEnv(t, db, tt.opts...)

			user, err := env.svc.Authenticate(context.Background(), tt.username, tt.password)
			assert.Nil(t, user)
			require.Error(t, err)
			assert.Same(t, ErrAuthenticationDenied, err)
			messages = append(messages, err.Error())

			n, err := db.CountUsers(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
	for _, msg := range messages {
		assert.Equal(t, ErrAuthenticationDenied.Error(), msg)
	}
}

func TestAuthenticate_RejectionReasonRecorded(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		reason   string
	}{
		{name: "domain", username: "x@other.org", password: testPassword, reason: "domain_not_allowed"},
		{name: "password", username: "x@example.com", password: "bad", reason: "directory_auth_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			rec := mocks.NewMockRecorder(ctrl)
			rec.EXPECT().RecordDirectoryCall(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
			rec.EXPECT().RecordAuthAttempt(gomock.Any(), false, gomock.Any()).Times(1)
			rec.EXPECT().RecordRejection(tt.reason).Times(1)

			env := newTestEnv(t, setupTestStore(t), withRecorder(rec))
			_, err := env.svc.Authenticate(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, ErrAuthenticationDenied)
		})
	}
}

func TestAuthenticate_InvalidFormatLabel(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecorder(ctrl)
	rec.EXPECT().RecordAuthAttempt("invalid", false, gomock.Any()).Times(1)
	rec.EXPECT().RecordRejection("format_not_allowed").Times(1)

	p := testPolicy()
	p.AllowedFormats = []string{config.FormatNetbios}
	env := newTestEnv(t, setupTestStore(t), withRecorder(rec), withPolicy(p))

	_, err := env.svc.Authenticate(context.Background(), "x@example.com", testPassword)
	assert.ErrorIs(t, err, ErrAuthenticationDenied)
}

func TestAuthenticate_PasswordNeverLogged(t *testing.T) {
	db := setupTestStore(t)
	audit := NewAuditService(db, true, 100, nil)
	env := newTestEnv(t, db, withAudit(audit))
	ctx := context.Background()

	secret := "s3cret-Pa55word"
	for _, username := range []string{"bob@example.com", "bob@other.org", `corp\bob`, ""} {
		_, err := env.svc.Authenticate(ctx, username, secret)
		require.ErrorIs(t, err, ErrAuthenticationDenied)
	}
	require.NoError(t, audit.Shutdown(ctx))

	require.NotEmpty(t, env.logs.AllEntries())
	for _, e := range env.logs.AllEntries() {
		line, err := e.String()
		require.NoError(t, err)
		assert.NotContains(t, line, secret)
	}

	logs, _, err := audit.GetAuditLogs(ctx, store.NewPaginationParams(1, 100, ""), store.AuditLogFilters{})
	require.NoError(t, err)
	assert.Len(t, logs, 4)
	for _, l := range logs {
		assert.False(t, l.Success)
		assert.NotEmpty(t, l.Reason)
		assert.NotContains(t, fmt.Sprint(l.Details), secret)
	}
}

func TestAuthenticate_AuditTrail(t *testing.T) {
	db := setupTestStore(t)
	audit := NewAuditService(db, true, 100, nil)
	p := testPolicy()
	p.DomainUserProperties = map[string]models.UserPolicy{"example.com": {IsStaff: boolPtr(true)}}
	env := newTestEnv(t, db, withAudit(audit), withPolicy(p))
	ctx := context.Background()

	_, err := env.svc.Authenticate(ctx, "heidi@example.com", testPassword)
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, "heidi@example.com", "wrong")
	require.ErrorIs(t, err, ErrAuthenticationDenied)
	require.NoError(t, audit.Shutdown(ctx))

	stats, err := audit.GetAuditLogStats(ctx, store.AuditLogFilters{ActorUsername: "heidi@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EventsByType[models.EventUserProvisioned])
	assert.Equal(t, int64(1), stats.EventsByType[models.EventUserPolicyApplied])
	assert.Equal(t, int64(1), stats.EventsByType[models.EventAuthenticationSuccess])
	assert.Equal(t, int64(1), stats.EventsByType[models.EventAuthenticationFailure])

	logs, _, err := audit.GetAuditLogs(ctx, store.NewPaginationParams(1, 10, ""), store.AuditLogFilters{
		EventType: models.EventAuthenticationFailure,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "directory_auth_failed", logs[0].Reason)
	assert.Equal(t, "example.com", logs[0].Domain)
	assert.False(t, logs[0].Success)
}

func TestAuthenticate_ConcurrentFirstLogin(t *testing.T) {
	db := setupTestStore(t)
	hook := &countingHook{}
	env := newTestEnv(t, db, withHook(hook))

	const logins = 8
	ids := make([]string, logins)
	var wg sync.WaitGroup
	for i := range logins {
		wg.Go(func() {
			user, err := env.svc.Authenticate(context.Background(), "ivan@example.com", testPassword)
			if assert.NoError(t, err) {
				ids[i] = user.ID
			}
		})
	}
	wg.Wait()

	n, err := db.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, hook.count())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestAuthenticate_HookFailureIgnored(t *testing.T) {
	tests := []struct {
		name string
		hook func(context.Context, *models.User, string) error
	}{
		{
			name: "error",
			hook: func(context.Context, *models.User, string) error { return errors.New("org service down") },
		},
		{
			name: "panic",
			hook: func(context.Context, *models.User, string) error { panic("boom") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestStore(t)
			ctrl := gomock.NewController(t)
			hook := mocks.NewMockProvisionHook(ctrl)
			hook.EXPECT().OnUserProvisioned(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(tt.hook).Times(1)
			env := newTestEnv(t, db, withHook(hook))

			user, err := env.svc.Authenticate(context.Background(), "judy@example.com", testPassword)
			require.NoError(t, err)
			assert.Equal(t, "judy@example.com", user.Username)
		})
	}
}

func TestAuthenticate_SlowHookBounded(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	hook := mocks.NewMockProvisionHook(ctrl)

	hookErr := make(chan error, 1)
	hook.EXPECT().OnUserProvisioned(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *models.User, _ string) error {
			<-ctx.Done()
			hookErr <- ctx.Err()
			return ctx.Err()
		}).Times(1)
	env := newTestEnv(t, db, withHook(hook))
	env.svc.SetProvisionHookTimeout(50 * time.Millisecond)

	start := time.Now()
	user, err := env.svc.Authenticate(context.Background(), "mallory@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "mallory@example.com", user.Username)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, <-hookErr, context.DeadlineExceeded)

	saved, err := db.GetUserByUsername(context.Background(), "mallory@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, saved.ID)
}

func TestAuthenticate_ConflictResolvedByReRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	hook := mocks.NewMockProvisionHook(ctrl) // winner already ran it
	env := newTestEnv(t, repo, withHook(hook))

	winner := &models.User{ID: "u-1", Username: "kim@example.com", IsActive: true, Domain: "example.com"}
	gomock.InOrder(
		repo.EXPECT().GetUserByUsername(gomock.Any(), "kim@example.com").Return(nil, store.ErrRecordNotFound),
		repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(store.ErrUsernameConflict),
		repo.EXPECT().GetUserByUsername(gomock.Any(), "kim@example.com").Return(winner, nil),
		repo.EXPECT().UpdateUser(gomock.Any(), winner).Return(nil),
	)

	user, err := env.svc.Authenticate(context.Background(), "kim@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "kim@example.com", user.Email)
}

func TestAuthenticate_ConflictUnresolved(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	env := newTestEnv(t, repo)

	gomock.InOrder(
		repo.EXPECT().GetUserByUsername(gomock.Any(), "kim@example.com").Return(nil, store.ErrRecordNotFound),
		repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(store.ErrUsernameConflict),
		repo.EXPECT().GetUserByUsername(gomock.Any(), "kim@example.com").Return(nil, store.ErrRecordNotFound),
	)

	user, err := env.svc.Authenticate(context.Background(), "kim@example.com", testPassword)
	assert.Nil(t, user)
	assert.Same(t, ErrAuthenticationDenied, err)
}

func TestAuthenticate_RepositoryFault(t *testing.T) {
	dbDown := errors.New("connection refused")

	tests := []struct {
		name  string
		setup func(repo *mocks.MockUserRepository)
	}{
		{
			name: "lookup",
			setup: func(repo *mocks.MockUserRepository) {
				repo.EXPECT().GetUserByUsername(gomock.Any(), gomock.Any()).Return(nil, dbDown)
			},
		},
		{
			name: "create",
			setup: func(repo *mocks.MockUserRepository) {
				repo.EXPECT().GetUserByUsername(gomock.Any(), gomock.Any()).Return(nil, store.ErrRecordNotFound)
				repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(dbDown)
			},
		},
		{
			name: "re-read after conflict",
			setup: func(repo *mocks.MockUserRepository) {
				gomock.InOrder(
					repo.EXPECT().GetUserByUsername(gomock.Any(), gomock.Any()).Return(nil, store.ErrRecordNotFound),
					repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(store.ErrUsernameConflict),
					repo.EXPECT().GetUserByUsername(gomock.Any(), gomock.Any()).Return(nil, dbDown),
				)
			},
		},
		{
			name: "save",
			setup: func(repo *mocks.MockUserRepository) {
				repo.EXPECT().GetUserByUsername(gomock.Any(), gomock.Any()).
					Return(&models.User{ID: "u-2", Username: "leo@example.com"}, nil)
				repo.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).Return(dbDown)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockUserRepository(ctrl)
			tt.setup(repo)
			env := newTestEnv(t, repo)

			user, err := env.svc.Authenticate(context.Background(), "leo@example.com", testPassword)
			assert.Nil(t, user)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrAuthenticationDenied)
			assert.ErrorIs(t, err, dbDown)
		})
	}
}

// cancelingDirectory accepts the login and then cancels the caller.
type cancelingDirectory struct {
	cancel context.CancelFunc
}

func (d cancelingDirectory) Configure(context.Context, string, core.Credentials) (*core.DirectoryConfig, error) {
	return nil, errors.New("unused")
}

func (d cancelingDirectory) OpenSession(_ context.Context, req core.SessionRequest) (*core.Session, error) {
	d.cancel()
	return &core.Session{Endpoint: "https://mail/EWS/Exchange.asmx", SMTPAddress: req.SMTPAddress}, nil
}

func TestAuthenticate_CanceledAfterDirectory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl) // must not be touched
	env := newTestEnv(t, repo, withDirectory(cancelingDirectory{cancel: cancel}, time.Second))

	user, err := env.svc.Authenticate(ctx, "mia@example.com", testPassword)
	assert.Nil(t, user)
	assert.Same(t, ErrAuthenticationDenied, err)
}

func TestGetUserByID_CacheMiss(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.User](ctrl)
	u := makeTestUser(t, db, "nina@example.com", "example.com")

	mockCache.EXPECT().
		GetWithFetch(gomock.Any(), "user:"+u.ID, gomock.Any(), gomock.Any()).
		DoAndReturn(callFetchFn[models.User]).Times(1)

	env := newTestEnv(t, db, withCache(mockCache))
	result, err := env.svc.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, result.ID)
	assert.Equal(t, u.Username, result.Username)
}

func TestGetUserByID_CacheHit(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.User](ctrl)
	u := makeTestUser(t, db, "oscar@example.com", "example.com")

	gomock.InOrder(
		mockCache.EXPECT().
			GetWithFetch(gomock.Any(), "user:"+u.ID, gomock.Any(), gomock.Any()).
			DoAndReturn(callFetchFn[models.User]), // first call: cache miss → fetch from DB
		mockCache.EXPECT().
			GetWithFetch(gomock.Any(), "user:"+u.ID, gomock.Any(), gomock.Any()).
			Return(*u, nil), // second call: cache hit → return directly
	)

	env := newTestEnv(t, db, withCache(mockCache))
	for range 2 {
		result, err := env.svc.GetUserByID(context.Background(), u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.ID, result.ID)
	}
}

func TestGetUserByID_InvalidatedByLogin(t *testing.T) {
	db := setupTestStore(t)
	u := makeTestUser(t, db, "pat@example.com", "example.com")

	p := testPolicy()
	p.DomainUserProperties = map[string]models.UserPolicy{"example.com": {LastName: strPtr("Smith")}}
	env := newTestEnv(t, db, withPolicy(p))
	ctx := context.Background()

	before, err := env.svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, before.LastName)

	_, err = env.svc.Authenticate(ctx, "pat@example.com", testPassword)
	require.NoError(t, err)

	after, err := env.svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smith", after.LastName)
	assert.Equal(t, "pat@example.com", after.Email)
}

func TestGetUserByID_ErrUserNotFound(t *testing.T) {
	db := setupTestStore(t)
	env := newTestEnv(t, db)

	_, err := env.svc.GetUserByID(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRejectionReason(t *testing.T) {
	assert.Equal(t, "repository_conflict", rejectionReason(fmt.Errorf("wrapped: %w", ErrRepositoryConflict)))
	assert.Equal(t, "unknown_user_not_provisioned", rejectionReason(ErrUnknownUserNotProvisioned))
	assert.Empty(t, rejectionReason(errors.New("disk full")))
	assert.Empty(t, rejectionReason(context.Canceled))
}
