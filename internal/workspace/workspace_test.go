package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/guard"
	"sheetchart-web/internal/notify"
	"sheetchart-web/internal/session"
	"sheetchart-web/internal/testutil"
)

func newDeps(api *testutil.FakeAPI, store session.Store) Deps {
	return Deps{APIBaseURL: api.URL(), APITimeout: 5 * time.Second, Store: store}
}

func TestLoginPersistsAndNewWorkspaceHydrates(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	store := session.NewMemoryStore()
	ctx := context.Background()

	w := New("client-1", newDeps(api, store))
	_, err := w.Auth.Login(ctx, apiclient.Credentials{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, w.Auth.View().IsAuthenticated)

	restarted := New("client-1", newDeps(api, store))
	restored, err := restarted.Hydrate(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, guard.Pending, guard.Evaluate(guard.RequireAuth, restarted.Session()).Outcome)

	d, err := guard.Check(ctx, guard.RequireAuth, restarted)
	require.NoError(t, err)
	assert.Equal(t, guard.Allow, d.Outcome)
	assert.Equal(t, "ana", restarted.Session().User.Username)
	assert.Equal(t, 1, api.Calls("GET /auth/profile"))
}

func TestAuthFailureClearsSessionOnce(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	store := session.NewMemoryStore()
	ctx := context.Background()

	w := New("client-1", newDeps(api, store))
	_, err := w.Auth.Login(ctx, apiclient.Credentials{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)
	_, err = w.Charts.FetchChartTypes(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, w.Charts.State().ChartTypes)

	api.RevokeAll()
	_, err = w.Files.FetchUserFiles(ctx, apiclient.ListParams{})
	require.ErrorIs(t, err, apiclient.ErrUnauthorized)
	_, err = w.Charts.FetchChartTypes(ctx)
	require.Error(t, err)

	assert.False(t, w.Session().Authenticated())
	assert.Empty(t, w.Files.View().Error, "auth failures are not slice errors")
	assert.Empty(t, w.Charts.State().ChartTypes, "data slices are emptied")

	_, err = store.Load(ctx, "client-1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	loc, ok := w.TakeRedirect()
	assert.True(t, ok)
	assert.Equal(t, session.LoginPath, loc)
	_, ok = w.TakeRedirect()
	assert.False(t, ok)

	notices := w.Notices.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelInfo, notices[0].Level)
	assert.Equal(t, MsgSessionExpired, notices[0].Message)
}

func TestWrongPasswordIsAFormError(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	w := New("client-1", newDeps(api, session.NewMemoryStore()))

	_, err := w.Auth.Login(context.Background(), apiclient.Credentials{Email: "ana@example.com", Password: "nope"})
	require.ErrorIs(t, err, apiclient.ErrInvalidCredentials)
	assert.Equal(t, "Invalid credentials", w.Auth.View().Error)
	_, redirected := w.TakeRedirect()
	assert.False(t, redirected)
	assert.Zero(t, w.Notices.Len())
}

func TestLogoutEmptiesEverything(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	api.AddFile(user.ID, apiclient.FileRecord{OriginalName: "sales.csv"})
	store := session.NewMemoryStore()
	ctx := context.Background()

	w := New("client-1", newDeps(api, store))
	_, err := w.Auth.Login(ctx, apiclient.Credentials{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)
	_, err = w.Files.FetchUserFiles(ctx, apiclient.ListParams{})
	require.NoError(t, err)
	require.Len(t, w.Files.State().Files, 1)

	require.NoError(t, w.Logout(ctx))
	assert.False(t, w.Session().Authenticated())
	assert.Empty(t, w.Files.State().Files)
	_, err = store.Load(ctx, "client-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistryReusesAndEvicts(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	reg := NewRegistry(newDeps(api, session.NewMemoryStore()), time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	ctx := context.Background()

	a := reg.Get(ctx, "a")
	assert.Same(t, a, reg.Get(ctx, "a"))
	reg.Get(ctx, "b")
	assert.Equal(t, 2, reg.Len())

	now = now.Add(45 * time.Second)
	reg.Get(ctx, "b")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, reg.Evict())
	assert.Equal(t, 1, reg.Len())
	assert.NotSame(t, a, reg.Get(ctx, "a"))
}

func TestRegistryHydratesFromStore(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "c1", api.IssueToken(user.ID, time.Hour)))

	reg := NewRegistry(newDeps(api, store), 0)
	w := reg.Get(context.Background(), "c1")
	assert.True(t, w.Session().Authenticated())
	assert.Zero(t, reg.Evict(), "zero idle timeout disables eviction")
}

type flakyStore struct {
	session.Store
	failures int
	loads    int
}

func (s *flakyStore) Load(ctx context.Context, clientID string) (string, error) {
	s.loads++
	if s.failures > 0 {
		s.failures--
		return "", errors.New("store unavailable")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Store.Load(ctx, clientID)
}

func TestHydrateRetriesAfterFailure(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	mem := session.NewMemoryStore()
	require.NoError(t, mem.Save(context.Background(), "c1", api.IssueToken(user.ID, time.Hour)))
	store := &flakyStore{Store: mem, failures: 1}

	w := New("c1", newDeps(api, store))
	_, err := w.Hydrate(context.Background())
	require.Error(t, err)
	assert.False(t, w.Session().Authenticated())

	restored, err := w.Hydrate(context.Background())
	require.NoError(t, err)
	assert.True(t, restored)
	assert.True(t, w.Session().Authenticated())

	_, err = w.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads, "a successful hydrate is not repeated")
}

func TestHydrateIgnoresRequestCancellation(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	user := api.AddUser("ana", "ana@example.com", "secret", apiclient.RoleUser)
	mem := session.NewMemoryStore()
	require.NoError(t, mem.Save(context.Background(), "c1", api.IssueToken(user.ID, time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := New("c1", newDeps(api, &flakyStore{Store: mem}))
	restored, err := w.Hydrate(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
}
