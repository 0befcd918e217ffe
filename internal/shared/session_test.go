package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "sid", "secret", time.Hour, false), mr
}

// roundTrip commits sess and returns a request carrying the resulting cookie.
func roundTrip(t *testing.T, sm *SessionManager, sess *Session) (*http.Request, *http.Cookie) {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, sm.Commit(context.Background(), rr, req, sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	return next, cookies[0]
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("u-1")
	sess.Set("flash", "saved")

	req, cookie := roundTrip(t, sm, sess)
	require.Equal(t, 3600, cookie.MaxAge)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "u-1", mr.HGet("session:"+sess.ID, userField))
	require.Equal(t, time.Hour, mr.TTL("session:"+sess.ID))

	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, "u-1", loaded.User())
	require.Equal(t, "saved", loaded.Get("flash"))
	require.Empty(t, loaded.Get(userField))
}

func TestSessionRejectsForgedCookie(t *testing.T) {
	sm, _ := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("u-1")
	roundTrip(t, sm, sess)

	for _, value := range []string{sess.ID, sess.ID + ".bogus", sess.ID + ".AAAA", ".abc"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: value})
		loaded, err := sm.Load(ctx, req)
		require.NoError(t, err)
		require.NotEqual(t, sess.ID, loaded.ID, value)
		require.Empty(t, loaded.User(), value)
	}
}

func TestSessionRenewDropsOldKey(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("k", "v")
	req, _ := roundTrip(t, sm, sess)
	oldID := sess.ID

	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sm.Renew(loaded)
	require.NotEqual(t, oldID, loaded.ID)
	roundTrip(t, sm, loaded)

	require.False(t, mr.Exists("session:"+oldID))
	require.True(t, mr.Exists("session:"+loaded.ID))
}

func TestSessionDestroyClearsCookie(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("u-1")
	roundTrip(t, sm, sess)

	sm.Destroy(sess)
	_, cookie := roundTrip(t, sm, sess)
	require.Equal(t, -1, cookie.MaxAge)
	require.False(t, mr.Exists("session:"+sess.ID))
}

func TestCleanSessionWritesNothing(t *testing.T) {
	sm, mr := newManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	require.Empty(t, rr.Result().Cookies())
	require.Empty(t, mr.Keys())
}

func TestUserIDFromContext(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, UserIDFromContext(ctx))

	sess := &Session{}
	sess.SetUser(" u-9 ")
	require.Equal(t, "u-9", UserIDFromContext(ContextWithSession(ctx, sess)))
}
