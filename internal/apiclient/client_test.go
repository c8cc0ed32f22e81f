package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"refdash/internal/apperr"
	"refdash/internal/config"
	"refdash/internal/session"
	"refdash/internal/store/sqlitestore"
)

// helper to create client pointed at a test server with a logged-in session
func newTestClient(t *testing.T, h http.Handler) (*HTTPClient, *session.Session) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	sess := session.New(nil, zap.NewNop())
	require.NoError(t, sess.Set(context.Background(), "test"))

	cfg := config.Default().API
	cfg.BaseURL = ts.URL
	cfg.RPS = 1000
	c := NewHTTPClient(cfg, sess, zap.NewNop())
	c.httpClient = ts.Client()
	c.maxAttempts = 3
	c.baseBackoff = 10 * time.Millisecond
	return c, sess
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestDoWithRetryHandles429(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	req, _ := http.NewRequest(http.MethodGet, c.baseURL+"/test", nil)
	resp, err := c.doWithRetry(context.Background(), endpointUsers, req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestListUsersDecodesSchema(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, `{"totalUsers":23,"totalReferralTokensEarned":"150.5","users":[
			{"walletAddress":"0xABC","totalReferred":12,"rewardEarned":"10.25","rewardStatus":"pending","hasCompletedBoth":true,"xusername":"abc"},
			{"walletAddress":"0xDEF","totalReferred":0,"rewardEarned":0,"rewardStatus":"none"}]}`)
	}))

	page, err := c.ListUsers(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 23, page.TotalUsers)
	assert.Zero(t, page.TotalPages, "absent totalPages is left for the caller to compute")
	assert.Equal(t, "150.5", page.TotalReferralTokensEarned.String())
	require.Len(t, page.Users, 2)
	u := page.Users[0]
	assert.Equal(t, "0xABC", u.ID)
	assert.Equal(t, 12, u.ReferralCount)
	assert.Equal(t, "10.25", u.RewardEarned.String())
	assert.Equal(t, "abc", u.XUsername)
	assert.Empty(t, u.Referrals)
}

func TestListUsersSchemaMismatch(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{"users":[]}}`)
	}))
	_, err := c.ListUsers(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindFetch))
	assert.Equal(t, "unexpected response schema", apperr.Message(err))
}

func TestListReferralsEscapesAddress(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/0xAB%2FC/referrals", r.URL.EscapedPath())
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, `{"referredUsers":[{"walletAddress":"0x1"},{"walletAddress":"0x2"}],"currentPage":2,"totalPages":2,"totalReferred":12}`)
	}))
	page, err := c.ListReferrals(context.Background(), "0xAB/C", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 12, page.TotalReferred)
	assert.Len(t, page.Users, 2)
}

func TestListReferralsMissingPaginationIsSchemaError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"referredUsers":[]}`)
	}))
	_, err := c.ListReferrals(context.Background(), "0xABC", 1, 10)
	assert.True(t, apperr.Is(err, apperr.KindFetch))
}

func TestServerMessageSurfaces(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message":"page out of range"}`)
	}))
	_, err := c.ListUsers(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindFetch))
	assert.Equal(t, "page out of range", apperr.Message(err))
}

func TestUnauthorizedClearsPersistedSession(t *testing.T) {
	db, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"jwt expired"}`)
	}))
	ctx := context.Background()
	c.session = session.New(db, zap.NewNop())
	require.NoError(t, c.session.Set(ctx, "stale"))

	_, err = c.ListUsers(ctx, 1)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.False(t, c.session.Authenticated())
	_, err = db.LoadCursor(ctx, session.TokenKey)
	assert.ErrorIs(t, err, sqlitestore.ErrNoCursor)
}

func TestExpiredTokenFailsWithoutRequest(t *testing.T) {
	hits := 0
	c, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		writeJSON(w, http.StatusOK, `{"totalUsers":0,"users":[]}`)
	}))
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, sess.Set(context.Background(), expired))

	_, err = c.ListUsers(context.Background(), 1)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Zero(t, hits)
}

func TestLoginStoresToken(t *testing.T) {
	c, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/loginAdmin", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, `{"message":"bad credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"result":{"token":"fresh"}}`)
	}))
	ctx := context.Background()

	_, err := c.Login(ctx, "admin@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	tok, err := c.Login(ctx, "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	got, err := sess.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestRetriesExhaustedReturnsFetchError(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		writeJSON(w, http.StatusServiceUnavailable, `{"message":"maintenance"}`)
	}))
	_, err := c.ListUsers(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindFetch))
	assert.Equal(t, "maintenance", apperr.Message(err))
	assert.Equal(t, 3, attempts)
}
