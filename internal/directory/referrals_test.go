package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"refdash/internal/apperr"
	"refdash/internal/model"
)

func newTestCache(f *fakeLister, users ...model.User) *ReferralCache {
	return NewReferralCache(f, 10, func(id string) (model.User, bool) {
		return findUser(users, id)
	}, zap.NewNop())
}

func TestReferralCacheLoadReplacesRows(t *testing.T) {
	f := newFakeLister(0, 10)
	f.setReferrals("0xABC", 12)
	c := newTestCache(f, user("0xABC", 12))
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, "0xABC", 1))
	assert.Len(t, c.Rows("0xABC"), 10)
	e, ok := c.Entry("0xABC")
	require.True(t, ok)
	assert.Equal(t, model.ReferralPagination{TotalReferred: 12, CurrentPage: 1, TotalPages: 2}, e)

	require.NoError(t, c.Load(ctx, "0xABC", 2))
	rows := c.Rows("0xABC")
	require.Len(t, rows, 2)
	assert.Equal(t, "0xABC-r10", rows[0].ID)
	assert.False(t, c.Loading("0xABC"))
}

func TestReferralCacheUnknownUser(t *testing.T) {
	f := newFakeLister(0, 10)
	c := newTestCache(f)
	err := c.Load(context.Background(), "0xNOPE", 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, f.refCallCount())
	assert.Zero(t, c.Len())
}

func TestReferralCacheFailureKeepsEntry(t *testing.T) {
	f := newFakeLister(0, 10)
	f.setReferrals("0xABC", 12)
	c := newTestCache(f, user("0xABC", 12))
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, "0xABC", 1))

	f.refErr = apperr.FetchError(errors.New("timeout"), "")
	require.Error(t, c.Load(ctx, "0xABC", 2))
	assert.Len(t, c.Rows("0xABC"), 10)
	e, _ := c.Entry("0xABC")
	assert.Equal(t, 1, e.CurrentPage)
	assert.Error(t, c.Err("0xABC"))
	assert.False(t, c.Loading("0xABC"), "a failed fetch never leaves the spinner on")
}

func TestReferralCacheEvictDiscardsInFlight(t *testing.T) {
	f := newFakeLister(0, 10)
	f.setReferrals("0xABC", 3)
	c := newTestCache(f, user("0xABC", 3))
	release := make(chan struct{})
	f.refGate = release

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background(), "0xABC", 1) }()
	require.Eventually(t, func() bool { return c.Loading("0xABC") }, time.Second, time.Millisecond)

	c.Evict("0xABC")
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, c.Rows("0xABC"))
	_, ok := c.Entry("0xABC")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestReferralCacheNewerLoadWins(t *testing.T) {
	f := newFakeLister(0, 10)
	f.setReferrals("0xABC", 12)
	c := newTestCache(f, user("0xABC", 12))
	release := make(chan struct{})
	f.refGate = release

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background(), "0xABC", 1) }()
	require.Eventually(t, func() bool { return f.refCallCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Load(context.Background(), "0xABC", 2))
	close(release)
	require.NoError(t, <-done)

	e, _ := c.Entry("0xABC")
	assert.Equal(t, 2, e.CurrentPage)
	assert.Len(t, c.Rows("0xABC"), 2)
}

func TestReferralCacheSetCurrentPage(t *testing.T) {
	f := newFakeLister(0, 10)
	f.setReferrals("0xABC", 12)
	c := newTestCache(f, user("0xABC", 12))

	c.SetCurrentPage("0xABC", 2)
	_, ok := c.Entry("0xABC")
	assert.False(t, ok, "no entry before the first load")

	require.NoError(t, c.Load(context.Background(), "0xABC", 1))
	c.SetCurrentPage("0xABC", 2)
	e, _ := c.Entry("0xABC")
	assert.Equal(t, 2, e.CurrentPage)

	c.Reset()
	assert.Zero(t, c.Len())
}
