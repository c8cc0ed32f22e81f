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
)

func newTestScanner(f *fakeLister, debounce time.Duration) *Scanner {
	return NewScanner(f, ScanOptions{PageSize: 10, Debounce: debounce}, zap.NewNop())
}

func TestScanStopsAtFirstMatchingPage(t *testing.T) {
	f := newFakeLister(70, 10)
	f.setUser(42, user("0xFEED42", 0))
	f.setUser(45, user("0xfeed45", 0))
	f.setUser(61, user("0xFEED61", 0))
	s := newTestScanner(f, 0)

	res, err := s.Scan(context.Background(), "feed")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, f.calls(), "pages after the first hit are not fetched")
	assert.Equal(t, 5, res.MatchPage)
	require.Len(t, res.Users, 2)
	assert.Equal(t, "0xFEED42", res.Users[0].ID)
	assert.Equal(t, "0xfeed45", res.Users[1].ID)

	st := s.State()
	assert.True(t, st.Active)
	assert.False(t, st.Scanning)
	assert.Equal(t, "feed", st.Query)
	assert.Len(t, st.Results, 2)
}

func TestScanExhaustsAllPagesWithoutMatch(t *testing.T) {
	f := newFakeLister(23, 10)
	s := newTestScanner(f, 0)
	res, err := s.Scan(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, f.calls())
	assert.Empty(t, res.Users)
	assert.Zero(t, res.MatchPage)
	assert.True(t, s.State().Active)
}

func TestScanRespectsPageBound(t *testing.T) {
	f := newFakeLister(70, 10)
	s := NewScanner(f, ScanOptions{PageSize: 10, MaxPages: 2}, zap.NewNop())
	_, err := s.Scan(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, f.calls())
}

func TestScanFetchErrorDiscardsResults(t *testing.T) {
	f := newFakeLister(50, 10)
	f.userErr[3] = apperr.FetchError(errors.New("status 502"), "")
	s := newTestScanner(f, 0)

	_, err := s.Scan(context.Background(), "nothing")
	require.Error(t, err)
	assert.Equal(t, []int{1, 2, 3}, f.calls())
	st := s.State()
	assert.Empty(t, st.Results)
	assert.False(t, st.Scanning)
	assert.True(t, apperr.Is(st.Err, apperr.KindFetch))
}

func TestSubmitDebouncesKeystrokes(t *testing.T) {
	f := newFakeLister(30, 10)
	f.setUser(3, user("0x12ff", 0))
	f.setUser(14, user("0x1234", 0))
	s := newTestScanner(f, 30*time.Millisecond)

	s.Submit("0x12")
	s.Submit("0x123")
	assert.True(t, s.State().Scanning)
	require.Eventually(t, func() bool { return !s.State().Scanning }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []int{1, 2}, f.calls(), "only the scan for the last query runs")
	st := s.State()
	assert.Equal(t, "0x123", st.Query)
	require.Len(t, st.Results, 1)
	assert.Equal(t, "0x1234", st.Results[0].ID)
}

func TestCancelDuringScanLeavesNoTrace(t *testing.T) {
	f := newFakeLister(30, 10)
	f.setUser(3, user("0xFEED", 0))
	release := f.gate(1)
	s := newTestScanner(f, 0)

	s.Submit("feed")
	require.Eventually(t, func() bool { return len(f.calls()) == 1 }, time.Second, time.Millisecond)
	s.Cancel()
	close(release)
	require.Eventually(t, func() bool { return f.returned() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	st := s.State()
	assert.False(t, st.Active)
	assert.Empty(t, st.Results)
	assert.Empty(t, st.Query)
	assert.Equal(t, []int{1}, f.calls())
}

func TestNewerScanSupersedesOlder(t *testing.T) {
	f := newFakeLister(30, 10)
	f.setUser(3, user("0xAAA1", 0))
	f.setUser(15, user("0xBBB1", 0))
	release := f.gate(1)
	s := newTestScanner(f, 0)

	oldDone := make(chan error, 1)
	go func() {
		_, err := s.Scan(context.Background(), "aaa")
		oldDone <- err
	}()
	require.Eventually(t, func() bool { return len(f.calls()) == 1 }, time.Second, time.Millisecond)

	res, err := s.Scan(context.Background(), "bbb")
	require.NoError(t, err)
	assert.Equal(t, 2, res.MatchPage)
	close(release)
	assert.ErrorIs(t, <-oldDone, ErrScanCancelled)

	st := s.State()
	assert.Equal(t, "bbb", st.Query)
	require.Len(t, st.Results, 1)
	assert.Equal(t, "0xBBB1", st.Results[0].ID)
}

func TestSubmitEmptyQueryExitsSearch(t *testing.T) {
	f := newFakeLister(10, 10)
	s := newTestScanner(f, time.Hour)
	s.Submit("0x")
	assert.True(t, s.Active())
	s.Submit("   ")
	assert.False(t, s.Active())
	assert.Empty(t, f.calls())
}

func TestScanSpacesPageFetchesByDelay(t *testing.T) {
	f := newFakeLister(30, 10)
	delay := 25 * time.Millisecond
	s := NewScanner(f, ScanOptions{PageSize: 10, Delay: delay}, zap.NewNop())

	_, err := s.Scan(context.Background(), "nothing")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, f.calls())
	times := f.callTimes()
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), delay, "fetch %d came too early", i+1)
	}
}

func TestCancelDuringDelayStopsScan(t *testing.T) {
	f := newFakeLister(30, 10)
	s := NewScanner(f, ScanOptions{PageSize: 10, Delay: time.Second}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(context.Background(), "nothing")
		done <- err
	}()
	require.Eventually(t, func() bool { return f.returned() == 1 }, time.Second, time.Millisecond)
	s.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrScanCancelled)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("scan kept waiting out the delay after Cancel")
	}
	assert.Equal(t, []int{1}, f.calls())
	st := s.State()
	assert.False(t, st.Active)
	assert.False(t, st.Scanning)
	assert.Empty(t, st.Query)
	assert.Zero(t, st.PagesScanned)
}
