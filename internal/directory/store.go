// Package directory implements the user directory browser: the paged user listing,
// per-user referral pages loaded on demand, the wallet search scan and the
// expansion state that keeps them consistent.
package directory

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"refdash/internal/apperr"
	"refdash/internal/metrics"
	"refdash/internal/model"
)

// Lister is the admin API surface the browser depends on.
type Lister interface {
	ListUsers(ctx context.Context, page int) (model.DirectoryPage, error)
	ListReferrals(ctx context.Context, address string, page, limit int) (model.ReferralPage, error)
}

// ErrPageOutOfRange is wrapped by the ValidationError for a page outside [1, TotalPages].
var ErrPageOutOfRange = errors.New("page out of range")

// PageState is a copy of the Store's current page.
type PageState struct {
	Page                      int
	Users                     []model.User
	TotalUsers                int
	TotalPages                int
	TotalReferralTokensEarned decimal.Decimal
	Loading                   bool
	Err                       error
}

// Store holds one page of the top-level directory.
// Concurrent LoadPage calls are allowed; the most recent call wins.
type Store struct {
	lister   Lister
	pageSize int
	logger   *zap.Logger

	mu    sync.Mutex
	gen   uint64
	known bool
	state PageState
}

func NewStore(lister Lister, pageSize int, logger *zap.Logger) *Store {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Store{lister: lister, pageSize: pageSize, logger: logger}
}

// ValidPage reports whether page may be requested.
// Before the first successful load only the lower bound is known.
func (s *Store) ValidPage(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked(page)
}

func (s *Store) validLocked(page int) bool {
	if page < 1 {
		return false
	}
	if !s.known {
		return true
	}
	return page <= max(s.state.TotalPages, 1)
}

// LoadPage fetches page and replaces the held listing.
// On failure the previous listing stays in place and Err is set.
// A response that arrives after a newer LoadPage started is discarded.
func (s *Store) LoadPage(ctx context.Context, page int) error {
	s.mu.Lock()
	if !s.validLocked(page) {
		s.mu.Unlock()
		return apperr.ValidationError(ErrPageOutOfRange, "page out of range")
	}
	s.gen++
	gen := s.gen
	s.state.Loading = true
	s.mu.Unlock()

	dp, err := s.lister.ListUsers(ctx, page)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		metrics.IncPageLoad("stale")
		s.logger.Debug("discarding stale page response", zap.Int("page", page))
		return nil
	}
	s.state.Loading = false
	if err != nil {
		metrics.IncPageLoad("error")
		s.state.Err = err
		return err
	}
	metrics.IncPageLoad("ok")
	totalPages := dp.TotalPages
	if totalPages <= 0 {
		totalPages = model.PageCount(dp.TotalUsers, s.pageSize)
	}
	s.known = true
	s.state = PageState{
		Page:                      page,
		Users:                     dp.Users,
		TotalUsers:                dp.TotalUsers,
		TotalPages:                totalPages,
		TotalReferralTokensEarned: dp.TotalReferralTokensEarned,
	}
	return nil
}

// Snapshot returns a copy of the current page state.
func (s *Store) Snapshot() PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Users = append([]model.User(nil), s.state.Users...)
	return out
}

// Page returns the last successfully loaded page, 0 before any load.
func (s *Store) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Page
}

// Find returns the user with id on the current page.
func (s *Store) Find(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findUser(s.state.Users, id)
}

func findUser(users []model.User, id string) (model.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}
