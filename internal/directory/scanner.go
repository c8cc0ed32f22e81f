package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"refdash/internal/metrics"
	"refdash/internal/model"
)

// ErrScanCancelled is returned by Scan when a newer search or Cancel superseded it.
var ErrScanCancelled = errors.New("scan cancelled")

// ScanOptions tune the search scan.
type ScanOptions struct {
	PageSize int
	// Debounce is the quiet period Submit waits before scanning.
	Debounce time.Duration
	// Delay is the pause between successive page fetches.
	Delay time.Duration
	// MaxPages bounds the pages visited by one scan, 0 means no bound.
	MaxPages int
}

// SearchState is the visible search session.
type SearchState struct {
	Query        string
	Active       bool
	Scanning     bool
	Results      []model.User
	MatchPage    int
	PagesScanned int
	Err          error
}

// ScanResult is the outcome of one completed scan.
type ScanResult struct {
	Query        string
	Users        []model.User
	MatchPage    int
	PagesScanned int
}

type scanToken struct {
	id        string
	cancelled atomic.Bool
	cancel    context.CancelFunc
}

func (t *scanToken) stop() {
	t.cancelled.Store(true)
	if t.cancel != nil {
		t.cancel()
	}
}

// Scanner searches the directory for wallet addresses containing a query.
//
// Only whole directory pages can be fetched, so a scan walks pages from 1 and stops at
// the first page with at least one match, returning that page's matches only. It is
// not exhaustive: a match on page 9 is not reported when page 3 already matched.
//
// Only one scan is current at a time. Starting a scan or calling Cancel stops the
// previous one, which then never writes state.
type Scanner struct {
	lister Lister
	opts   ScanOptions
	logger *zap.Logger

	// done runs after a debounced scan commits or fails.
	done func(err error)

	mu    sync.Mutex
	token *scanToken
	timer *time.Timer
	state SearchState
}

func NewScanner(lister Lister, opts ScanOptions, logger *zap.Logger) *Scanner {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	return &Scanner{lister: lister, opts: opts, logger: logger}
}

// State returns a copy of the search session.
func (s *Scanner) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Results = append([]model.User(nil), s.state.Results...)
	return out
}

// Find returns the search result with id while search mode is active.
func (s *Scanner) Find(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active {
		return model.User{}, false
	}
	return findUser(s.state.Results, id)
}

// Active reports whether search mode is on.
func (s *Scanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Active
}

// Submit schedules a scan for query once input has been quiet for the debounce period.
// Every call cancels the pending or running scan. An empty query behaves like Cancel.
func (s *Scanner) Submit(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.Cancel()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	tok := &scanToken{id: uuid.NewString(), cancel: cancel}

	s.mu.Lock()
	s.supersedeLocked(tok)
	s.state.Query = query
	s.state.Active = true
	s.state.Scanning = true
	s.state.Err = nil
	s.timer = time.AfterFunc(s.opts.Debounce, func() {
		defer cancel()
		_, err := s.run(ctx, tok, query)
		if errors.Is(err, ErrScanCancelled) {
			return
		}
		if s.done != nil {
			s.done(err)
		}
	})
	s.mu.Unlock()
}

// Scan runs a scan for query immediately in the calling goroutine.
func (s *Scanner) Scan(ctx context.Context, query string) (ScanResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.Cancel()
		return ScanResult{}, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	tok := &scanToken{id: uuid.NewString(), cancel: cancel}

	s.mu.Lock()
	s.supersedeLocked(tok)
	s.state.Query = query
	s.state.Active = true
	s.state.Scanning = true
	s.state.Err = nil
	s.mu.Unlock()

	return s.run(ctx, tok, query)
}

// Cancel stops any pending or running scan and leaves search mode.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked(nil)
	s.state = SearchState{}
}

func (s *Scanner) supersedeLocked(next *scanToken) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.token != nil {
		s.token.stop()
	}
	s.token = next
}

func (s *Scanner) run(ctx context.Context, tok *scanToken, query string) (ScanResult, error) {
	log := s.logger.With(zap.String("scan_id", tok.id), zap.String("query", query))
	res := ScanResult{Query: query}
	for page := 1; ; page++ {
		if s.opts.MaxPages > 0 && page > s.opts.MaxPages {
			log.Info("scan reached page bound", zap.Int("max_pages", s.opts.MaxPages))
			break
		}
		if tok.cancelled.Load() {
			return s.cancelled(tok, log)
		}
		if page > 1 && s.opts.Delay > 0 {
			select {
			case <-time.After(s.opts.Delay):
			case <-ctx.Done():
				return s.cancelled(tok, log)
			}
		}
		dp, err := s.lister.ListUsers(ctx, page)
		if tok.cancelled.Load() {
			return s.cancelled(tok, log)
		}
		if err != nil {
			if ctx.Err() != nil {
				return s.cancelled(tok, log)
			}
			if !s.commit(tok, func(st *SearchState) {
				st.Scanning = false
				st.Results = nil
				st.MatchPage = 0
				st.PagesScanned = res.PagesScanned
				st.Err = err
			}) {
				return s.cancelled(tok, log)
			}
			metrics.IncScan("error")
			log.Warn("scan page fetch failed", zap.Int("page", page), zap.Error(err))
			return ScanResult{Query: query, PagesScanned: res.PagesScanned}, err
		}
		metrics.IncScanPage()
		res.PagesScanned = page

		if matches := model.FilterByAddress(dp.Users, query); len(matches) > 0 {
			res.Users = matches
			res.MatchPage = page
			break
		}
		totalPages := dp.TotalPages
		if totalPages <= 0 {
			totalPages = model.PageCount(dp.TotalUsers, s.opts.PageSize)
		}
		if page >= totalPages || len(dp.Users) == 0 {
			break
		}
	}

	if !s.commit(tok, func(st *SearchState) {
		st.Scanning = false
		st.Results = res.Users
		st.MatchPage = res.MatchPage
		st.PagesScanned = res.PagesScanned
		st.Err = nil
	}) {
		return s.cancelled(tok, log)
	}
	if res.MatchPage > 0 {
		metrics.IncScan("match")
	} else {
		metrics.IncScan("empty")
	}
	log.Debug("scan finished", zap.Int("pages", res.PagesScanned), zap.Int("matches", len(res.Users)))
	return res, nil
}

// commit applies fn only while tok is still the current scan.
func (s *Scanner) commit(tok *scanToken, fn func(*SearchState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != tok || tok.cancelled.Load() {
		return false
	}
	fn(&s.state)
	s.token = nil
	return true
}

// cancelled ends a scan without results. A scan aborted by its caller's context
// while still current only drops the scanning flag; a superseded one touches nothing.
func (s *Scanner) cancelled(tok *scanToken, log *zap.Logger) (ScanResult, error) {
	s.mu.Lock()
	if s.token == tok {
		s.token = nil
		s.state.Scanning = false
	}
	s.mu.Unlock()
	metrics.IncScan("cancelled")
	log.Debug("scan cancelled")
	return ScanResult{}, ErrScanCancelled
}
