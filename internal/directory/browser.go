package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"refdash/internal/analytics"
	"refdash/internal/apperr"
	"refdash/internal/config"
	"refdash/internal/model"
)

// ErrNotExpanded is wrapped by the ValidationError for referral paging on a collapsed row.
var ErrNotExpanded = errors.New("user is not expanded")

// Browser is the expansion controller. It owns the Store, ReferralCache and Scanner
// together with the set of expanded rows and keeps them consistent: a primary page
// change or a search mode transition collapses every row and drops all referral state.
//
// Methods that fetch block until their fetch completes and may be called from
// multiple goroutines.
type Browser struct {
	store   *Store
	refs    *ReferralCache
	scanner *Scanner
	logger  *zap.Logger

	mu           sync.Mutex
	expanded     map[string]bool
	epoch        uint64 // bumped whenever every row collapses
	filter       model.RewardStatus
	lastErr      error
	authRequired bool
	onChange     []func()
	onAuth       []func()
}

func New(lister Lister, cfg config.BrowseConfig, logger *zap.Logger) *Browser {
	b := &Browser{
		logger:   logger,
		expanded: make(map[string]bool),
		filter:   model.StatusAll,
	}
	b.store = NewStore(lister, cfg.PageSize, logger)
	b.scanner = NewScanner(lister, ScanOptions{
		PageSize: cfg.PageSize,
		Debounce: cfg.SearchDebounce,
		Delay:    cfg.ScanDelay,
		MaxPages: cfg.MaxScanPages,
	}, logger)
	b.scanner.done = func(err error) {
		b.collapseAll()
		b.settle(err)
	}
	b.refs = NewReferralCache(lister, cfg.ReferralPageSize, b.resolve, logger)
	return b
}

// OnChange registers fn to run after every state change.
func (b *Browser) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

// OnAuthRequired registers fn to run when an operation fails with an AuthError.
func (b *Browser) OnAuthRequired(fn func()) {
	b.mu.Lock()
	b.onAuth = append(b.onAuth, fn)
	b.mu.Unlock()
}

// resolve looks id up in the active listing: search results in search mode,
// the primary page otherwise.
func (b *Browser) resolve(id string) (model.User, bool) {
	if b.scanner.Active() {
		return b.scanner.Find(id)
	}
	return b.store.Find(id)
}

// ChangePage loads primary page page. An out of range page is rejected without
// touching any state. Otherwise search mode ends and every row collapses first.
func (b *Browser) ChangePage(ctx context.Context, page int) error {
	if !b.store.ValidPage(page) {
		return apperr.ValidationError(ErrPageOutOfRange, "page out of range")
	}
	b.scanner.Cancel()
	b.collapseAll()
	b.notify()
	err := b.store.LoadPage(ctx, page)
	b.collapseAll()
	b.settle(err)
	return err
}

// SetQuery drives search from keystrokes: a non-empty query enters search mode and
// schedules a debounced scan, an empty one leaves search mode.
func (b *Browser) SetQuery(query string) {
	if strings.TrimSpace(query) == "" {
		b.ClearSearch()
		return
	}
	b.collapseAll()
	b.scanner.Submit(query)
	b.notify()
}

// SearchNow scans for query without debouncing and returns the scan outcome.
func (b *Browser) SearchNow(ctx context.Context, query string) (ScanResult, error) {
	b.collapseAll()
	b.notify()
	res, err := b.scanner.Scan(ctx, query)
	if errors.Is(err, ErrScanCancelled) {
		return res, err
	}
	b.collapseAll()
	b.settle(err)
	return res, err
}

// ClearSearch cancels any scan and returns to the last loaded primary page.
func (b *Browser) ClearSearch() {
	b.scanner.Cancel()
	b.collapseAll()
	b.notify()
}

// ToggleExpand collapses an expanded row or expands a collapsed one and loads its
// first referral page. Users without referrals are never expanded and cause no fetch.
// A row resolved from a listing that was replaced meanwhile is not expanded.
func (b *Browser) ToggleExpand(ctx context.Context, id string) error {
	b.mu.Lock()
	epoch := b.epoch
	b.mu.Unlock()
	user, ok := b.resolve(id)
	if !ok {
		err := apperr.NotFoundError(nil, "user "+id+" is not in the current listing")
		b.settle(err)
		return err
	}
	b.mu.Lock()
	if b.expanded[id] {
		delete(b.expanded, id)
		b.refs.Evict(id)
		b.mu.Unlock()
		b.notify()
		return nil
	}
	if !user.Expandable() || b.epoch != epoch {
		b.mu.Unlock()
		return nil
	}
	b.expanded[id] = true
	b.mu.Unlock()
	b.notify()

	err := b.loadReferrals(ctx, id, 1)
	b.settle(err)
	return err
}

// ChangeReferralPage moves an expanded row to referral page page.
// The page number is updated before the fetch and is kept if the fetch fails;
// RetryReferrals reloads it.
func (b *Browser) ChangeReferralPage(ctx context.Context, id string, page int) error {
	if !b.isExpanded(id) {
		return apperr.ValidationError(ErrNotExpanded, "user is not expanded")
	}
	user, ok := b.resolve(id)
	if !ok {
		return apperr.NotFoundError(nil, "user "+id+" is not in the current listing")
	}
	total := model.PageCount(user.ReferralCount, b.refs.Limit())
	if e, ok := b.refs.Entry(id); ok && e.TotalPages > 0 {
		total = e.TotalPages
	}
	if page < 1 || page > max(total, 1) {
		return apperr.ValidationError(ErrPageOutOfRange, "referral page out of range")
	}
	b.refs.SetCurrentPage(id, page)
	b.notify()
	err := b.loadReferrals(ctx, id, page)
	b.settle(err)
	return err
}

// RetryReferrals reloads the current referral page of an expanded row.
func (b *Browser) RetryReferrals(ctx context.Context, id string) error {
	if !b.isExpanded(id) {
		return apperr.ValidationError(ErrNotExpanded, "user is not expanded")
	}
	page := 1
	if e, ok := b.refs.Entry(id); ok && e.CurrentPage > 0 {
		page = e.CurrentPage
	}
	b.notify()
	err := b.loadReferrals(ctx, id, page)
	b.settle(err)
	return err
}

// Refresh reloads the current primary page and then the first referral page of
// every row that is still expanded and still listed.
func (b *Browser) Refresh(ctx context.Context) error {
	page := max(b.store.Page(), 1)
	b.notify()
	if err := b.store.LoadPage(ctx, page); err != nil {
		b.settle(err)
		return err
	}
	var firstErr error
	for _, id := range b.expandedIDs() {
		if _, ok := b.resolve(id); !ok {
			b.mu.Lock()
			delete(b.expanded, id)
			b.mu.Unlock()
			b.refs.Evict(id)
			continue
		}
		if err := b.loadReferrals(ctx, id, 1); err != nil && firstErr == nil {
			firstErr = err
		}
		if apperr.Is(firstErr, apperr.KindAuth) {
			break
		}
	}
	b.settle(firstErr)
	return firstErr
}

// SetStatusFilter restricts the displayed rows to one reward status, or "all".
func (b *Browser) SetStatusFilter(status string) error {
	f := model.RewardStatus(status).Normalize()
	if f == "" {
		f = model.StatusAll
	}
	valid := f == model.StatusAll
	for _, s := range model.KnownStatuses {
		valid = valid || f == s
	}
	if !valid {
		return apperr.ValidationError(nil, "unknown status filter "+status)
	}
	b.mu.Lock()
	b.filter = f
	b.mu.Unlock()
	b.notify()
	return nil
}

// SessionCleared drops every expanded row and marks the view as needing a login.
// A running scan is left alone; its next fetch fails with an AuthError.
func (b *Browser) SessionCleared() {
	b.collapseAll()
	b.mu.Lock()
	b.authRequired = true
	b.mu.Unlock()
	b.notify()
}

// Expanded reports whether the row with id is expanded.
func (b *Browser) Expanded(id string) bool { return b.isExpanded(id) }

// View assembles the current snapshot.
func (b *Browser) View() View {
	page := b.store.Snapshot()
	search := b.scanner.State()

	b.mu.Lock()
	filter := b.filter
	expanded := make(map[string]bool, len(b.expanded))
	for id := range b.expanded {
		expanded[id] = true
	}
	v := View{
		Page:                      page.Page,
		TotalPages:                page.TotalPages,
		TotalUsers:                page.TotalUsers,
		TotalReferralTokensEarned: page.TotalReferralTokensEarned,
		Loading:                   page.Loading,
		Error:                     errString(page.Err),
		SearchMode:                search.Active,
		Query:                     search.Query,
		Scanning:                  search.Scanning,
		SearchError:               errString(search.Err),
		MatchPage:                 search.MatchPage,
		PagesScanned:              search.PagesScanned,
		StatusFilter:              string(filter),
		AuthRequired:              b.authRequired,
		LastError:                 errString(b.lastErr),
	}
	b.mu.Unlock()

	users := page.Users
	if search.Active {
		users = search.Results
	} else {
		v.PageLinks = PageWindow(page.Page, page.TotalPages)
	}
	v.StatusCounts = analytics.StatusCounts(users)
	v.Rows = make([]Row, 0, len(users))
	for _, u := range users {
		if !u.MatchesStatus(filter) {
			continue
		}
		v.Rows = append(v.Rows, b.row(u, expanded[u.ID]))
	}
	return v
}

func (b *Browser) row(u model.User, expanded bool) Row {
	r := Row{Expandable: u.Expandable(), Expanded: expanded}
	u.Referrals = []model.User{}
	if expanded {
		u.Referrals = b.refs.Rows(u.ID)
		r.Loading = b.refs.Loading(u.ID)
		err := b.refs.Err(u.ID)
		r.Error = errString(err)
		if e, ok := b.refs.Entry(u.ID); ok {
			r.Pagination = &e
			r.ReferralLinks = ReferralLinks(e.CurrentPage, e.TotalPages)
			r.NoReferralsOnPage = !r.Loading && err == nil && len(u.Referrals) == 0
		}
	}
	r.User = u
	r.QualifiedReferrals = u.QualifiedReferrals()
	return r
}

// loadReferrals loads one referral page and drops the result if the row was
// collapsed while the fetch was in flight.
func (b *Browser) loadReferrals(ctx context.Context, id string, page int) error {
	err := b.refs.Load(ctx, id, page)
	if !b.isExpanded(id) {
		b.refs.Evict(id)
		if apperr.Is(err, apperr.KindAuth) {
			return err
		}
		return nil
	}
	return err
}

func (b *Browser) isExpanded(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expanded[id]
}

func (b *Browser) expandedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.expanded))
	for id := range b.expanded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Browser) collapseAll() {
	b.mu.Lock()
	b.expanded = make(map[string]bool)
	b.epoch++
	b.refs.Reset()
	b.mu.Unlock()
}

// settle records the outcome of an operation and notifies listeners.
func (b *Browser) settle(err error) {
	if err != nil {
		b.fail(err)
	} else {
		b.mu.Lock()
		b.authRequired = false
		b.mu.Unlock()
	}
	b.notify()
}

// fail records err. An AuthError ends the session: the scan stops, every row
// collapses and the auth callbacks run.
func (b *Browser) fail(err error) {
	if !apperr.Is(err, apperr.KindAuth) {
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
		return
	}
	b.logger.Warn("authentication required", zap.Error(err))
	b.scanner.Cancel()
	b.collapseAll()
	b.mu.Lock()
	b.lastErr = err
	b.authRequired = true
	hooks := append([]func(){}, b.onAuth...)
	b.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (b *Browser) notify() {
	b.mu.Lock()
	hooks := append([]func(){}, b.onChange...)
	b.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
