package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"refdash/internal/model"
)

// fakeLister serves an in-memory directory.
type fakeLister struct {
	mu            sync.Mutex
	users         []model.User
	pageSize      int
	serverPages   int
	referrals     map[string][]model.User
	userErr       map[int]error
	refErr        error
	gates         map[int]chan struct{}
	refGate       chan struct{}
	userCalls     []int
	userCallTimes []time.Time
	refCalls      []string
	returnedCalls int
}

func newFakeLister(n, pageSize int) *fakeLister {
	f := &fakeLister{
		pageSize:  pageSize,
		referrals: map[string][]model.User{},
		userErr:   map[int]error{},
		gates:     map[int]chan struct{}{},
	}
	for i := 0; i < n; i++ {
		f.users = append(f.users, user(fmt.Sprintf("0xu%03d", i), 0))
	}
	return f
}

func user(addr string, referrals int) model.User {
	return model.User{
		ID:            addr,
		WalletAddress: addr,
		RewardEarned:  decimal.NewFromInt(1),
		RewardStatus:  model.StatusNone,
		ReferralCount: referrals,
		Referrals:     []model.User{},
	}
}

// setUser replaces the user at index i.
func (f *fakeLister) setUser(i int, u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[i] = u
}

func (f *fakeLister) setReferrals(addr string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]model.User, 0, n)
	for i := 0; i < n; i++ {
		r := user(fmt.Sprintf("%s-r%02d", addr, i), 0)
		r.HasCompletedBoth = i%2 == 0
		rows = append(rows, r)
	}
	f.referrals[addr] = rows
}

func (f *fakeLister) gate(page int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[page] = ch
	return ch
}

func (f *fakeLister) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.userCalls...)
}

func (f *fakeLister) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.userCallTimes...)
}

func (f *fakeLister) refCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refCalls)
}

func (f *fakeLister) returned() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returnedCalls
}

func (f *fakeLister) ListUsers(ctx context.Context, page int) (model.DirectoryPage, error) {
	f.mu.Lock()
	f.userCalls = append(f.userCalls, page)
	f.userCallTimes = append(f.userCallTimes, time.Now())
	gate := f.gates[page]
	delete(f.gates, page)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.returnedCalls++
	if err := f.userErr[page]; err != nil {
		return model.DirectoryPage{}, err
	}
	start := min((page-1)*f.pageSize, len(f.users))
	end := min(start+f.pageSize, len(f.users))
	return model.DirectoryPage{
		Page:       page,
		Users:      append([]model.User(nil), f.users[start:end]...),
		TotalUsers: len(f.users),
		TotalPages: f.serverPages,
	}, nil
}

func (f *fakeLister) ListReferrals(ctx context.Context, address string, page, limit int) (model.ReferralPage, error) {
	f.mu.Lock()
	f.refCalls = append(f.refCalls, fmt.Sprintf("%s:%d", address, page))
	gate := f.refGate
	f.refGate = nil
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refErr != nil {
		return model.ReferralPage{}, f.refErr
	}
	all := f.referrals[address]
	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	return model.ReferralPage{
		Users:         append([]model.User(nil), all[start:end]...),
		CurrentPage:   page,
		TotalPages:    model.PageCount(len(all), limit),
		TotalReferred: len(all),
	}, nil
}
