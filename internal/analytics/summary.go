package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"refdash/internal/model"
)

// StatusCounts buckets users by normalised reward status.
// The "all" key holds the total.
func StatusCounts(users []model.User) map[string]int {
	counts := map[string]int{string(model.StatusAll): len(users)}
	for _, s := range model.KnownStatuses {
		counts[string(s)] = 0
	}
	for _, u := range users {
		s := u.RewardStatus.Normalize()
		if s == "" {
			s = model.StatusNone
		}
		counts[string(s)]++
	}
	return counts
}

// SortedStatusKeys returns the keys with "all" first and the rest sorted.
func SortedStatusKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != string(model.StatusAll) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := m[string(model.StatusAll)]; ok {
		keys = append([]string{string(model.StatusAll)}, keys...)
	}
	return keys
}

// Summary aggregates one listing of users.
type Summary struct {
	Users          int             `json:"users"`
	TotalReward    decimal.Decimal `json:"totalReward"`
	TotalReferrals int             `json:"totalReferrals"`
	CompletedBoth  int             `json:"completedBoth"`
	Statuses       map[string]int  `json:"statuses"`
}

// Summarize totals rewards, referral counts and task completion over users.
func Summarize(users []model.User) Summary {
	s := Summary{Users: len(users), TotalReward: decimal.Zero, Statuses: StatusCounts(users)}
	for _, u := range users {
		s.TotalReward = s.TotalReward.Add(u.RewardEarned)
		s.TotalReferrals += u.ReferralCount
		if u.HasCompletedBoth {
			s.CompletedBoth++
		}
	}
	return s
}
