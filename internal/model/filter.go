package model

import "refdash/internal/util"

// StatusAll disables status filtering.
const StatusAll RewardStatus = "all"

// MatchesStatus reports whether u passes the status filter.
// An empty filter or "all" matches everything; comparison ignores case.
func (u User) MatchesStatus(filter RewardStatus) bool {
	f := filter.Normalize()
	if f == "" || f == StatusAll {
		return true
	}
	return u.RewardStatus.Normalize() == f
}

// MatchesAddress reports whether the wallet address contains query, ignoring case.
func (u User) MatchesAddress(query string) bool {
	return util.ContainsFold(u.WalletAddress, query)
}

// FilterByAddress returns the users whose wallet address contains query.
func FilterByAddress(users []User, query string) []User {
	var out []User
	for _, u := range users {
		if u.MatchesAddress(query) {
			out = append(out, u)
		}
	}
	return out
}
