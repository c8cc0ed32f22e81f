package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RewardStatus is the server-assigned reward state of a user.
type RewardStatus string

const (
	StatusPending     RewardStatus = "pending"
	StatusNotEligible RewardStatus = "not_eligible"
	StatusNone        RewardStatus = "none"
)

// KnownStatuses lists the statuses the dashboard offers as filters.
var KnownStatuses = []RewardStatus{StatusPending, StatusNotEligible, StatusNone}

// Normalize lower-cases the status so comparisons ignore server casing.
func (s RewardStatus) Normalize() RewardStatus {
	return RewardStatus(strings.ToLower(strings.TrimSpace(string(s))))
}

// User is one directory entry. ID is the wallet address.
type User struct {
	ID                     string          `json:"id"`
	WalletAddress          string          `json:"walletAddress"`
	SocialTasksCompleted   bool            `json:"socialTasksCompleted"`
	ReferralTasksCompleted bool            `json:"referralTasksCompleted"`
	HasCompletedBoth       bool            `json:"hasCompletedBoth"`
	RewardEarned           decimal.Decimal `json:"rewardEarned"`
	RewardStatus           RewardStatus    `json:"rewardStatus"`
	// ReferralCount is the server's total and decides expandability.
	ReferralCount int `json:"referralCount"`
	// Referrals holds only the currently loaded referral page.
	Referrals         []User `json:"referrals"`
	InstagramUsername string `json:"instagramusername,omitempty"`
	XUsername         string `json:"xusername,omitempty"`
	TelegramUsername  string `json:"telegramusername,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
}

// Expandable reports whether the user has referrals to show.
func (u User) Expandable() bool { return u.ReferralCount > 0 }

// QualifiedReferrals counts loaded referrals that completed both task sets.
func (u User) QualifiedReferrals() int {
	n := 0
	for _, r := range u.Referrals {
		if r.HasCompletedBoth {
			n++
		}
	}
	return n
}

// DirectoryPage is one page of the top-level user listing.
type DirectoryPage struct {
	Page                      int
	Users                     []User
	TotalUsers                int
	TotalPages                int
	TotalReferralTokensEarned decimal.Decimal
}

// ReferralPage is one page of a user's referred users.
type ReferralPage struct {
	Users         []User
	CurrentPage   int
	TotalPages    int
	TotalReferred int
}

// ReferralPagination is the per-user referral paging entry.
type ReferralPagination struct {
	TotalReferred int `json:"totalReferred"`
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
}

// PageCount returns ceil(total/size), or 0 when size is not positive.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
