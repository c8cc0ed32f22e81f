package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"refdash/internal/model"
)

func TestStatusCounts(t *testing.T) {
	users := []model.User{
		{RewardStatus: "pending"},
		{RewardStatus: "PENDING"},
		{RewardStatus: "not_eligible"},
		{RewardStatus: ""},
		{RewardStatus: "paid"},
	}
	got := StatusCounts(users)
	assert.Equal(t, 5, got["all"])
	assert.Equal(t, 2, got["pending"])
	assert.Equal(t, 1, got["not_eligible"])
	assert.Equal(t, 1, got["none"])
	assert.Equal(t, 1, got["paid"])
	assert.Equal(t, []string{"all", "none", "not_eligible", "paid", "pending"}, SortedStatusKeys(got))
}

func TestSummarize(t *testing.T) {
	users := []model.User{
		{RewardEarned: decimal.RequireFromString("10.25"), ReferralCount: 12, HasCompletedBoth: true},
		{RewardEarned: decimal.RequireFromString("0.75"), ReferralCount: 3},
	}
	s := Summarize(users)
	assert.Equal(t, 2, s.Users)
	assert.Equal(t, "11", s.TotalReward.String())
	assert.Equal(t, 15, s.TotalReferrals)
	assert.Equal(t, 1, s.CompletedBoth)
}
