package apiclient

import (
	"errors"

	"github.com/shopspring/decimal"

	"refdash/internal/model"
)

var errSchema = errors.New("response schema mismatch")

// Wire shapes for the admin API. Pointer fields are required; a missing one fails the decode.

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Result *struct {
		Token string `json:"token"`
	} `json:"result"`
}

type userSummary struct {
	WalletAddress          *string         `json:"walletAddress"`
	SocialTasksCompleted   bool            `json:"socialTasksCompleted"`
	ReferralTasksCompleted bool            `json:"referralTasksCompleted"`
	HasCompletedBoth       bool            `json:"hasCompletedBoth"`
	RewardEarned           decimal.Decimal `json:"rewardEarned"`
	RewardStatus           string          `json:"rewardStatus"`
	TotalReferred          int             `json:"totalReferred"`
	InstagramUsername      string          `json:"instagramusername"`
	XUsername              string          `json:"xusername"`
	TelegramUsername       string          `json:"telegramusername"`
	CreatedAt              string          `json:"createdAt"`
}

type listUsersResponse struct {
	TotalUsers                *int            `json:"totalUsers"`
	TotalPages                *int            `json:"totalPages"`
	TotalReferralTokensEarned decimal.Decimal `json:"totalReferralTokensEarned"`
	Users                     *[]userSummary  `json:"users"`
}

type referralsResponse struct {
	ReferredUsers *[]userSummary `json:"referredUsers"`
	CurrentPage   *int           `json:"currentPage"`
	TotalPages    *int           `json:"totalPages"`
	TotalReferred *int           `json:"totalReferred"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (s userSummary) toModel() (model.User, error) {
	if s.WalletAddress == nil || *s.WalletAddress == "" {
		return model.User{}, errSchema
	}
	return model.User{
		ID:                     *s.WalletAddress,
		WalletAddress:          *s.WalletAddress,
		SocialTasksCompleted:   s.SocialTasksCompleted,
		ReferralTasksCompleted: s.ReferralTasksCompleted,
		HasCompletedBoth:       s.HasCompletedBoth,
		RewardEarned:           s.RewardEarned,
		RewardStatus:           model.RewardStatus(s.RewardStatus),
		ReferralCount:          s.TotalReferred,
		Referrals:              []model.User{},
		InstagramUsername:      s.InstagramUsername,
		XUsername:              s.XUsername,
		TelegramUsername:       s.TelegramUsername,
		CreatedAt:              s.CreatedAt,
	}, nil
}

func toUsers(in []userSummary) ([]model.User, error) {
	out := make([]model.User, 0, len(in))
	for _, s := range in {
		u, err := s.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r listUsersResponse) toModel(page int) (model.DirectoryPage, error) {
	if r.TotalUsers == nil || r.Users == nil {
		return model.DirectoryPage{}, errSchema
	}
	users, err := toUsers(*r.Users)
	if err != nil {
		return model.DirectoryPage{}, err
	}
	out := model.DirectoryPage{
		Page:                      page,
		Users:                     users,
		TotalUsers:                *r.TotalUsers,
		TotalReferralTokensEarned: r.TotalReferralTokensEarned,
	}
	if r.TotalPages != nil {
		out.TotalPages = *r.TotalPages
	}
	return out, nil
}

func (r referralsResponse) toModel() (model.ReferralPage, error) {
	if r.ReferredUsers == nil || r.CurrentPage == nil || r.TotalPages == nil || r.TotalReferred == nil {
		return model.ReferralPage{}, errSchema
	}
	users, err := toUsers(*r.ReferredUsers)
	if err != nil {
		return model.ReferralPage{}, err
	}
	return model.ReferralPage{
		Users:         users,
		CurrentPage:   *r.CurrentPage,
		TotalPages:    *r.TotalPages,
		TotalReferred: *r.TotalReferred,
	}, nil
}
