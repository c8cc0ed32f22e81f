package directory

import (
	"github.com/shopspring/decimal"

	"refdash/internal/apperr"
	"refdash/internal/model"
)

// View is an immutable snapshot of everything the presentation layer renders.
type View struct {
	Page                      int             `json:"page"`
	TotalPages                int             `json:"totalPages"`
	TotalUsers                int             `json:"totalUsers"`
	TotalReferralTokensEarned decimal.Decimal `json:"totalReferralTokensEarned"`
	Loading                   bool            `json:"loading"`
	Error                     string          `json:"error,omitempty"`
	PageLinks                 []PageLink      `json:"pageLinks,omitempty"`

	SearchMode   bool   `json:"searchMode"`
	Query        string `json:"query,omitempty"`
	Scanning     bool   `json:"scanning"`
	SearchError  string `json:"searchError,omitempty"`
	MatchPage    int    `json:"matchPage,omitempty"`
	PagesScanned int    `json:"pagesScanned,omitempty"`

	StatusFilter string         `json:"statusFilter"`
	StatusCounts map[string]int `json:"statusCounts"`

	AuthRequired bool   `json:"authRequired"`
	LastError    string `json:"lastError,omitempty"`

	Rows []Row `json:"rows"`
}

// Row is one displayed user. User.Referrals is filled only for expanded rows
// and only with the currently loaded referral page.
type Row struct {
	User               model.User                `json:"user"`
	Expandable         bool                      `json:"expandable"`
	Expanded           bool                      `json:"expanded"`
	Loading            bool                      `json:"loading"`
	Pagination         *model.ReferralPagination `json:"pagination,omitempty"`
	Error              string                    `json:"error,omitempty"`
	NoReferralsOnPage  bool                      `json:"noReferralsOnPage"`
	QualifiedReferrals int                       `json:"qualifiedReferrals"`
	ReferralLinks      []PageLink                `json:"referralLinks,omitempty"`
}

// Users returns the users of the rows, without referrals.
func (v View) Users() []model.User {
	out := make([]model.User, 0, len(v.Rows))
	for _, r := range v.Rows {
		u := r.User
		u.Referrals = []model.User{}
		out = append(out, u)
	}
	return out
}

func errString(err error) string {
	return apperr.Message(err)
}
