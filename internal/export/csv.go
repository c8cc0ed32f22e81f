// Package export writes users as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"refdash/internal/model"
)

// Header is the first row of every export.
var Header = []string{
	"Wallet Address",
	"Referral Count",
	"Reward Earned",
	"Reward Status",
	"Social Tasks",
	"Referral Tasks",
	"Completed Both",
	"Instagram",
	"X",
	"Telegram",
	"Created At",
}

// Writer streams users as CSV rows. The header is written once, before the first row.
type Writer struct {
	cw     *csv.Writer
	header bool
	rows   int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: csv.NewWriter(w)}
}

// WriteHeader writes the header row if it has not been written yet.
func (w *Writer) WriteHeader() error {
	if w.header {
		return nil
	}
	w.header = true
	return w.cw.Write(Header)
}

// Write appends one row per user.
func (w *Writer) Write(users []model.User) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, u := range users {
		if err := w.cw.Write(Record(u)); err != nil {
			return err
		}
		w.rows++
	}
	return nil
}

// Rows is the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// WriteUsers writes the header and one row per user.
func WriteUsers(w io.Writer, users []model.User) error {
	cw := NewWriter(w)
	if err := cw.Write(users); err != nil {
		return err
	}
	return cw.Flush()
}

// Record flattens u into the column order of Header.
func Record(u model.User) []string {
	return []string{
		u.WalletAddress,
		strconv.Itoa(u.ReferralCount),
		u.RewardEarned.String(),
		string(u.RewardStatus),
		yesNo(u.SocialTasksCompleted),
		yesNo(u.ReferralTasksCompleted),
		yesNo(u.HasCompletedBoth),
		u.InstagramUsername,
		u.XUsername,
		u.TelegramUsername,
		u.CreatedAt,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
