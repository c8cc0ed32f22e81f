package jobs

import (
	"context"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"refdash/internal/export"
	"refdash/internal/model"
)

const exportCursorKey = "export:last_page"

// UserLister is the part of the admin API an export needs.
type UserLister interface {
	ListUsers(ctx context.Context, page int) (model.DirectoryPage, error)
}

// Recorder persists export progress. *sqlitestore.DB satisfies it.
type Recorder interface {
	SaveCursor(ctx context.Context, key, value string) error
	PutEvent(ctx context.Context, ts time.Time, typ string, payload any) error
}

// ExportResult summarises one full export.
type ExportResult struct {
	Pages int
	Users int
}

// ExportAllUsers pages through the whole directory in order, writing every user as CSV.
// pageSize is used to derive the page count when the server omits it.
// A page fetch failure aborts the export; rows already written stay in w.
func ExportAllUsers(ctx context.Context, rec Recorder, client UserLister, w io.Writer, pageSize int, logger *zap.Logger) (ExportResult, error) {
	start := time.Now()
	cw := export.NewWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return ExportResult{}, err
	}
	var res ExportResult
	for page := 1; ; page++ {
		dp, err := client.ListUsers(ctx, page)
		if err != nil {
			_ = cw.Flush()
			logger.Warn("export aborted", zap.Int("page", page), zap.Error(err))
			return res, err
		}
		if err := cw.Write(dp.Users); err != nil {
			return res, err
		}
		res.Pages = page
		res.Users = cw.Rows()

		total := dp.TotalPages
		if total <= 0 {
			total = model.PageCount(dp.TotalUsers, pageSize)
		}
		if page >= total || len(dp.Users) == 0 {
			break
		}
	}
	if err := cw.Flush(); err != nil {
		return res, err
	}
	if rec != nil {
		if err := rec.PutEvent(ctx, start, "export", map[string]any{"pages": res.Pages, "users": res.Users, "took_ms": time.Since(start).Milliseconds()}); err != nil {
			logger.Warn("export event not recorded", zap.Error(err))
		}
		if err := rec.SaveCursor(ctx, exportCursorKey, strconv.Itoa(res.Pages)); err != nil {
			logger.Warn("export cursor not saved", zap.Error(err))
		}
	}
	logger.Info("export completed", zap.Int("pages", res.Pages), zap.Int("users", res.Users), zap.Duration("took", time.Since(start)))
	return res, nil
}
