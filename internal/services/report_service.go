package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// ReportQuery scopes a report to one user, an inclusive date window, an
// optional source wallet and, for breakdown and trend, a kind.
type ReportQuery = storage.ReportFilter

// DefaultTopN is how many categories the dashboard ranks.
const DefaultTopN = 5

// ReportService answers read-only aggregate queries.
type ReportService struct {
	repo  *storage.Repository
	cache cache.Cache[core.Dashboard]
}

// NewReportService wires the service. A nil cache disables dashboard caching.
func NewReportService(repo *storage.Repository, c cache.Cache[core.Dashboard]) *ReportService {
	return &ReportService{repo: repo, cache: c}
}

func (s *ReportService) CategoryBreakdown(ctx context.Context, q ReportQuery) ([]core.CategoryAmount, error) {
	return s.repo.Queries().SumByCategory(ctx, withDefaultKind(q))
}

func (s *ReportService) Cashflow(ctx context.Context, q ReportQuery) (core.Cashflow, error) {
	return s.repo.Queries().SumByKind(ctx, q)
}

func (s *ReportService) Trend(ctx context.Context, q ReportQuery) ([]core.TrendPoint, error) {
	return s.repo.Queries().SumByDate(ctx, withDefaultKind(q))
}

// TopSpending ranks expense categories. n <= 0 keeps all of them.
func (s *ReportService) TopSpending(ctx context.Context, q ReportQuery, n int) ([]core.TopSpending, error) {
	q.Kind = core.KindExpense
	buckets, err := s.repo.Queries().SumByCategory(ctx, q)
	if err != nil {
		return nil, err
	}
	return core.RankTopSpending(buckets, n), nil
}

func (s *ReportService) ExportRows(ctx context.Context, q ReportQuery) ([]core.ExportRow, error) {
	return s.repo.Queries().ExportRows(ctx, q)
}

// Dashboard computes the four aggregates concurrently and caches the result
// until the user's next ledger mutation.
func (s *ReportService) Dashboard(ctx context.Context, q ReportQuery) (core.Dashboard, error) {
	q = withDefaultKind(q)
	key := dashboardKey(q)
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
	}

	d := core.Dashboard{From: q.From, To: q.To, Kind: q.Kind}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Breakdown, err = s.CategoryBreakdown(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		d.Cashflow, err = s.Cashflow(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		d.Trend, err = s.Trend(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		d.Top, err = s.TopSpending(gctx, q, DefaultTopN)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, fmt.Errorf("build dashboard: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(key, d)
	}
	logFor(ctx, applog.ComponentReport).DebugContext(ctx, "Dashboard built",
		applog.FieldUserID, q.UserID,
		"from", q.From.String(),
		"to", q.To.String(),
		"cached", s.cache != nil)
	return d, nil
}

// InvalidateUser drops every cached dashboard of userID.
func (s *ReportService) InvalidateUser(userID string) {
	if s.cache != nil {
		s.cache.DeletePrefix(userID + "|")
	}
}

func dashboardKey(q ReportQuery) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", q.UserID, q.From, q.To, q.WalletID, q.Kind)
}

func withDefaultKind(q ReportQuery) ReportQuery {
	if q.Kind == "" {
		q.Kind = core.KindExpense
	}
	return q
}
