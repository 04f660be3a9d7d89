package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	"github.com/frahmantamala/spm-sp2d/internal/sp2d"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
)

// VendorLimit caps the per-vendor rollup.
const VendorLimit = 10

type RepositoryAPI interface {
	StatusTotals(ctx context.Context, scope Scope) ([]StatusTotal, error)
	Timeline(ctx context.Context, scope Scope, from time.Time) (Timeline, error)
	OPDTotals(ctx context.Context, scope Scope) ([]OPDTotal, error)
	VendorTotals(ctx context.Context, scope Scope, limit int) ([]VendorTotal, error)
	SP2DStatusCounts(ctx context.Context, scope Scope) ([]StatusCount, error)
}

type Service struct {
	repo   RepositoryAPI
	cache  *Cache
	policy *auth.DocumentPolicy
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, cache *Cache, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		policy: &auth.DocumentPolicy{},
		now:    now,
		logger: logger,
	}
}

var _ spm.CacheInvalidator = (*Service)(nil)

// Bump invalidates every cached summary. Failures are logged; stale entries age out on TTL.
func (s *Service) Bump(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump failed", "error", err)
	}
}

// Summary returns the dashboard for what user may see. Identical concurrent builds share
// one result.
func (s *Service) Summary(ctx context.Context, user *auth.User) (*Summary, error) {
	ownerID, opdID := s.policy.ScopeFilter(user)
	scope := Scope{OwnerID: ownerID, OPDID: opdID}

	key, err := s.cache.BuildKey(ctx, "dashboard", "summary", scope.token())
	if err != nil {
		s.logger.Warn("dashboard cache unavailable, building directly", "error", err)
		return s.build(ctx, scope)
	}

	// The build is shared, so it must outlive the caller that started it.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		var out Summary
		err := s.cache.FetchJSON(buildCtx, key, &out, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx, scope)
		})
		return &out, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if _, ok := internal.IsAppError(res.Err); ok {
				return nil, res.Err
			}
			s.logger.Error("dashboard summary failed", "error", res.Err, "scope", scope.token())
			return nil, internal.NewInternalError("failed to build dashboard", res.Err)
		}
		return res.Val.(*Summary), nil
	}
}

func (s *Service) build(ctx context.Context, scope Scope) (*Summary, error) {
	now := s.now().UTC()
	summary := &Summary{GeneratedAt: now}

	var (
		statuses []StatusTotal
		timeline Timeline
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		statuses, err = s.repo.StatusTotals(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		timeline, err = s.repo.Timeline(gctx, scope, trendStart(now))
		return err
	})
	g.Go(func() error {
		var err error
		summary.ByOPD, err = s.repo.OPDTotals(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		summary.ByVendor, err = s.repo.VendorTotals(gctx, scope, VendorLimit)
		return err
	})
	g.Go(func() error {
		counts, err := s.repo.SP2DStatusCounts(gctx, scope)
		if err != nil {
			return err
		}
		summary.SP2D = sp2dCounts(counts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, internal.NewPersistenceError("build dashboard", err)
	}

	summary.Statuses = withAllStatuses(visibleStatuses(scope), statuses)
	summary.Trend = BuildTrend(now, timeline)
	sortVendors(summary.ByVendor)
	if summary.ByOPD == nil {
		summary.ByOPD = []OPDTotal{}
	}
	if summary.ByVendor == nil {
		summary.ByVendor = []VendorTotal{}
	}

	s.logger.Debug("dashboard summary built", "scope", scope.token(), "generated_at", now)
	return summary, nil
}

func visibleStatuses(scope Scope) []string {
	out := make([]string, 0, len(spm.AllStatuses))
	for _, st := range spm.AllStatuses {
		if scope.NonDraft() && st == spm.StatusDraft {
			continue
		}
		out = append(out, string(st))
	}
	return out
}

func sp2dCounts(counts []StatusCount) []StatusCount {
	byStatus := make(map[string]int64, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	out := make([]StatusCount, 0, len(sp2d.AllStatuses))
	for _, st := range sp2d.AllStatuses {
		out = append(out, StatusCount{Status: string(st), Count: byStatus[string(st)]})
	}
	return out
}
