package attendance

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
)

// Aggregator derives read-only statistics from stored events. It keeps no state between calls.
type Aggregator interface {
	ClassStats(ctx context.Context, tenantID string, rng core.DateRange, classID string) ([]ClassStat, error)
	StudentStats(ctx context.Context, tenantID string, rng core.DateRange, classID string) ([]StudentStat, error)
	DailySeries(ctx context.Context, tenantID string, rng core.DateRange, classID string) ([]DailyStat, error)
	TodaySummary(ctx context.Context, tenantID, classID string) (TodaySummary, error)
	Threshold() int
	// Today is the current date of the school.
	Today() core.Date
}

type aggregator struct {
	repo   Repository
	roster Roster
	opts   Options
}

var _ Aggregator = (*aggregator)(nil)

func NewAggregator(repo Repository, roster Roster, opts Options) Aggregator {
	return &aggregator{repo: repo, roster: roster, opts: opts.withDefaults()}
}

func (a *aggregator) Threshold() int { return a.opts.Threshold.Int }

func (a *aggregator) Today() core.Date { return core.DateOf(a.opts.now()) }

func (a *aggregator) events(ctx context.Context, tenantID string, rng core.DateRange, classID string) ([]Event, error) {
	if err := checkTenant(tenantID); err != nil {
		return nil, err
	}
	if err := rng.Validate(a.opts.MaxReportDays); err != nil {
		return nil, err
	}
	events, err := a.repo.QueryEvents(ctx, QueryFilter{TenantID: tenantID, Range: rng, ClassID: classID})
	return events, errors.Wrapf(err, "querying attendance of %s", rng)
}

func (a *aggregator) class(ctx context.Context, tenantID, classID string) (Class, error) {
	class, err := a.roster.GetClass(ctx, tenantID, classID)
	if err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return Class{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Class{}, errors.Wrapf(err, "getting class %s", classID)
	}
	return class, nil
}

func (a *aggregator) ClassStats(ctx context.Context, tenantID string, rng core.DateRange, classID string) ([]ClassStat, error) {
	var seed []Class
	if classID != "" {
		if err := checkTenant(tenantID); err != nil {
			return nil, err
		}
		class, err := a.class(ctx, tenantID, classID)
		if err != nil {
			return nil, err
		}
		seed = append(seed, class)
	}
	events, err := a.events(ctx, tenantID, rng, classID)
	if err != nil {
		return nil, err
	}
	return ComputeClassStats(events, seed...), nil
}

func (a *aggregator) StudentStats(ctx context.Context, tenantID string, rng core.DateRange, classID string) ([]StudentStat, error) {
	events, err := a.events(ctx, tenantID, rng, classID)
	if err != nil {
		return nil, err
	}
	return ComputeStudentStats(events, a.opts.Threshold.Int), nil
}

func (a *aggregator) DailySeries(ctx context.Context, tenantID string, rng core.DateRange, classID string) ([]DailyStat, error) {
	events, err := a.events(ctx, tenantID, rng, classID)
	if err != nil {
		return nil, err
	}
	return ComputeDailySeries(rng, events), nil
}

func (a *aggregator) TodaySummary(ctx context.Context, tenantID, classID string) (TodaySummary, error) {
	if err := checkTenant(tenantID); err != nil {
		return TodaySummary{}, err
	}
	today := a.Today()

	roster, err := a.roster.ActiveStudents(ctx, tenantID, classID, today)
	if err != nil {
		return TodaySummary{}, errors.Wrapf(err, "resolving roster of class %q on %s", classID, today)
	}
	events, err := a.repo.QueryEvents(ctx, QueryFilter{TenantID: tenantID, Date: today, ClassID: classID})
	if err != nil {
		return TodaySummary{}, errors.Wrapf(err, "querying attendance of %s", today)
	}
	return ComputeTodaySummary(today, events, roster, a.opts.TodayRateDenominator), nil
}
