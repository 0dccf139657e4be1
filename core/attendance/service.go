package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
)

var (
	NowFunc = time.Now // mockable

	ErrClassNotFound = errors.New("class not found")
	errTenantMissing = core.NewValidationError(errors.New("tenant is required"))
)

const (
	DefaultThreshold     = 75
	DefaultMaxReportDays = 366

	RateOverRecorded = "recorded"
	RateOverRoster   = "roster"
)

type (
	// Repository is the attendance event store. Failures are reported as *core.StorageError.
	Repository interface {
		// UpsertEvents writes events in one atomic batch. An event whose key already exists
		// replaces the stored mutable values and keeps the stored ID and CreatedAt.
		// Replacements that change a value are recorded as Amendments in the same batch.
		UpsertEvents(ctx context.Context, events []Event) ([]Event, error)
		QueryEvents(ctx context.Context, filter QueryFilter) ([]Event, error)
		GetEvent(ctx context.Context, tenantID, id string) (Event, error)
		QueryAmendments(ctx context.Context, tenantID, eventID string) ([]Amendment, error)
		// ActiveTenants lists the tenants holding events dated on or after since.
		ActiveTenants(ctx context.Context, since core.Date) ([]string, error)
	}

	// Roster is the enrollment collaborator.
	Roster interface {
		// ActiveStudents lists the students actively enrolled in the class on the date,
		// ordered by name. An empty classID lists every active student of the tenant.
		ActiveStudents(ctx context.Context, tenantID, classID string, on core.Date) ([]Student, error)
		GetClass(ctx context.Context, tenantID, classID string) (Class, error)
	}
)

type Options struct {
	Threshold            null.Int // unset means DefaultThreshold; 0 flags nobody
	Location             *time.Location
	MaxReportDays        int
	TodayRateDenominator string
}

// NewOptions reads the attendance options from the configuration.
func NewOptions(conf *core.Config) Options {
	return Options{
		Threshold:            null.IntFrom(conf.Attendance.Threshold),
		Location:             conf.Attendance.Location(),
		MaxReportDays:        conf.Attendance.MaxReportDays,
		TodayRateDenominator: conf.Attendance.TodayRateDenominator,
	}
}

func (opts Options) withDefaults() Options {
	if !opts.Threshold.Valid {
		opts.Threshold = null.IntFrom(DefaultThreshold)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxReportDays <= 0 {
		opts.MaxReportDays = DefaultMaxReportDays
	}
	if opts.TodayRateDenominator != RateOverRoster {
		opts.TodayRateDenominator = RateOverRecorded
	}
	return opts
}

// now returns the current wall clock time of the school.
func (opts Options) now() time.Time {
	return NowFunc().In(opts.Location)
}

func checkTenant(tenantID string) error {
	if core.CleanString(tenantID) == "" {
		return errTenantMissing
	}
	return nil
}
