// Package digest emails the students whose attendance fell below the threshold.
package digest

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/export"
)

const (
	defaultDays = 7
	runTimeout  = 5 * time.Minute
)

// TenantLister finds the tenants holding recent attendance.
type TenantLister interface {
	ActiveTenants(ctx context.Context, since core.Date) ([]string, error)
}

type Service struct {
	tenants    TenantLister
	agg        attendance.Aggregator
	mailSvc    core.EmailService
	recipients []mail.Address
	days       int
	logger     core.Logger
}

func NewService(
	tenants TenantLister,
	agg attendance.Aggregator,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) (*Service, error) {
	recipients := make([]mail.Address, 0, len(conf.Digest.Recipients))
	for _, r := range conf.Digest.Recipients {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing digest recipient %q", r)
		}
		recipients = append(recipients, *addr)
	}

	days := conf.Digest.Days
	if days <= 0 {
		days = defaultDays
	}
	return &Service{
		tenants:    tenants,
		agg:        agg,
		mailSvc:    mailSvc,
		recipients: recipients,
		days:       days,
		logger:     logger,
	}, nil
}

// Range is the window the digest covers: the last days days, today included.
func (svc *Service) Range() core.DateRange {
	today := svc.agg.Today()
	return core.DateRange{Start: today.AddDays(1 - svc.days), End: today}
}

// Run emails one digest per tenant with flagged students and returns how many were delivered.
// Emails are sent synchronously. A failing tenant does not stop the others.
func (svc *Service) Run(ctx context.Context) (int, error) {
	if len(svc.recipients) == 0 {
		svc.logger.Warn("attendance digest skipped: no recipients configured")
		return 0, nil
	}

	rng := svc.Range()
	tenants, err := svc.tenants.ActiveTenants(ctx, rng.Start)
	if err != nil {
		return 0, errors.Wrap(err, "listing active tenants")
	}

	var sent, failed int
	for _, tenantID := range tenants {
		msg, err := svc.message(ctx, tenantID, rng)
		if err != nil {
			failed++
			svc.logger.Error(fmt.Sprintf("attendance digest of tenant %s: %v", tenantID, err), err)
			continue
		}
		if msg == nil {
			continue
		}
		if err = svc.mailSvc.Send(msg); err != nil {
			failed++
			svc.logger.Error(fmt.Sprintf("sending attendance digest of tenant %s: %v", tenantID, err), err)
			continue
		}
		sent++
	}

	svc.logger.Info(fmt.Sprintf("attendance digest: %d sent, %d failed, %d tenants", sent, failed, len(tenants)))
	if failed > 0 {
		return sent, errors.Errorf("attendance digest failed for %d of %d tenants", failed, len(tenants))
	}
	return sent, nil
}

// message builds the digest of a tenant, nil when no student is flagged.
func (svc *Service) message(ctx context.Context, tenantID string, rng core.DateRange) (*core.EmailMessage, error) {
	stats, err := svc.agg.StudentStats(ctx, tenantID, rng, "")
	if err != nil {
		return nil, errors.Wrap(err, "computing student stats")
	}

	flagged := make([]attendance.StudentStat, 0, len(stats))
	for _, st := range stats {
		if st.BelowThreshold {
			flagged = append(flagged, st)
		}
	}
	if len(flagged) == 0 {
		return nil, nil
	}

	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "%d students attended less than %d%% of school days between %s and %s.\n\n",
		len(flagged), svc.agg.Threshold(), rng.Start, rng.End)
	for _, st := range flagged {
		_, _ = fmt.Fprintf(body, "- %s (%s): %d%%, absent %d of %d days\n",
			st.StudentName, st.StudentCode, st.AttendanceRate, st.AbsentDays, st.TotalDays)
	}

	msg := &core.EmailMessage{
		To:      svc.recipients,
		Subject: fmt.Sprintf("Low attendance: %d students below %d%%", len(flagged), svc.agg.Threshold()),
		BodyStr: body.String(),
	}

	csv := new(bytes.Buffer)
	if err = export.WriteCSV(csv, attendance.StudentStatsTable(flagged)); err != nil {
		return nil, errors.Wrap(err, "exporting flagged students")
	}
	if err = msg.Attach(csv, export.Filename("students", rng, export.FormatCSV), "text/csv"); err != nil {
		return nil, errors.Wrap(err, "attaching flagged students")
	}
	return msg, nil
}

// Schedule runs svc on the cron spec until the returned scheduler is stopped.
// Overlapping runs are skipped.
func Schedule(spec string, svc *Service, logger core.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := svc.Run(ctx); err != nil {
			logger.Error(fmt.Sprintf("scheduled attendance digest: %v", err), err)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scheduling attendance digest %q", spec)
	}
	c.Start()
	return c, nil
}
