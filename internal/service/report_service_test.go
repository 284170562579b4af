package service

import (
	"context"
	"testing"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	svc       *ReportService
	reports   *reportRepoStub
	audit     *auditRepoStub
	publisher *publisherStub
}

// Users: 1 (A, thread owner), 2 (B), 3 (C), 4 (admin).
func newReportFixture() *reportFixture {
	users := newUserRepoStub(member(1), member(2), member(3), admin(4))
	threads := newThreadRepoStub(
		&models.Thread{ID: 1, UserID: 1, Title: "T", Body: "b"},
		&models.Thread{ID: 2, UserID: 1, Title: "gone", Body: "b", IsDeleted: true},
	)
	f := &reportFixture{reports: &reportRepoStub{}, audit: &auditRepoStub{}, publisher: &publisherStub{}}
	f.svc = NewReportService(f.reports, threads, users, NewAuditService(f.audit, nil, users), f.publisher)
	return f
}

func TestReportService_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture()

	report, err := f.svc.FileReport(ctx, FileReportInput{ReporterID: 3, Kind: "thread", TargetID: 1, Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusOpen, report.Status)
	assert.Equal(t, uint(1), report.TargetOwnerID)

	listed, err := f.svc.ListReports(ctx, ListReportsInput{RequesterID: 4, Kind: "thread"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "spam", listed[0].Reason)

	_, err = f.svc.ListReports(ctx, ListReportsInput{RequesterID: 2, Kind: "thread"})
	assertAppCode(t, err, models.CodeForbidden)
	_, err = f.svc.ListReports(ctx, ListReportsInput{Kind: "thread"})
	assertAppCode(t, err, models.CodeUnauthenticated)

	assert.Equal(t, []string{"report_created"}, f.audit.actions())
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, notifications.EventReportCreated, f.publisher.events[0].Type)
}

func TestReportService_FileReportRejections(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		in   FileReportInput
		code string
	}{
		{"self report on own thread", FileReportInput{ReporterID: 1, Kind: "thread", TargetID: 1, Reason: "x"}, models.CodeInvalidOperation},
		{"self report on own profile", FileReportInput{ReporterID: 2, Kind: "user", TargetID: 2, Reason: "x"}, models.CodeInvalidOperation},
		{"unknown kind", FileReportInput{ReporterID: 2, Kind: "reply", TargetID: 1, Reason: "x"}, models.CodeValidation},
		{"empty reason", FileReportInput{ReporterID: 2, Kind: "thread", TargetID: 1, Reason: "  "}, models.CodeValidation},
		{"missing thread", FileReportInput{ReporterID: 2, Kind: "thread", TargetID: 99, Reason: "x"}, models.CodeNotFound},
		{"deleted thread", FileReportInput{ReporterID: 2, Kind: "thread", TargetID: 2, Reason: "x"}, models.CodeNotFound},
		{"missing user", FileReportInput{ReporterID: 2, Kind: "user", TargetID: 99, Reason: "x"}, models.CodeNotFound},
		{"anonymous", FileReportInput{Kind: "thread", TargetID: 1, Reason: "x"}, models.CodeUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReportFixture()
			_, err := f.svc.FileReport(ctx, tt.in)
			assertAppCode(t, err, tt.code)
			assert.Empty(t, f.reports.reports)
		})
	}
}

func TestReportService_RateLimit(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	for i := 0; i < reportBurst; i++ {
		_, err := f.svc.FileReport(ctx, FileReportInput{ReporterID: 2, Kind: "user", TargetID: 3, Reason: "abuse"})
		require.NoError(t, err)
	}
	_, err := f.svc.FileReport(ctx, FileReportInput{ReporterID: 2, Kind: "user", TargetID: 3, Reason: "abuse"})
	assertAppCode(t, err, models.CodeRateLimited)

	_, err = f.svc.FileReport(ctx, FileReportInput{ReporterID: 3, Kind: "user", TargetID: 2, Reason: "abuse"})
	assert.NoError(t, err, "limits are per reporter")

	now = now.Add(reportInterval)
	_, err = f.svc.FileReport(ctx, FileReportInput{ReporterID: 2, Kind: "user", TargetID: 3, Reason: "abuse"})
	assert.NoError(t, err)
}

func TestReportService_IdleLimitersAreForgotten(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	for i := 0; i < reportBurst; i++ {
		_, err := f.svc.FileReport(ctx, FileReportInput{ReporterID: 2, Kind: "user", TargetID: 3, Reason: "abuse"})
		require.NoError(t, err)
	}
	_, err := f.svc.FileReport(ctx, FileReportInput{ReporterID: 3, Kind: "user", TargetID: 2, Reason: "abuse"})
	require.NoError(t, err)
	assert.Len(t, f.svc.limiters, 2)

	// reporter 3 refills first; reporter 2 still owes tokens at the first sweep
	now = now.Add(reportSweepInterval - reportInterval)
	f.svc.mu.Lock()
	f.svc.sweepLimiters(now)
	f.svc.mu.Unlock()
	assert.Contains(t, f.svc.limiters, uint(2))
	assert.NotContains(t, f.svc.limiters, uint(3))

	now = now.Add(reportSweepInterval)
	_, err = f.svc.FileReport(ctx, FileReportInput{ReporterID: 3, Kind: "user", TargetID: 2, Reason: "abuse"})
	require.NoError(t, err)
	assert.NotContains(t, f.svc.limiters, uint(2), "sweeps run as reports come in")
	assert.Len(t, f.svc.limiters, 1)
}

func TestReportService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture()
	report, err := f.svc.FileReport(ctx, FileReportInput{ReporterID: 2, Kind: "thread", TargetID: 1, Reason: "spam"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, 2, report.ID, "resolved")
	assertAppCode(t, err, models.CodeForbidden)

	_, err = f.svc.UpdateStatus(ctx, 4, report.ID, "archived")
	assertAppCode(t, err, models.CodeValidation)

	_, err = f.svc.UpdateStatus(ctx, 4, report.ID, "open")
	assertAppCode(t, err, models.CodeInvalidOperation)

	resolved, err := f.svc.UpdateStatus(ctx, 4, report.ID, "resolved")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, uint(4), *resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = f.svc.UpdateStatus(ctx, 4, report.ID, "dismissed")
	assertAppCode(t, err, models.CodeInvalidOperation)

	reopened, err := f.svc.UpdateStatus(ctx, 4, report.ID, "open")
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedBy)

	n, err := f.svc.OpenCount(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.UpdateStatus(ctx, 4, 999, "resolved")
	assertAppCode(t, err, models.CodeNotFound)

	assert.Equal(t, []string{"report_created", "report_update", "report_update"}, f.audit.actions())
	assert.Len(t, f.publisher.events, 3)
}
