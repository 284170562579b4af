package seed

import (
	"fmt"

	"github.com/nocson47/beaconofknowledge/internal/middleware"
	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers         int
	NumThreads       int
	RepliesPerThread int
	NumReports       int
	ShouldClean      bool
	DryRun           bool
	SkipBcrypt       bool
	MaxDays          int
	RandomSeed       int64
}

// Summary reports how many rows a run created.
type Summary struct {
	Users   int
	Threads int
	Replies int
	Votes   int
	Reports int
}

// Seed populates the database with demo users, threads, replies, votes and open reports.
func Seed(db *gorm.DB, opts Options) (Summary, error) {
	var sum Summary
	if opts.NumUsers < 2 {
		opts.NumUsers = 2
	}
	f := NewFactory(db, opts)
	middleware.Logger.Info("Starting database seeding", "users", opts.NumUsers, "threads", opts.NumThreads, "dry_run", opts.DryRun)

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			middleware.Logger.Warn("Could not clear existing data, continuing", "error", err)
		}
	}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return sum, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	threads := make([]*models.Thread, 0, opts.NumThreads)
	for i := 0; i < opts.NumThreads; i++ {
		author := users[f.rng.Intn(len(users))]
		t, err := f.CreateThread(author)
		if err != nil {
			return sum, fmt.Errorf("failed to create thread: %w", err)
		}
		threads = append(threads, t)
		sum.Threads++

		for j := 0; j < opts.RepliesPerThread; j++ {
			if _, err := f.CreateReply(t, users[f.rng.Intn(len(users))]); err != nil {
				return sum, fmt.Errorf("failed to create reply: %w", err)
			}
			sum.Replies++
		}

		// each user votes at most once per thread, so walk a shuffled prefix
		voters := f.rng.Perm(len(users))[:f.rng.Intn(len(users))+1]
		for _, idx := range voters {
			value := models.VoteUp
			if f.rng.Intn(4) == 0 {
				value = models.VoteDown
			}
			if err := f.CreateVote(t, users[idx], value); err != nil {
				return sum, fmt.Errorf("failed to create vote: %w", err)
			}
			sum.Votes++
		}
	}

	for i := 0; i < opts.NumReports && len(threads) > 0; i++ {
		t := threads[f.rng.Intn(len(threads))]
		reporter := users[f.rng.Intn(len(users))]
		if reporter.ID == t.UserID {
			continue
		}
		report := &models.Report{
			Kind:          models.ReportKindThread,
			TargetID:      t.ID,
			TargetOwnerID: t.UserID,
			ReporterID:    reporter.ID,
			Reason:        gofakeit.Sentence(8),
			Status:        models.ReportStatusOpen,
		}
		if !opts.DryRun {
			if err := db.Create(report).Error; err != nil {
				return sum, fmt.Errorf("failed to create report: %w", err)
			}
		}
		sum.Reports++
	}

	middleware.Logger.Info("Database seeding completed",
		"users", sum.Users, "threads", sum.Threads, "replies", sum.Replies, "votes", sum.Votes, "reports", sum.Reports)
	return sum, nil
}

func clearData(db *gorm.DB) error {
	tables := []any{
		&models.Report{},
		&models.Vote{},
		&models.Reply{},
		&models.Thread{},
		&models.PasswordReset{},
		&models.AuditLog{},
	}
	for _, t := range tables {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
			return err
		}
	}
	// keep the bootstrap root account
	return db.Where("id <> ?", 1).Delete(&models.User{}).Error
}
