// Command seed fills the database with fake forum activity for local development.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/bootstrap"
	"github.com/nocson47/beaconofknowledge/internal/config"
	"github.com/nocson47/beaconofknowledge/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numThreads := flag.Int("threads", 200, "Number of threads to create")
	replies := flag.Int("replies", 4, "Maximum replies per thread")
	reports := flag.Int("reports", 10, "Number of moderation reports to file")
	maxDays := flag.Int("days", 30, "Spread timestamps over this many past days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build records without writing them")
	fast := flag.Bool("fast", false, "Store a precomputed password hash instead of hashing per user")
	randomSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible runs")
	flag.Parse()

	log.Printf("Seeding: %d users, %d threads, clean=%v dry-run=%v", *numUsers, *numThreads, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, rdb, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	summary, err := seed.Seed(db, seed.Options{
		NumUsers:         *numUsers,
		NumThreads:       *numThreads,
		RepliesPerThread: *replies,
		NumReports:       *reports,
		ShouldClean:      *shouldClean,
		DryRun:           *dryRun,
		SkipBcrypt:       *fast,
		MaxDays:          *maxDays,
		RandomSeed:       *randomSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d threads, %d replies, %d votes, %d reports",
		summary.Users, summary.Threads, summary.Replies, summary.Votes, summary.Reports)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
