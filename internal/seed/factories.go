// Package seed provides helpers to create demo data for development databases.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "password123"

var topicTags = []string{
	"general", "golang", "databases", "devops", "frontend", "security",
	"career", "homelab", "linux", "help", "showcase", "meta",
}

// Factory builds forum entities and persists them.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(seed)), nextID: 1000}
}

// BuildUser returns an unsaved member with a valid username.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	name := validation.NormalizeUsername(gofakeit.Username())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 26 {
		name = name[:26]
	}
	user := &models.User{
		Username: fmt.Sprintf("%s%d", name, gofakeit.Number(100, 99999)),
		Email:    strings.ToLower(gofakeit.Email()),
		Role:     models.RoleMember,
		Bio:      gofakeit.Sentence(10),
	}
	if f.opts.SkipBcrypt {
		user.Password = DefaultPassword
	} else {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		user.Password = string(hashed)
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// BuildThread returns an unsaved thread authored by user with a created_at spread over MaxDays.
func (f *Factory) BuildThread(user *models.User, overrides ...func(*models.Thread)) *models.Thread {
	tags := make([]string, 0, 3)
	for i := f.rng.Intn(3) + 1; i > 0; i-- {
		tags = append(tags, topicTags[f.rng.Intn(len(topicTags))])
	}
	normalized, _ := validation.NormalizeTags(tags)
	thread := &models.Thread{
		UserID:    user.ID,
		Title:     strings.TrimSuffix(gofakeit.Sentence(6), "."),
		Body:      gofakeit.Paragraph(2, 3, 12, "\n\n"),
		Tags:      normalized,
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(thread)
	}
	return thread
}

// BuildReply returns an unsaved reply to thread, created after it.
func (f *Factory) BuildReply(thread *models.Thread, user *models.User, overrides ...func(*models.Reply)) *models.Reply {
	created := thread.CreatedAt.Add(time.Duration(f.rng.Intn(72*60)) * time.Minute)
	if now := time.Now(); created.After(now) {
		created = now
	}
	reply := &models.Reply{
		ThreadID:  thread.ID,
		UserID:    user.ID,
		Body:      gofakeit.Paragraph(1, 2, 10, "\n"),
		CreatedAt: created,
	}
	for _, override := range overrides {
		override(reply)
	}
	return reply
}

func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	return user, f.save(user)
}

func (f *Factory) CreateThread(user *models.User, overrides ...func(*models.Thread)) (*models.Thread, error) {
	thread := f.BuildThread(user, overrides...)
	return thread, f.save(thread)
}

func (f *Factory) CreateReply(thread *models.Thread, user *models.User, overrides ...func(*models.Reply)) (*models.Reply, error) {
	reply := f.BuildReply(thread, user, overrides...)
	return reply, f.save(reply)
}

// CreateVote stores a vote and bumps the thread counter directly.
func (f *Factory) CreateVote(thread *models.Thread, user *models.User, value int) error {
	vote := &models.Vote{UserID: user.ID, TargetType: models.TargetThread, TargetID: thread.ID, Value: value}
	if f.opts.DryRun {
		f.nextID++
		vote.ID = f.nextID
		return nil
	}
	return f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(vote).Error; err != nil {
			return err
		}
		column := "upvotes"
		if value == models.VoteDown {
			column = "downvotes"
		}
		return tx.Model(&models.Thread{}).Where("id = ?", thread.ID).
			Update(column, gorm.Expr(column+" + 1")).Error
	})
}

func (f *Factory) save(entity any) error {
	if f.opts.DryRun {
		f.nextID++
		switch e := entity.(type) {
		case *models.User:
			e.ID = f.nextID
		case *models.Thread:
			e.ID = f.nextID
		case *models.Reply:
			e.ID = f.nextID
		}
		return nil
	}
	return f.db.Create(entity).Error
}

func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}
