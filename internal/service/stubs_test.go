package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/mailer"
	"github.com/nocson47/beaconofknowledge/internal/models"
	"github.com/nocson47/beaconofknowledge/internal/notifications"
	"github.com/nocson47/beaconofknowledge/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is an in-memory repository.UserRepository with overridable hooks.
type userRepoStub struct {
	mu    sync.Mutex
	users map[uint]*models.User

	createFn        func(context.Context, *models.User) error
	updateProfileFn func(context.Context, *models.User) error
}

func newUserRepoStub(users ...*models.User) *userRepoStub {
	s := &userRepoStub{users: make(map[uint]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userRepoStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	cp := *u
	return &cp, nil
}

func (s *userRepoStub) find(match func(*models.User) bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (s *userRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email }), nil
}
func (s *userRepoStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username }), nil
}
func (s *userRepoStub) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if u, _ := s.GetByEmail(ctx, login); u != nil {
		return u, nil
	}
	return s.GetByUsername(ctx, login)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn != nil {
		return s.createFn(ctx, user)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uint(len(s.users) + 1)
	cp := *user
	s.users[user.ID] = &cp
	return nil
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, user *models.User) error {
	if s.updateProfileFn != nil {
		return s.updateProfileFn(ctx, user)
	}
	return s.mutate(user.ID, func(u *models.User) {
		u.Bio, u.GithubURL, u.TwitterURL, u.WebsiteURL = user.Bio, user.GithubURL, user.TwitterURL, user.WebsiteURL
	})
}
func (s *userRepoStub) UpdateRole(_ context.Context, id uint, role models.Role) error {
	return s.mutate(id, func(u *models.User) { u.Role = role })
}
func (s *userRepoStub) SetPassword(_ context.Context, id uint, hash string) error {
	return s.mutate(id, func(u *models.User) { u.Password = hash })
}
func (s *userRepoStub) SetAvatar(_ context.Context, id uint, url string) error {
	return s.mutate(id, func(u *models.User) { u.Avatar = url })
}
func (s *userRepoStub) List(_ context.Context, _, _ int) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}
func (s *userRepoStub) mutate(id uint, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.NewNotFoundError("User", id)
	}
	fn(u)
	return nil
}

// threadRepoStub is a stub for repository.ThreadRepository.
type threadRepoStub struct {
	threads   map[uint]*models.Thread
	listFn    func(context.Context, repository.ThreadFilter) ([]*models.Thread, error)
	updated   []*models.Thread
	deleted   []uint
	createErr error
}

func newThreadRepoStub(threads ...*models.Thread) *threadRepoStub {
	s := &threadRepoStub{threads: make(map[uint]*models.Thread)}
	for _, t := range threads {
		s.threads[t.ID] = t
	}
	return s
}

func (s *threadRepoStub) Create(_ context.Context, thread *models.Thread) error {
	if s.createErr != nil {
		return s.createErr
	}
	thread.ID = uint(len(s.threads) + 1)
	s.threads[thread.ID] = thread
	return nil
}
func (s *threadRepoStub) GetByID(_ context.Context, id uint) (*models.Thread, error) {
	t, ok := s.threads[id]
	if !ok {
		return nil, models.NewNotFoundError("Thread", id)
	}
	cp := *t
	return &cp, nil
}
func (s *threadRepoStub) List(ctx context.Context, filter repository.ThreadFilter) ([]*models.Thread, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	out := make([]*models.Thread, 0, len(s.threads))
	for id := uint(len(s.threads)); id >= 1; id-- {
		if t, ok := s.threads[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
func (s *threadRepoStub) Update(_ context.Context, thread *models.Thread) error {
	s.updated = append(s.updated, thread)
	return nil
}
func (s *threadRepoStub) SoftDelete(_ context.Context, id uint) error {
	s.deleted = append(s.deleted, id)
	if t, ok := s.threads[id]; ok {
		t.IsDeleted = true
	}
	return nil
}

// replyRepoStub is a stub for repository.ReplyRepository.
type replyRepoStub struct {
	replies map[uint]*models.Reply
	created []*models.Reply
}

func newReplyRepoStub(replies ...*models.Reply) *replyRepoStub {
	s := &replyRepoStub{replies: make(map[uint]*models.Reply)}
	for _, r := range replies {
		s.replies[r.ID] = r
	}
	return s
}

func (s *replyRepoStub) Create(_ context.Context, reply *models.Reply) error {
	reply.ID = uint(100 + len(s.created))
	s.created = append(s.created, reply)
	return nil
}
func (s *replyRepoStub) GetByID(_ context.Context, id uint) (*models.Reply, error) {
	r, ok := s.replies[id]
	if !ok {
		return nil, models.NewNotFoundError("Reply", id)
	}
	cp := *r
	return &cp, nil
}
func (s *replyRepoStub) ListByThread(_ context.Context, threadID uint) ([]*models.Reply, error) {
	var out []*models.Reply
	for id := uint(1); id <= uint(len(s.replies)); id++ {
		if r, ok := s.replies[id]; ok && r.ThreadID == threadID {
			out = append(out, r)
		}
	}
	return out, nil
}
func (s *replyRepoStub) UpdateBody(_ context.Context, id uint, body string) error {
	if r, ok := s.replies[id]; ok {
		r.Body = body
		return nil
	}
	return models.NewNotFoundError("Reply", id)
}
func (s *replyRepoStub) SoftDelete(_ context.Context, id uint) error {
	if r, ok := s.replies[id]; ok {
		r.IsDeleted = true
		return nil
	}
	return models.NewNotFoundError("Reply", id)
}

// voteRepoStub is a stub for repository.VoteRepository.
type voteRepoStub struct {
	castFn  func(context.Context, uint, models.TargetType, uint, int) (repository.CastResult, error)
	tallyFn func(context.Context, models.TargetType, uint) (models.Tally, error)
	getFn   func(context.Context, uint, models.TargetType, uint) (*models.Vote, error)
}

func (s *voteRepoStub) Cast(ctx context.Context, userID uint, t models.TargetType, id uint, value int) (repository.CastResult, error) {
	return s.castFn(ctx, userID, t, id, value)
}
func (s *voteRepoStub) Tally(ctx context.Context, t models.TargetType, id uint) (models.Tally, error) {
	return s.tallyFn(ctx, t, id)
}
func (s *voteRepoStub) Get(ctx context.Context, userID uint, t models.TargetType, id uint) (*models.Vote, error) {
	return s.getFn(ctx, userID, t, id)
}
func (s *voteRepoStub) Recount(ctx context.Context, t models.TargetType, id uint) (models.Tally, error) {
	return s.tallyFn(ctx, t, id)
}

// reportRepoStub keeps reports in insertion order.
type reportRepoStub struct {
	reports    []*models.Report
	lastFilter repository.ReportFilter
}

func (s *reportRepoStub) Create(_ context.Context, r *models.Report) error {
	r.ID = uint(len(s.reports) + 1)
	cp := *r
	s.reports = append(s.reports, &cp)
	return nil
}
func (s *reportRepoStub) GetByID(_ context.Context, id uint) (*models.Report, error) {
	for _, r := range s.reports {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("Report", id)
}
func (s *reportRepoStub) List(_ context.Context, f repository.ReportFilter) ([]*models.Report, error) {
	s.lastFilter = f
	var out []*models.Report
	for i := len(s.reports) - 1; i >= 0; i-- {
		r := s.reports[i]
		if (f.Kind == "" || r.Kind == f.Kind) && (f.Status == "" || r.Status == f.Status) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (s *reportRepoStub) SetStatus(_ context.Context, id uint, status models.ReportStatus, by *uint, at *time.Time) error {
	for _, r := range s.reports {
		if r.ID == id {
			r.Status, r.ResolvedBy, r.ResolvedAt = status, by, at
			return nil
		}
	}
	return models.NewNotFoundError("Report", id)
}
func (s *reportRepoStub) CountOpen(_ context.Context) (int64, error) {
	var n int64
	for _, r := range s.reports {
		if r.Status == models.ReportStatusOpen {
			n++
		}
	}
	return n, nil
}

// auditRepoStub records appended entries.
type auditRepoStub struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
}

func (s *auditRepoStub) Append(_ context.Context, e *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}
func (s *auditRepoStub) List(_ context.Context, _ *uint, _, _ int) ([]*models.AuditLog, error) {
	return s.entries, nil
}
func (s *auditRepoStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

// resetRepoStub is an in-memory repository.PasswordResetRepository.
type resetRepoStub struct {
	resets []*models.PasswordReset
}

func (s *resetRepoStub) Create(_ context.Context, r *models.PasswordReset) error {
	r.ID = uint(len(s.resets) + 1)
	s.resets = append(s.resets, r)
	return nil
}
func (s *resetRepoStub) GetByTokenHash(_ context.Context, hash string) (*models.PasswordReset, error) {
	for _, r := range s.resets {
		if r.TokenHash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("PasswordReset", "token")
}
func (s *resetRepoStub) MarkUsed(_ context.Context, id uint) error {
	for _, r := range s.resets {
		if r.ID == id {
			if r.Used {
				return models.NewConflictError("token already used")
			}
			r.Used = true
			return nil
		}
	}
	return models.NewNotFoundError("PasswordReset", id)
}
func (s *resetRepoStub) DeleteOthers(_ context.Context, userID, keepID uint) error {
	kept := s.resets[:0]
	for _, r := range s.resets {
		if r.UserID != userID || r.ID == keepID {
			kept = append(kept, r)
		}
	}
	s.resets = kept
	return nil
}
func (s *resetRepoStub) PurgeExpired(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type mailerStub struct {
	sent []mailer.Message
	err  error
}

func (m *mailerStub) Send(_ context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type publisherStub struct {
	events []notifications.ModerationEvent
}

func (p *publisherStub) PublishModeration(_ context.Context, ev notifications.ModerationEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func member(id uint) *models.User {
	return &models.User{ID: id, Username: "member" + string(rune('a'+id)), Email: "m" + string(rune('a'+id)) + "@example.com", Role: models.RoleMember}
}

func admin(id uint) *models.User {
	u := member(id)
	u.Role = models.RoleAdmin
	return u
}

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}
