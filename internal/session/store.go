package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/models"
)

var (
	// ErrSuperseded is returned when a newer request already changed the session.
	ErrSuperseded = errors.New("session: superseded by a newer request")
	// ErrNoSession is returned by Refresh when nobody is logged in.
	ErrNoSession = models.NewUnauthenticatedError("No active session")
)

// AuthResult is what an identity provider returns for a successful login.
// User may be nil when the provider only hands back a token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *Identity
}

// IdentityProvider is the authoritative source of identity.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (AuthResult, error)
	WhoAmI(ctx context.Context, token string) (Identity, error)
}

// Option configures a Store.
type Option func(*Store)

// WithCredentialStore persists the session so other processes sharing the store observe it.
func WithCredentialStore(cs CredentialStore) Option {
	return func(s *Store) { s.creds = cs }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now, for claim expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store holds the current session and fans out change events.
type Store struct {
	provider IdentityProvider
	creds    CredentialStore
	logger   *slog.Logger
	now      func() time.Time

	seq atomic.Uint64

	mu      sync.Mutex
	current *Session
	applied uint64
	subs    map[uint64]*subscriber
	nextSub uint64
}

// NewStore returns an empty store backed by provider.
func NewStore(provider IdentityProvider, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
		subs:     make(map[uint64]*subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a copy of the cached session, or nil. It never calls the provider.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// Establish exchanges credentials for a session and emits LoggedIn.
func (s *Store) Establish(ctx context.Context, username, password string) (*Session, error) {
	seq := s.seq.Add(1)

	res, err := s.provider.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, fmt.Errorf("session: provider returned an empty token")
	}

	sess := &Session{Token: res.Token, ExpiresAt: res.ExpiresAt, Source: SourceAuthoritative}
	switch {
	case res.User != nil:
		sess.Identity = *res.User
	default:
		ident, whoErr := s.provider.WhoAmI(ctx, res.Token)
		if whoErr == nil {
			sess.Identity = ident
			break
		}
		fallback, ok := s.fromClaims(res.Token, Identity{})
		if !ok {
			return nil, whoErr
		}
		sess.Identity = fallback.Identity
		sess.Source = SourceTokenClaims
		if sess.ExpiresAt.IsZero() {
			sess.ExpiresAt = fallback.ExpiresAt
		}
	}
	if sess.ExpiresAt.IsZero() {
		if c, err := DecodeClaims(res.Token); err == nil {
			sess.ExpiresAt = c.ExpiresAt
		}
	}

	if err := s.apply(seq, sess, LoggedIn); err != nil {
		return nil, err
	}
	s.persist(ctx, sess)
	return sess.clone(), nil
}

// Refresh re-reads the identity from the provider. When the provider fails for any reason
// other than rejecting the token, the identity decoded from the token's own claims is used
// instead and the session is marked degraded. A rejected token logs the session out.
func (s *Store) Refresh(ctx context.Context) (*Session, error) {
	seq := s.seq.Add(1)

	cur := s.Current()
	if cur == nil {
		return nil, ErrNoSession
	}

	ident, err := s.provider.WhoAmI(ctx, cur.Token)
	switch {
	case err == nil:
		next := &Session{Token: cur.Token, Identity: ident, ExpiresAt: cur.ExpiresAt, Source: SourceAuthoritative}
		if err := s.apply(seq, next, Refreshed); err != nil {
			return nil, err
		}
		s.persist(ctx, next)
		return next.clone(), nil

	case errors.Is(err, models.ErrUnauthenticated):
		if applyErr := s.apply(seq, nil, LoggedOut); applyErr != nil {
			return nil, applyErr
		}
		s.forget(ctx)
		return nil, err

	case errors.Is(err, context.Canceled):
		return nil, err
	}

	next, ok := s.fromClaims(cur.Token, cur.Identity)
	if !ok {
		return nil, err
	}
	s.logger.Warn("identity refresh failed, using token claims",
		slog.String("error", err.Error()),
		slog.Uint64("user_id", uint64(next.Identity.ID)),
	)
	if cur.ExpiresAt.After(next.ExpiresAt) || next.ExpiresAt.IsZero() {
		next.ExpiresAt = cur.ExpiresAt
	}
	if err := s.apply(seq, next, Refreshed); err != nil {
		return nil, err
	}
	return next.clone(), nil
}

// Clear ends the session, deletes persisted credentials and emits LoggedOut.
func (s *Store) Clear(ctx context.Context) {
	seq := s.seq.Add(1)
	_ = s.apply(seq, nil, LoggedOut)
	s.forget(ctx)
}

// Restore adopts a persisted session, if any, and emits LoggedIn.
func (s *Store) Restore(ctx context.Context) (*Session, error) {
	if s.creds == nil {
		return nil, nil
	}
	seq := s.seq.Add(1)
	stored, err := s.creds.Load(ctx)
	if err != nil || stored == nil {
		return nil, err
	}
	if !stored.ExpiresAt.IsZero() && !s.now().Before(stored.ExpiresAt) {
		s.forget(ctx)
		return nil, nil
	}
	if err := s.apply(seq, stored, LoggedIn); err != nil {
		return nil, err
	}
	return stored.clone(), nil
}

// Watch adopts changes other processes make to the shared credential store until ctx ends.
// It returns an error when the credential store cannot report changes.
func (s *Store) Watch(ctx context.Context) error {
	notifier, ok := s.creds.(ChangeNotifier)
	if !ok {
		return errors.New("session: credential store does not report changes")
	}
	changes, err := notifier.Changes(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range changes {
			s.sync(ctx)
		}
	}()
	return nil
}

func (s *Store) sync(ctx context.Context) {
	seq := s.seq.Add(1)
	stored, err := s.creds.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load shared session", slog.String("error", err.Error()))
		return
	}

	cur := s.Current()
	switch {
	case stored == nil && cur == nil:
		return
	case stored == nil:
		_ = s.apply(seq, nil, LoggedOut)
	case cur == nil || cur.Token != stored.Token:
		_ = s.apply(seq, stored, LoggedIn)
	case cur.Identity != stored.Identity:
		_ = s.apply(seq, stored, Refreshed)
	}
}

func (s *Store) fromClaims(token string, prev Identity) (*Session, bool) {
	c, err := DecodeClaims(token)
	if err != nil || c.Expired(s.now()) {
		return nil, false
	}
	ident, ok := identityFromClaims(c, prev)
	if !ok {
		return nil, false
	}
	return &Session{Token: token, Identity: ident, ExpiresAt: c.ExpiresAt, Source: SourceTokenClaims}, true
}

// apply installs next if seq is not older than the last applied change and broadcasts the event.
func (s *Store) apply(seq uint64, next *Session, kind EventKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.applied {
		return ErrSuperseded
	}
	s.applied = seq
	s.current = next.clone()

	for _, sub := range s.subs {
		sub.push(Event{Kind: kind, Session: next.clone(), Seq: seq})
	}
	return nil
}

func (s *Store) persist(ctx context.Context, sess *Session) {
	if s.creds == nil {
		return
	}
	if err := s.creds.Save(ctx, sess); err != nil {
		s.logger.Warn("failed to persist session", slog.String("error", err.Error()))
	}
}

func (s *Store) forget(ctx context.Context) {
	if s.creds == nil {
		return
	}
	if err := s.creds.Delete(ctx); err != nil {
		s.logger.Warn("failed to delete persisted session", slog.String("error", err.Error()))
	}
}

// Subscribe returns a channel receiving every subsequent event in order, and a cancel func
// that closes it. Slow readers never block the store.
func (s *Store) Subscribe() (<-chan Event, func()) {
	sub := newSubscriber()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	go sub.pump()

	return sub.out, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.stop()
	}
}

// Close detaches every subscriber.
func (s *Store) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[uint64]*subscriber)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

type subscriber struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	out    chan Event
	done   chan struct{}
	once   sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
}

func (sub *subscriber) push(ev Event) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()

	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscriber) pump() {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.signal:
				continue
			case <-sub.done:
				return
			}
		}
		ev := sub.queue[0]
		sub.queue[0] = Event{}
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- ev:
		case <-sub.done:
			return
		}
	}
}

func (sub *subscriber) stop() {
	sub.once.Do(func() { close(sub.done) })
}
