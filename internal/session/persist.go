package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// CredentialStore persists a session across processes. Load returns nil, nil when empty.
type CredentialStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context) error
}

// ChangeNotifier is implemented by credential stores that can signal external changes.
// The returned channel is closed when ctx ends.
type ChangeNotifier interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// FileCredentialStore keeps the session in a YAML file readable only by its owner.
type FileCredentialStore struct {
	path string
}

// NewFileCredentialStore stores the session at path.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: filepath.Clean(path)}
}

func (f *FileCredentialStore) Load(_ context.Context) (*Session, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var sess Session
	if err := yaml.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if sess.Token == "" {
		return nil, nil
	}
	return &sess, nil
}

// Save writes atomically through a temp file and rename.
func (f *FileCredentialStore) Save(_ context.Context, sess *Session) error {
	raw, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileCredentialStore) Delete(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Changes watches the containing directory, since saves replace the file by rename.
func (f *FileCredentialStore) Changes(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					notify(out)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

// RedisCredentialStore keeps the session under one key and announces changes on a channel.
type RedisCredentialStore struct {
	rdb     *redis.Client
	key     string
	channel string
}

// NewRedisCredentialStore stores the session at key; changes are published on key + ":changed".
func NewRedisCredentialStore(rdb *redis.Client, key string) *RedisCredentialStore {
	return &RedisCredentialStore{rdb: rdb, key: key, channel: key + ":changed"}
}

func (r *RedisCredentialStore) Load(ctx context.Context) (*Session, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode stored session: %w", err)
	}
	return &sess, nil
}

// Save stores the session until its expiry.
func (r *RedisCredentialStore) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return r.Delete(ctx)
		}
	}
	if err := r.rdb.Set(ctx, r.key, raw, ttl).Err(); err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, "saved").Err()
}

func (r *RedisCredentialStore) Delete(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, "deleted").Err()
}

// Changes subscribes to the change channel. The subscription is confirmed before returning.
func (r *RedisCredentialStore) Changes(ctx context.Context) (<-chan struct{}, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				notify(out)
			}
		}
	}()
	return out, nil
}

func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
