// Package store is the confidential key-value store. Every value is JSON
// encrypted under the caller's secret; a value that cannot be decrypted or
// parsed under that secret reads back exactly like a key that was never
// written.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"bienestar/crypto"
	"bienestar/logger"
)

// ErrNotFound is returned by backends for a missing key.
var ErrNotFound = errors.New("store: key not found")

// plainPrefix marks values that are stored without encryption.
const plainPrefix = "plain:"

// Backend persists opaque text values by key.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

type Store struct {
	backend Backend
	log     *logger.Logger
	timeout time.Duration

	txMu sync.Mutex
}

func New(backend Backend, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		backend: backend,
		log:     log.With("component", "store"),
		timeout: 5 * time.Second,
	}
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Set encrypts value under a key derived from secret and overwrites key.
// Any secret length works. Failures are logged and dropped.
func (s *Store) Set(key string, value any, secret []byte) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Error("dropping write: marshal failed", "key", key, "error", err)
		return
	}
	sealed, err := crypto.Encrypt(raw, crypto.RecordKey(secret))
	if err != nil {
		s.log.Error("dropping write: encrypt failed", "key", key, "error", err)
		return
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.backend.Put(ctx, key, sealed); err != nil {
		s.log.Error("dropping write: backend put failed", "key", key, "error", err)
	}
}

// Get returns the decrypted JSON at key. ok is false when the key is missing,
// when secret is wrong, or when the payload is corrupt.
func (s *Store) Get(key string, secret []byte) (json.RawMessage, bool) {
	ctx, cancel := s.ctx()
	defer cancel()

	sealed, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("read failed", "key", key, "error", err)
		}
		return nil, false
	}
	if strings.HasPrefix(sealed, plainPrefix) {
		s.log.Debug("encrypted read of plain key", "key", key)
		return nil, false
	}

	plain, err := crypto.Decrypt(sealed, crypto.RecordKey(secret))
	if err != nil {
		s.log.Debug("decrypt failed", "key", key)
		return nil, false
	}
	if !utf8.Valid(plain) || !json.Valid(plain) {
		s.log.Debug("decrypted payload is not JSON", "key", key)
		return nil, false
	}
	return json.RawMessage(plain), true
}

// Load decodes the value at key into T.
func Load[T any](s *Store, key string, secret []byte) (T, bool) {
	var out T
	raw, ok := s.Get(key, secret)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Debug("stored value has unexpected shape", "key", key, "error", err)
		var zero T
		return zero, false
	}
	return out, true
}

func (s *Store) Remove(key string) {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Error("remove failed", "key", key, "error", err)
	}
}

// Exists reports whether anything is stored at key, without a secret.
func (s *Store) Exists(key string) bool {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.backend.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Error("exists check failed", "key", key, "error", err)
	}
	return err == nil
}

// SetPlain stores a value that is not secret-gated.
func (s *Store) SetPlain(key, value string) {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.backend.Put(ctx, key, plainPrefix+value); err != nil {
		s.log.Error("dropping plain write", "key", key, "error", err)
	}
}

func (s *Store) GetPlain(key string) (string, bool) {
	ctx, cancel := s.ctx()
	defer cancel()
	v, err := s.backend.Get(ctx, key)
	if err != nil || !strings.HasPrefix(v, plainPrefix) {
		return "", false
	}
	return strings.TrimPrefix(v, plainPrefix), true
}

// Keys lists every stored key in sorted order.
func (s *Store) Keys() []string {
	ctx, cancel := s.ctx()
	defer cancel()
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.log.Error("listing keys failed", "error", err)
		return nil
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every key.
func (s *Store) Clear() {
	for _, k := range s.Keys() {
		s.Remove(k)
	}
}

// Atomic runs fn while holding the store's write lock. Calls must not nest.
func (s *Store) Atomic(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn()
}

// Session binds a store to one secret.
type Session struct {
	store  *Store
	secret []byte
}

func (s *Store) Unlock(secret []byte) *Session {
	return &Session{store: s, secret: secret}
}

func (s *Session) Store() *Store { return s.store }

func (s *Session) Set(key string, value any) { s.store.Set(key, value, s.secret) }

func (s *Session) Get(key string) (json.RawMessage, bool) { return s.store.Get(key, s.secret) }

func (s *Session) Remove(key string) { s.store.Remove(key) }

func (s *Session) Exists(key string) bool { return s.store.Exists(key) }

// LoadAs is Load bound to a session's secret.
func LoadAs[T any](s *Session, key string) (T, bool) {
	return Load[T](s.store, key, s.secret)
}

// LoadOr returns the stored value or def when absent.
func LoadOr[T any](s *Session, key string, def T) T {
	if v, ok := LoadAs[T](s, key); ok {
		return v
	}
	return def
}
