// Package redirecttoken holds short-lived, single-use tokens used to hand an
// authenticated user across domains (e.g. from the auth domain back to a
// tenant subdomain) without putting credentials in the URL.
package redirecttoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/authvital/internal/cache"
	tokens "github.com/dropDatabas3/authvital/internal/security/token"
)

const keyPrefix = "rt:"

// ErrInvalid is returned by Consume for unknown, expired or already used tokens.
var ErrInvalid = errors.New("redirecttoken: invalid or expired token")

// Payload is what a redirect token stands for.
type Payload struct {
	UserID      string    `json:"user_id"`
	ClientID    string    `json:"client_id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	RedirectURI string    `json:"redirect_uri,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Store is the pluggable persistence behind the service.
type Store interface {
	Put(ctx context.Context, token string, p Payload, ttl time.Duration) error
	// Take returns the payload and removes it. ok is false when the token is unknown or expired.
	Take(ctx context.Context, token string) (Payload, bool, error)
}

// Sweeper is implemented by stores that need explicit expiry.
type Sweeper interface {
	Sweep()
}

// CacheStore stores payloads in a cache.Client under the token hash.
type CacheStore struct {
	c cache.Client
}

func NewCacheStore(c cache.Client) *CacheStore { return &CacheStore{c: c} }

func (s *CacheStore) key(token string) string { return keyPrefix + tokens.SHA256Base64URL(token) }

func (s *CacheStore) Put(ctx context.Context, token string, p Payload, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redirecttoken: encode: %w", err)
	}
	return s.c.Set(ctx, s.key(token), string(raw), ttl)
}

func (s *CacheStore) Take(ctx context.Context, token string) (Payload, bool, error) {
	raw, err := s.c.Take(ctx, s.key(token))
	if cache.IsNotFound(err) {
		return Payload{}, false, nil
	}
	if err != nil {
		return Payload{}, false, err
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, false, fmt.Errorf("redirecttoken: decode: %w", err)
	}
	return p, true, nil
}

// Sweep drops expired entries when the underlying cache needs it.
func (s *CacheStore) Sweep() {
	if sw, ok := s.c.(Sweeper); ok {
		sw.Sweep()
	}
}

// RunSweeper calls Sweep every interval until ctx is done. Stores without
// explicit expiry return immediately.
func RunSweeper(ctx context.Context, s Store, interval time.Duration) {
	sw, ok := s.(Sweeper)
	if !ok || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sw.Sweep()
		}
	}
}

// Service mints and consumes tokens.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// TTL is the lifetime of minted tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue mints a token for p. IssuedAt is set by the service.
func (s *Service) Issue(ctx context.Context, p Payload) (string, error) {
	tok, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	p.IssuedAt = s.now().UTC()
	if err := s.store.Put(ctx, tok, p, s.ttl); err != nil {
		return "", err
	}
	return tok, nil
}

// Consume redeems a token exactly once.
func (s *Service) Consume(ctx context.Context, token string) (Payload, error) {
	if token == "" {
		return Payload{}, ErrInvalid
	}
	p, ok, err := s.store.Take(ctx, token)
	if err != nil {
		return Payload{}, err
	}
	if !ok {
		return Payload{}, ErrInvalid
	}
	return p, nil
}
