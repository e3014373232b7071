package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store holds per-checkout state in Redis. Between the authorize step and
// the capture step a checkout carries at most two live keys: the pending
// payment id and the pending authorization id.
type Store struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewStore(client *redis.Client) *Store {
	return &Store{
		Client: client,
		Logger: log.Default(),
	}
}

// getSessionTTL returns the checkout session TTL from environment variables or the default value
func (s *Store) getSessionTTL() time.Duration {
	// Default session TTL is 30 minutes
	defaultTTL := 30 * time.Minute

	ttlStr := os.Getenv("CHECKOUT_SESSION_TTL_MINUTES")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlMin, err := strconv.Atoi(ttlStr)
	if err != nil {
		s.Logger.Println("SESSION: Invalid CHECKOUT_SESSION_TTL_MINUTES value '" + ttlStr + "', using default 30 minutes")
		return defaultTTL
	}

	return time.Duration(ttlMin) * time.Minute
}

// Session is an explicit handle on one checkout's state, owned by the caller
// and passed into every workflow call.
type Session struct {
	store *Store
	id    string
}

func (s *Store) Session(id string) *Session {
	return &Session{store: s, id: id}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) key(field string) string {
	return fmt.Sprintf("checkout:%s:%s", s.id, field)
}

func (s *Session) set(ctx context.Context, field, value string) error {
	return s.store.Client.Set(ctx, s.key(field), value, s.store.getSessionTTL()).Err()
}

func (s *Session) get(ctx context.Context, field string) (string, error) {
	val, err := s.store.Client.Get(ctx, s.key(field)).Result()
	if err == redis.Nil {
		return "", nil // absent
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *Session) remove(ctx context.Context, field string) error {
	return s.store.Client.Del(ctx, s.key(field)).Err()
}

func (s *Session) SetPaymentID(ctx context.Context, paymentID string) error {
	return s.set(ctx, "payment", paymentID)
}

func (s *Session) PaymentID(ctx context.Context) (string, error) {
	return s.get(ctx, "payment")
}

func (s *Session) ClearPaymentID(ctx context.Context) error {
	return s.remove(ctx, "payment")
}

func (s *Session) SetAuthorizationID(ctx context.Context, authorizationID string) error {
	return s.set(ctx, "authorization", authorizationID)
}

func (s *Session) AuthorizationID(ctx context.Context) (string, error) {
	return s.get(ctx, "authorization")
}

func (s *Session) ClearAuthorizationID(ctx context.Context) error {
	return s.remove(ctx, "authorization")
}

// Reset clears all live keys for this checkout.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.remove(ctx, "payment"); err != nil {
		return err
	}
	return s.remove(ctx, "authorization")
}
