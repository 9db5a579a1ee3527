package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/arjunkapur/swiftkart-backend/pkg/config"
	pkgerrors "github.com/arjunkapur/swiftkart-backend/pkg/errors"
	"github.com/arjunkapur/swiftkart-backend/pkg/redis"
)

// Store is the redis surface the OTP service needs.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	OTPKey(orderID string) string
}

// Service issues and consumes single-use delivery challenges. A challenge
// lives only in redis; consuming it deletes the key so a code can never be
// replayed.
type Service struct {
	store Store
	cfg   config.OTPConfig
}

func NewService(store Store, cfg config.OTPConfig) *Service {
	return &Service{store: store, cfg: cfg}
}

// Issue generates a fresh numeric code for the order, replacing any
// outstanding challenge.
func (s *Service) Issue(ctx context.Context, orderID string) (string, error) {
	length := s.cfg.Length
	if length <= 0 {
		length = 4
	}
	code, err := generateCode(length)
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	if err := s.store.Set(ctx, s.store.OTPKey(orderID), code, s.cfg.TTL); err != nil {
		return "", fmt.Errorf("storing otp: %w", err)
	}
	return code, nil
}

// Consume verifies the submitted code against the outstanding challenge and
// deletes it on success. A missing challenge means it expired or was never
// issued; a mismatch leaves the challenge in place for a retry.
func (s *Service) Consume(ctx context.Context, orderID, submitted string) error {
	key := s.store.OTPKey(orderID)
	stored, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return pkgerrors.New(pkgerrors.CodeVerification, "no active delivery code for order")
		}
		return fmt.Errorf("loading otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		return pkgerrors.New(pkgerrors.CodeVerification, "delivery code does not match")
	}
	if err := s.store.Del(ctx, key); err != nil {
		return fmt.Errorf("clearing otp: %w", err)
	}
	return nil
}

// Clear drops any outstanding challenge for the order.
func (s *Service) Clear(ctx context.Context, orderID string) error {
	return s.store.Del(ctx, s.store.OTPKey(orderID))
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
