package paycode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix = "paycode:"
	usedKeyPrefix = "paycode:used:"
	apptKeyPrefix = "paycode:appt:"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates the production code store on a Redis client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func codeKey(code string) string {
	return codeKeyPrefix + code
}

func usedKey(code string) string {
	return usedKeyPrefix + code
}

func apptKey(appointmentID uint) string {
	return apptKeyPrefix + strconv.FormatUint(uint64(appointmentID), 10)
}

func (s *redisStore) Get(ctx context.Context, code string) (*PaymentCode, error) {
	val, err := s.client.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("code store get: %w", err)
	}

	var pc PaymentCode
	if err := json.Unmarshal([]byte(val), &pc); err != nil {
		return nil, fmt.Errorf("code store decode: %w", err)
	}
	return &pc, nil
}

func (s *redisStore) GetByAppointment(ctx context.Context, appointmentID uint) (string, *PaymentCode, error) {
	code, err := s.client.Get(ctx, apptKey(appointmentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrCodeNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("code store appointment lookup: %w", err)
	}

	pc, err := s.Get(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			// Stale reverse index; the code entry was already evicted.
			_ = s.client.Del(ctx, apptKey(appointmentID)).Err()
		}
		return "", nil, err
	}
	return code, pc, nil
}

func (s *redisStore) Set(ctx context.Context, code string, pc PaymentCode, ttl time.Duration) error {
	payload, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("code store encode: %w", err)
	}
	if err := s.client.Set(ctx, codeKey(code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("code store set: %w", err)
	}
	if err := s.client.Set(ctx, apptKey(pc.AppointmentID), code, ttl).Err(); err != nil {
		return fmt.Errorf("code store set index: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, code string) error {
	keys := []string{codeKey(code), usedKey(code)}
	if pc, err := s.Get(ctx, code); err == nil {
		keys = append(keys, apptKey(pc.AppointmentID))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("code store delete: %w", err)
	}
	return nil
}

func (s *redisStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, codeKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("code store exists: %w", err)
	}
	return n > 0, nil
}

// MarkUsed claims the code via SETNX on a sidecar key carrying the same
// TTL as the code entry, then rewrites the cached record with IsUsed set.
func (s *redisStore) MarkUsed(ctx context.Context, code string) (bool, error) {
	ttl, err := s.client.PTTL(ctx, codeKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("code store ttl: %w", err)
	}
	if ttl < 0 {
		// -2: key gone, -1: no expiry (never set by us). Treat both as absent.
		return false, ErrCodeNotFound
	}

	claimed, err := s.client.SetNX(ctx, usedKey(code), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("code store claim: %w", err)
	}
	if !claimed {
		return false, nil
	}

	pc, err := s.Get(ctx, code)
	if err != nil {
		return true, err
	}
	pc.IsUsed = true
	payload, err := json.Marshal(pc)
	if err != nil {
		return true, fmt.Errorf("code store encode: %w", err)
	}
	if err := s.client.Set(ctx, codeKey(code), payload, redis.KeepTTL).Err(); err != nil {
		return true, fmt.Errorf("code store set: %w", err)
	}
	return true, nil
}

func (s *redisStore) ReleaseUse(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, usedKey(code)).Err(); err != nil {
		return fmt.Errorf("code store release: %w", err)
	}
	pc, err := s.Get(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil
		}
		return err
	}
	pc.IsUsed = false
	payload, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("code store encode: %w", err)
	}
	return s.client.Set(ctx, codeKey(code), payload, redis.KeepTTL).Err()
}
