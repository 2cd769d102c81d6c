// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package viewstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faces-core/pkg/safejson"
	"github.com/united-manufacturing-hub/faces-core/pkg/session"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
)

// RedisClient is the part of a go-redis client the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const (
	redisKeyPrefix = "faces:viewstate:"
	retryInterval  = 50 * time.Millisecond
)

// RedisStore keeps views in Redis so that several instances can share them.
// Entries expire after the TTL; there is no eviction callback, flash tokens
// run out on their own TTL.
type RedisStore struct {
	client     RedisClient
	ttl        time.Duration
	maxRetries uint64
	log        *zap.SugaredLogger
}

// NewRedisStore creates a store on client. Failing commands are retried
// with exponential backoff.
func NewRedisStore(client RedisClient, ttl time.Duration, log *zap.SugaredLogger) *RedisStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &RedisStore{client: client, ttl: ttl, maxRetries: 3, log: log}
}

type redisEntry struct {
	ViewID     string `json:"viewId"`
	Counter    int32  `json:"counter,omitempty"`
	Raw        []byte `json:"raw,omitempty"`
	Data       []byte `json:"data"`
	FlashToken string `json:"flash,omitempty"`
}

func redisKey(sess *session.Session, window string, key statecodec.Key) string {
	return redisWindowPrefix(sess, window) + key.String()
}

func redisWindowPrefix(sess *session.Session, window string) string {
	return redisKeyPrefix + sess.ID() + ":" + window + ":"
}

func (s *RedisStore) retry(ctx context.Context, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = retryInterval

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(exp, s.maxRetries), ctx))
}

func (s *RedisStore) Put(ctx context.Context, sess *session.Session, window string, e Entry) error {
	raw, err := safejson.Marshal(redisEntry{
		ViewID:     e.Key.ViewID,
		Counter:    e.Key.Counter(),
		Raw:        e.Key.Bytes(),
		Data:       e.Data,
		FlashToken: e.FlashToken,
	})
	if err != nil {
		return fmt.Errorf("encode view entry: %w", err)
	}

	key := redisKey(sess, window, e.Key)

	err = s.retry(ctx, func() error {
		return s.client.Set(ctx, key, raw, s.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("store view %s: %w", e.Key.ViewID, err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, sess *session.Session, window string, key statecodec.Key) (Entry, bool, error) {
	var raw []byte

	err := s.retry(ctx, func() error {
		var err error

		raw, err = s.client.Get(ctx, redisKey(sess, window, key)).Bytes()
		if errors.Is(err, redis.Nil) {
			raw = nil

			return nil
		}

		return err
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("load view %s: %w", key.ViewID, err)
	}

	if raw == nil {
		return Entry{}, false, nil
	}

	var re redisEntry
	if err := safejson.Unmarshal(raw, &re); err != nil {
		s.log.Warnf("Dropping unreadable view entry for %s: %s", key.ViewID, err)

		return Entry{}, false, nil
	}

	stored := statecodec.NewCounterKey(re.ViewID, re.Counter)
	if re.Raw != nil {
		stored = statecodec.NewRandomKey(re.ViewID, re.Raw)
	}

	if !stored.Equal(key) {
		return Entry{}, false, nil
	}

	return Entry{Key: stored, Data: re.Data, FlashToken: re.FlashToken}, true, nil
}

func (s *RedisStore) DropWindow(ctx context.Context, sess *session.Session, window string) error {
	keys, err := s.client.Keys(ctx, redisWindowPrefix(sess, window)+"*").Result()
	if err != nil {
		return fmt.Errorf("list views of window %q: %w", window, err)
	}

	if len(keys) == 0 {
		return nil
	}

	return s.retry(ctx, func() error {
		return s.client.Del(ctx, keys...).Err()
	})
}
