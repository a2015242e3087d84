// Package redisstore implements the backend contract on Redis. Each collection
// is a list of JSON records under "<prefix>:<collection>".
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/pkg/logging"

	"github.com/redis/go-redis/v9"
)

const subsystem = "RedisStore"

// DefaultPrefix namespaces the collection keys.
const DefaultPrefix = "mentorctl"

// Store is a Redis-backed backend.Adapter.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewClient builds a client from a redis:// URL.
func NewClient(url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// CheckConnection pings the server with a short timeout.
func CheckConnection(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}
	return nil
}

// New wraps an existing client.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(c backend.Collection) string {
	return s.prefix + ":" + string(c)
}

func (s *Store) ReadAll(ctx context.Context, c backend.Collection) ([]backend.Record, error) {
	return s.read(ctx, s.client, c)
}

func (s *Store) read(ctx context.Context, cmd redis.Cmdable, c backend.Collection) ([]backend.Record, error) {
	if _, err := backend.ParseCollection(string(c)); err != nil {
		return nil, err
	}
	raw, err := cmd.LRange(ctx, s.key(c), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, classify("read "+string(c), err)
	}
	out := make([]backend.Record, 0, len(raw))
	for _, item := range raw {
		r, err := backend.DecodeRecord(c, []byte(item))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) ReplaceAll(ctx context.Context, c backend.Collection, records []backend.Record) error {
	if _, err := backend.ParseCollection(string(c)); err != nil {
		return err
	}
	if err := backend.CheckRecords(c, records); err != nil {
		return err
	}
	values, err := encodeAll(records)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.writeList(ctx, pipe, c, values)
		return nil
	})
	if err != nil {
		return classify("replace "+string(c), err)
	}
	logging.Debug(subsystem, "Replaced %s with %d records", c, len(records))
	return nil
}

func (s *Store) Get(ctx context.Context, c backend.Collection, key string) (backend.Record, error) {
	records, err := s.ReadAll(ctx, c)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Key() == key {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", c, key, backend.ErrNotFound)
}

func (s *Store) Put(ctx context.Context, r backend.Record) error {
	if r == nil {
		return fmt.Errorf("cannot put nil record")
	}
	return s.modify(ctx, r.Collection(), func(records []backend.Record) ([]backend.Record, error) {
		for i, existing := range records {
			if existing.Key() == r.Key() {
				records[i] = r
				return records, nil
			}
		}
		return append(records, r), nil
	})
}

func (s *Store) Delete(ctx context.Context, c backend.Collection, key string) error {
	return s.modify(ctx, c, func(records []backend.Record) ([]backend.Record, error) {
		for i, existing := range records {
			if existing.Key() == key {
				return append(records[:i:i], records[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%s/%s: %w", c, key, backend.ErrNotFound)
	})
}

// modify runs a read-modify-write of one collection under WATCH. A concurrent
// writer makes the transaction fail with a transient error.
func (s *Store) modify(ctx context.Context, c backend.Collection, fn func([]backend.Record) ([]backend.Record, error)) error {
	key := s.key(c)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		records, err := s.read(ctx, tx, c)
		if err != nil {
			return err
		}
		updated, err := fn(records)
		if err != nil {
			return err
		}
		values, err := encodeAll(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.writeList(ctx, pipe, c, values)
			return nil
		})
		return err
	}, key)
	if err == nil || errors.Is(err, backend.ErrNotFound) || backend.IsTransient(err) {
		return err
	}
	return classify("modify "+string(c), err)
}

func (s *Store) writeList(ctx context.Context, pipe redis.Pipeliner, c backend.Collection, values []interface{}) {
	pipe.Del(ctx, s.key(c))
	if len(values) > 0 {
		pipe.RPush(ctx, s.key(c), values...)
	}
}

func encodeAll(records []backend.Record) ([]interface{}, error) {
	values := make([]interface{}, 0, len(records))
	for _, r := range records {
		data, err := backend.EncodeRecord(r)
		if err != nil {
			return nil, err
		}
		values = append(values, string(data))
	}
	return values, nil
}

// classify marks connection-level and optimistic-lock failures as transient.
func classify(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, redis.TxFailedErr),
		errors.Is(err, io.EOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return backend.Transient(op, err)
	default:
		return fmt.Errorf("redis %s: %w", op, err)
	}
}
