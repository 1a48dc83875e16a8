// Package redis implements storage.BlobStore on Redis. Each namespace is two
// hashes: <prefix>:<namespace>:data holds documents by key and
// <prefix>:<namespace>:meta holds "<unix nanos>:<size>" for listing.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scrypster/thinkgraph/internal/storage"
)

// DefaultPrefix namespaces every key thinkgraph writes.
const DefaultPrefix = "thinkgraph"

// Options configures the Redis store.
type Options struct {
	// URL is a redis:// or rediss:// URL (default: redis://localhost:6379/0).
	URL string

	// Prefix is prepended to every hash key (default: DefaultPrefix).
	Prefix string

	// ConnectTimeout bounds the initial ping (default: 5s).
	ConnectTimeout time.Duration
}

// Store is a Redis-backed BlobStore.
type Store struct {
	client *redis.Client
	prefix string
}

var _ storage.BlobStore = (*Store)(nil)

// New parses opts.URL, connects and verifies the connection with a ping.
func New(opts Options) (*Store, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379/0"
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to parse URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	return &Store{client: client, prefix: opts.Prefix}, nil
}

// Put writes the document and its metadata in one MULTI/EXEC transaction.
func (s *Store) Put(ctx context.Context, namespace, key string, data []byte) error {
	if err := storage.ValidateKey(namespace, key); err != nil {
		return err
	}
	meta := strconv.FormatInt(time.Now().UnixNano(), 10) + ":" + strconv.Itoa(len(data))

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.dataKey(namespace), key, data)
		pipe.HSet(ctx, s.metaKey(namespace), key, meta)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: put %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get returns the document or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := storage.ValidateKey(namespace, key); err != nil {
		return nil, err
	}
	data, err := s.client.HGet(ctx, s.dataKey(namespace), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s/%s: %w", namespace, key, err)
	}
	return data, nil
}

// List reads the metadata hash of namespace.
func (s *Store) List(ctx context.Context, namespace string) ([]storage.BlobInfo, error) {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	entries, err := s.client.HGetAll(ctx, s.metaKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list %s: %w", namespace, err)
	}

	infos := make([]storage.BlobInfo, 0, len(entries))
	for key, meta := range entries {
		info, err := parseMeta(key, meta)
		if err != nil {
			return nil, fmt.Errorf("redis: list %s: %w", namespace, err)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) dataKey(namespace string) string {
	return s.prefix + ":" + namespace + ":data"
}

func (s *Store) metaKey(namespace string) string {
	return s.prefix + ":" + namespace + ":meta"
}

func parseMeta(key, meta string) (storage.BlobInfo, error) {
	nanosStr, sizeStr, ok := strings.Cut(meta, ":")
	if !ok {
		return storage.BlobInfo{}, fmt.Errorf("malformed metadata for %q", key)
	}
	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return storage.BlobInfo{}, fmt.Errorf("malformed mod time for %q: %w", key, err)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return storage.BlobInfo{}, fmt.Errorf("malformed size for %q: %w", key, err)
	}
	return storage.BlobInfo{Key: key, Size: size, ModTime: time.Unix(0, nanos)}, nil
}
