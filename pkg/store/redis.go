package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

const documentKey = "fusion:coordinator:state"

// RedisBackend keeps the whole document as a single JSON value so that every
// write is atomic from the caller's perspective.
type RedisBackend struct {
	pool *redis.Pool
}

func dialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

// NewRedisBackend connects a pool to the given host:port address.
func NewRedisBackend(addr string) *RedisBackend {
	return &RedisBackend{
		pool: &redis.Pool{
			MaxIdle: 5,
			Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", addr, dialOptions()...) },
		},
	}
}

// Read loads the current document. A missing or corrupt value reinitializes
// the empty default document and persists it before returning; the store
// never crashes on an empty backend.
func (b *RedisBackend) Read() (*Document, error) {
	conn := b.pool.Get()
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", documentKey))
	if errors.Is(err, redis.ErrNil) {
		return b.reinitialize(conn)
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		// corrupt document: reset rather than crash
		return b.reinitialize(conn)
	}
	if doc.Nonces == nil {
		doc.Nonces = map[string]uint64{}
	}
	return &doc, nil
}

func (b *RedisBackend) reinitialize(conn redis.Conn) (*Document, error) {
	doc := NewDocument()
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal default document: %v", err)
	}
	if _, err := conn.Do("SET", documentKey, raw); err != nil {
		return nil, fmt.Errorf("redis SET: %v", err)
	}
	return doc, nil
}

// Write persists the full document.
func (b *RedisBackend) Write(doc *Document) error {
	conn := b.pool.Get()
	defer conn.Close()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cannot marshal document: %v", err)
	}
	if _, err := conn.Do("SET", documentKey, raw); err != nil {
		return fmt.Errorf("redis SET: %v", err)
	}
	return nil
}

// Ping verifies connectivity, used by the readiness endpoint.
func (b *RedisBackend) Ping() error {
	conn := b.pool.Get()
	defer conn.Close()

	_, err := conn.Do("PING")
	return err
}

// Close releases the connection pool.
func (b *RedisBackend) Close() error {
	return b.pool.Close()
}
