// Package cache is an in-process TTL cache of per-recipient views, so that one
// write can drop everything derived from a recipient's notifications.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultTTL           = 5 * time.Minute
	defaultMaxRecipients = 10000
)

// views holds the cached values of one recipient. They expire together.
type views struct {
	mu     sync.Mutex
	values map[string]any
}

type Cache struct {
	mu  sync.Mutex // serializes Set's lookup-then-add
	lru *expirable.LRU[int64, *views]
}

// New builds a cache whose recipient entries live for ttl after their first
// value was stored. At most defaultMaxRecipients recipients are kept; the least
// recently used one is evicted first.
func New(ttl time.Duration) *Cache {
	return NewWithSize(ttl, defaultMaxRecipients)
}

func NewWithSize(ttl time.Duration, maxRecipients int) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxRecipients <= 0 {
		maxRecipients = defaultMaxRecipients
	}
	return &Cache{lru: expirable.NewLRU[int64, *views](maxRecipients, nil, ttl)}
}

// Get returns the recipient's value for key unless it is missing or expired.
func (c *Cache) Get(recipientID int64, key string) (any, bool) {
	v, ok := c.lru.Get(recipientID)
	if !ok {
		return nil, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok := v.values[key]
	return value, ok
}

// Set stores value under key for the recipient.
func (c *Cache) Set(recipientID int64, key string, value any) {
	c.mu.Lock()
	v, ok := c.lru.Get(recipientID)
	if !ok {
		v = &views{values: make(map[string]any)}
		c.lru.Add(recipientID, v)
	}
	c.mu.Unlock()

	v.mu.Lock()
	v.values[key] = value
	v.mu.Unlock()
}

// Invalidate drops every value stored for recipientID.
func (c *Cache) Invalidate(ctx context.Context, recipientID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.lru.Remove(recipientID)
	c.mu.Unlock()
	return nil
}

// Len is the number of recipients with live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
