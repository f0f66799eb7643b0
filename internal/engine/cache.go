package engine

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"wacrm/internal/models"
)

// messageCache keeps the last fetched message list per conversation so that
// switching back to a recently viewed chat paints instantly while the fresh
// fetch is in flight. Bounded LRU, keyed by conversation id.
type messageCache struct {
	lru *lru.Cache[string, []*models.Message]
}

func newMessageCache(size int) *messageCache {
	// lru.New only fails on a non-positive size, which config defaulting
	// already rules out.
	c, err := lru.New[string, []*models.Message](size)
	if err != nil {
		panic(err)
	}
	return &messageCache{lru: c}
}

func (c *messageCache) Get(conversationID string) ([]*models.Message, bool) {
	return c.lru.Get(conversationID)
}

func (c *messageCache) Put(conversationID string, messages []*models.Message) {
	c.lru.Add(conversationID, messages)
}
