package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medoc/opd-token-engine/internal/booking"
)

// QueueCache caches queue projections per doctor under a short TTL. It is
// advisory only: every booking, cancel and serve invalidates the doctor's
// key, and a miss or redis failure just falls through to Postgres.
type QueueCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewQueueCache(client *redis.Client, ttl time.Duration) *QueueCache {
	return &QueueCache{
		client: client,
		ttl:    ttl,
	}
}

func queueKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("queue:doctor:%s", doctorID.String())
}

func (c *QueueCache) Get(ctx context.Context, doctorID uuid.UUID) (*booking.QueueView, bool) {
	data, err := c.client.Get(ctx, queueKey(doctorID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("queue cache get for doctor %s: %v", doctorID, err)
		}
		return nil, false
	}

	var view booking.QueueView
	if err := json.Unmarshal(data, &view); err != nil {
		log.Printf("queue cache decode for doctor %s: %v", doctorID, err)
		return nil, false
	}
	return &view, true
}

func (c *QueueCache) Set(ctx context.Context, doctorID uuid.UUID, view *booking.QueueView) {
	data, err := json.Marshal(view)
	if err != nil {
		log.Printf("queue cache encode for doctor %s: %v", doctorID, err)
		return
	}
	if err := c.client.Set(ctx, queueKey(doctorID), data, c.ttl).Err(); err != nil {
		log.Printf("queue cache set for doctor %s: %v", doctorID, err)
	}
}

func (c *QueueCache) Invalidate(ctx context.Context, doctorID uuid.UUID) {
	if err := c.client.Del(ctx, queueKey(doctorID)).Err(); err != nil {
		log.Printf("queue cache invalidate for doctor %s: %v", doctorID, err)
	}
}
