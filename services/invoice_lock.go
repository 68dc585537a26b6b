package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InvoiceLocker guards the invariant that at most one non-terminal payment
// intent exists per invoice, across service instances.
type InvoiceLocker interface {
	// Acquire claims the invoice for an intent. Returns false when another
	// intent already holds it.
	Acquire(ctx context.Context, invoiceID, intentID uuid.UUID, ttl time.Duration) (bool, error)
	// Release frees the invoice if it is still held by the given intent.
	Release(ctx context.Context, invoiceID, intentID uuid.UUID) error
}

// RedisInvoiceLock implements InvoiceLocker with SETNX and a TTL slightly
// above the countdown budget, so a crashed instance cannot wedge an invoice.
type RedisInvoiceLock struct {
	client *redis.Client
}

func NewRedisInvoiceLock(client *redis.Client) *RedisInvoiceLock {
	return &RedisInvoiceLock{client: client}
}

func lockKey(invoiceID uuid.UUID) string {
	return "payments:invoice-lock:" + invoiceID.String()
}

func (l *RedisInvoiceLock) Acquire(ctx context.Context, invoiceID, intentID uuid.UUID, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(invoiceID), intentID.String(), ttl).Result()
}

// releaseScript deletes the lock only when the holder matches, so a late
// release from a superseded intent cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisInvoiceLock) Release(ctx context.Context, invoiceID, intentID uuid.UUID) error {
	return releaseScript.Run(ctx, l.client, []string{lockKey(invoiceID)}, intentID.String()).Err()
}
