package leaselock

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ProductKey is the lease key guarding relationship analysis of one product.
func ProductKey(productID int64) string {
	return fmt.Sprintf("product_analysis:%d", productID)
}

// ProductLocker serializes relationship analysis of a product across
// processes. It waits for a busy lease instead of failing.
type ProductLocker struct {
	client *Client
	opts   Options
}

// NewProductLocker returns a ProductLocker whose leases last ttl.
func NewProductLocker(client *Client, ttl time.Duration) *ProductLocker {
	host, _ := os.Hostname()
	return &ProductLocker{
		client: client,
		opts: Options{
			TTL:          ttl,
			Wait:         true,
			WaitInterval: 500 * time.Millisecond,
			WaitJitter:   250 * time.Millisecond,
			TokenPrefix:  host + ":",
		},
	}
}

func (p *ProductLocker) WithLock(ctx context.Context, productID int64, fn func(ctx context.Context) error) error {
	return p.client.WithLease(ctx, ProductKey(productID), p.opts, fn)
}
