// Package cache keeps rendered attendance reports close to the API.
package cache

import (
	"context"
	"time"
)

// ReportCache stores report payloads per tenant.
// Key pins a report to the current cache version of the tenant; Get and Set work on that pinned key,
// so a report computed before an Invalidate is stored where no later Get looks.
type ReportCache interface {
	Key(ctx context.Context, tenantID, report string) (string, error)
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, val interface{}) error
	Invalidate(ctx context.Context, tenantID string) error
}

type nopCache struct{}

var _ ReportCache = nopCache{}

// NewNopCache returns a cache that never hits.
func NewNopCache() ReportCache { return nopCache{} }

func (nopCache) Key(_ context.Context, _, report string) (string, error) { return report, nil }
func (nopCache) Get(context.Context, string, interface{}) (bool, error)   { return false, nil }
func (nopCache) Set(context.Context, string, interface{}) error           { return nil }
func (nopCache) Invalidate(context.Context, string) error                 { return nil }

const DefaultTTL = 5 * time.Minute
