// Package timezone resolves the calendar a user's "day" is defined by.
// All mood-point day arithmetic routes through here rather than assuming
// server time.
package timezone

import (
	"context"
	"log"

	storage "github.com/inkwell-app/inkwell/backend/storage/cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PreferencesReader is the slice of the persistent storage the resolver needs.
type PreferencesReader interface {
	GetTimezone(ctx context.Context, userID primitive.ObjectID) (string, error)
}

// Resolver looks up a user's configured IANA timezone, falling back to UTC
// when the user has none set or the lookup fails. Lookups are cached because
// every mood operation starts with one.
type Resolver struct {
	prefs PreferencesReader
	cache storage.CacheInterface
}

// NewResolver creates a Resolver over the given preferences store.
// The cache may be nil, in which case every lookup hits the store.
func NewResolver(prefs PreferencesReader, cache storage.CacheInterface) *Resolver {
	return &Resolver{prefs: prefs, cache: cache}
}

// TimezoneFor returns the IANA timezone configured for the user, or "UTC".
// A failed lookup is logged and treated as unset; a user's day boundary must
// never make an operation fail.
func (r *Resolver) TimezoneFor(ctx context.Context, userID primitive.ObjectID) string {
	key := "tz_" + userID.Hex()

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key); err == nil {
			if tz, ok := cached.(string); ok && tz != "" {
				return tz
			}
		}
	}

	tz, err := r.prefs.GetTimezone(ctx, userID)
	if err != nil {
		log.Printf("timezone lookup failed for user %s: %v", userID.Hex(), err)
		return "UTC"
	}
	if tz == "" {
		tz = "UTC"
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, tz); err != nil {
			log.Printf("failed to cache timezone for user %s: %v", userID.Hex(), err)
		}
	}
	return tz
}
