package services

import "time"

func SetResolverClock(r *TierResolverService, now func() time.Time) {
	r.now = now
}

func SetResolverLookupTimeout(r *TierResolverService, d time.Duration) {
	r.lookupTimeout = d
}
