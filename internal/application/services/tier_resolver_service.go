package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/lizTheDeveloper/llm-tutor-sub000/configs"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/user"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

// directoryLookupTimeout bounds one shared directory lookup, independent of the callers
// waiting on it.
const directoryLookupTimeout = 2 * time.Second

type tierCacheEntry struct {
	tier    quota.Tier
	expires time.Time
}

// TierResolverService maps principals to tiers through the principal directory and
// tiers to limits through the static limits table. Successful resolutions are cached
// locally for a bounded TTL; failures are never cached.
type TierResolverService struct {
	directory     ports.PrincipalDirectory
	limits        *configs.LimitsConfig
	ttl           time.Duration
	lookupTimeout time.Duration
	logger        *logrus.Logger
	now           func() time.Time

	mu    sync.RWMutex
	cache map[string]tierCacheEntry
	group singleflight.Group
}

// NewTierResolverService creates a resolver. A ttl <= 0 disables the local cache.
func NewTierResolverService(directory ports.PrincipalDirectory, limits *configs.LimitsConfig, ttl time.Duration, logger *logrus.Logger) *TierResolverService {
	return &TierResolverService{
		directory:     directory,
		limits:        limits,
		ttl:           ttl,
		lookupTimeout: directoryLookupTimeout,
		logger:        logger,
		now:           time.Now,
		cache:         make(map[string]tierCacheEntry),
	}
}

func (s *TierResolverService) Resolve(ctx context.Context, principalID string) quota.Tier {
	if principalID == "" {
		s.warnFallback(principalID, fmt.Errorf("%w: empty principal id", quota.ErrDirectoryLookup))
		return s.limits.FallbackTier
	}
	if tier, ok := s.cached(principalID); ok {
		return tier
	}
	if s.directory == nil {
		s.warnFallback(principalID, fmt.Errorf("%w: no principal directory configured", quota.ErrDirectoryLookup))
		return s.limits.FallbackTier
	}

	// The shared lookup is detached from any one caller; each caller stops waiting at
	// its own deadline.
	ch := s.group.DoChan(principalID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lookupTimeout)
		defer cancel()
		role, err := s.directory.GetRole(lctx, principalID)
		if err != nil {
			return nil, err
		}
		tier := s.tierFor(principalID, role)
		s.store(principalID, tier)
		return tier, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			s.warnFallback(principalID, res.Err)
			return s.limits.FallbackTier
		}
		return res.Val.(quota.Tier)
	case <-ctx.Done():
		s.warnFallback(principalID, fmt.Errorf("%w: %w", quota.ErrDirectoryLookup, ctx.Err()))
		return s.limits.FallbackTier
	}
}

func (s *TierResolverService) tierFor(principalID string, role user.UserRole) quota.Tier {
	tier, ok := s.limits.Roles[role]
	if ok {
		return tier
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"principal": principalID, "role": role, "tier": s.limits.FallbackTier}).Warn("tier resolver: role has no tier mapping, using fallback tier")
	}
	return s.limits.FallbackTier
}

// LimitsFor returns the exact (tier, op) spec, then the fallback tier's spec for op,
// then a deny-all spec. An unconstrained result is only ever an explicitly configured one.
func (s *TierResolverService) LimitsFor(tier quota.Tier, op quota.OperationClass) quota.LimitSpec {
	if spec, ok := s.limits.Spec(tier, op); ok {
		return spec
	}
	fallback := s.limits.FallbackTier
	if spec, ok := s.limits.Spec(fallback, op); ok {
		return spec
	}
	spec := quota.DenyAll(fallback, op)
	if limit, ok := s.limits.DailyCostLimit(fallback); ok {
		spec.DailyCostLimit = &limit
	}
	return spec
}

// PurgeExpired drops stale cache entries and returns how many were removed.
func (s *TierResolverService) PurgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.cache {
		if !now.Before(e.expires) {
			delete(s.cache, id)
			n++
		}
	}
	return n
}

func (s *TierResolverService) cached(principalID string) (quota.Tier, bool) {
	if s.ttl <= 0 {
		return "", false
	}
	s.mu.RLock()
	e, ok := s.cache[principalID]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expires) {
		return "", false
	}
	return e.tier, true
}

func (s *TierResolverService) store(principalID string, tier quota.Tier) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cache[principalID] = tierCacheEntry{tier: tier, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

func (s *TierResolverService) warnFallback(principalID string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"principal": principalID,
		"tier":      s.limits.FallbackTier,
	}).WithError(err).Warn("tier resolver: directory lookup failed, using most restrictive tier")
}
