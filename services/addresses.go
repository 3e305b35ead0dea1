package services

import (
	"context"
	"sync"

	"lore-machine/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// addressLookupLimit bounds concurrent social provider calls.
const addressLookupLimit = 8

// AddressResolver resolves custody addresses through the social provider and
// mirrors every hit into the custody_addresses table.
type AddressResolver struct {
	social SocialProvider
	store  repository.Store
	log    *zap.SugaredLogger
	now    Clock
}

func NewAddressResolver(social SocialProvider, store repository.Store, log *zap.SugaredLogger, now Clock) *AddressResolver {
	return &AddressResolver{social: social, store: store, log: log, now: now}
}

// Resolve asks the provider. An empty address with a nil error means the fid has none.
func (r *AddressResolver) Resolve(ctx context.Context, fid int64) (string, error) {
	addr, err := r.social.CustodyAddress(ctx, fid)
	if err != nil {
		return "", err
	}
	if addr != "" {
		if err := r.store.SaveCustodyAddress(ctx, fid, addr, r.now()); err != nil {
			r.log.Warnf("⚠️ [ADDRESS] failed to cache custody address for fid %d: %v", fid, err)
		}
	}
	return addr, nil
}

// BestEffort never fails: provider errors fall back to the last cached address, then "".
func (r *AddressResolver) BestEffort(ctx context.Context, fid int64) string {
	addr, err := r.Resolve(ctx, fid)
	if err == nil {
		return addr
	}
	r.log.Warnf("⚠️ [ADDRESS] provider lookup failed for fid %d: %v", fid, err)
	cached, cacheErr := r.store.CachedCustodyAddress(ctx, fid)
	if cacheErr != nil {
		r.log.Warnf("⚠️ [ADDRESS] cache lookup failed for fid %d: %v", fid, cacheErr)
		return ""
	}
	return cached
}

// ResolveMany looks up fids concurrently. Fids without an address (or whose
// lookup failed) are absent from the result.
func (r *AddressResolver) ResolveMany(ctx context.Context, fids []int64) map[int64]string {
	var (
		mu  sync.Mutex
		out = make(map[int64]string, len(fids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(addressLookupLimit)
	for _, fid := range fids {
		g.Go(func() error {
			addr, err := r.Resolve(gctx, fid)
			if err != nil {
				r.log.Warnf("⚠️ [ADDRESS] lookup failed for fid %d: %v", fid, err)
				return nil
			}
			if addr == "" {
				return nil
			}
			mu.Lock()
			out[fid] = addr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
