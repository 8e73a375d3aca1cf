package pwmigrate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const lockTTL = 5 * time.Minute

// userLocker hands out one try-lock per user id. Idle locks age out of the cache so abandoned ids don't pile up.
type userLocker struct {
	cache    *ttlcache.Cache[string, *atomic.Bool]
	stopOnce sync.Once
}

// newUserLocker starts the cache's expiry loop; call stop to end it.
func newUserLocker(ttl time.Duration) *userLocker {
	loader := ttlcache.LoaderFunc[string, *atomic.Bool](
		func(c *ttlcache.Cache[string, *atomic.Bool], key string) *ttlcache.Item[string, *atomic.Bool] {
			return c.Set(key, &atomic.Bool{}, ttlcache.DefaultTTL)
		},
	)

	cache := ttlcache.New[string, *atomic.Bool](
		ttlcache.WithTTL[string, *atomic.Bool](ttl),
		// two first-time callers for the same id must end up sharing one lock
		ttlcache.WithLoader[string, *atomic.Bool](ttlcache.NewSuppressedLoader[string, *atomic.Bool](loader, nil)),
	)
	go cache.Start()

	return &userLocker{cache: cache}
}

func (ul *userLocker) tryLock(id string) bool {
	return ul.cache.Get(id).Value().CompareAndSwap(false, true)
}

func (ul *userLocker) unlock(id string) {
	ul.cache.Get(id).Value().Store(false)
}

func (ul *userLocker) stop() {
	ul.stopOnce.Do(ul.cache.Stop)
}
