package engine

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/grovetools/pkgview/pkg/models"
)

type metadataEntry struct {
	metadata    *models.SearchMetadata
	deprecation *models.DeprecationMetadata
}

// metadataCache memoizes metadata lookups. Purge bumps a generation so a
// fetch that started before the purge cannot repopulate stale entries.
type metadataCache struct {
	mu         sync.Mutex
	lru        *expirable.LRU[string, metadataEntry]
	generation uint64
}

func newMetadataCache(size int, ttl time.Duration) *metadataCache {
	if size <= 0 {
		size = 1024
	}
	return &metadataCache{lru: expirable.NewLRU[string, metadataEntry](size, nil, ttl)}
}

func metadataKey(id models.PackageIdentity, sources []models.SourceRepository, includePrerelease bool) string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, strings.ToLower(s.Name))
	}
	return id.Key() + "|" + strings.Join(names, ",") + "|" + strconv.FormatBool(includePrerelease)
}

func (c *metadataCache) get(key string) (metadataEntry, bool) {
	return c.lru.Get(key)
}

// gen returns the current generation for a later put.
func (c *metadataCache) gen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *metadataCache) put(gen uint64, key string, e metadataEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.lru.Add(key, e)
}

func (c *metadataCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lru.Purge()
}

func (c *metadataCache) len() int {
	return c.lru.Len()
}
