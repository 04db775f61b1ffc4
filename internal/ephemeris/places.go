package ephemeris

import "sync"

// maxCachedPlaces bounds the place-name cache. When full it is emptied.
const maxCachedPlaces = 512

// placeCache remembers resolved place names by sample epoch for the
// lifetime of one dataset.
type placeCache struct {
	mu    sync.Mutex
	names map[string]string
}

func newPlaceCache() *placeCache {
	return &placeCache{names: make(map[string]string)}
}

func (c *placeCache) get(epoch string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.names[epoch]
	return name, ok
}

func (c *placeCache) put(epoch, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.names) >= maxCachedPlaces {
		clear(c.names)
	}
	c.names[epoch] = name
}

func (c *placeCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.names)
}

func (c *placeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}
