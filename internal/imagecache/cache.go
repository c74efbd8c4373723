package imagecache

import (
	"container/list"
	"image"
	"sync"
)

// Cache holds decoded bitmaps keyed by asset identifier, bounded by total
// decoded size and entry count. Eviction is least-recently-used. Racing
// inserts for the same key are last-write-wins; both are valid decodes of
// the same bytes.
type Cache struct {
	mu         sync.Mutex
	maxBytes   int64
	maxEntries int
	bytes      int64
	order      *list.List
	entries    map[string]*list.Element
}

type entry struct {
	id   string
	img  image.Image
	cost int64
}

// New constructs a cache with the given bounds. Non-positive bounds fall
// back to effectively unlimited.
func New(maxBytes int64, maxEntries int) *Cache {
	if maxBytes <= 0 {
		maxBytes = 1 << 62
	}
	if maxEntries <= 0 {
		maxEntries = 1 << 30
	}
	return &Cache{
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// Get returns the cached image for an identifier and marks it recently used.
func (c *Cache) Get(id string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	element, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(element)
	return element.Value.(*entry).img, true
}

// Add inserts or replaces an image, then evicts until both bounds hold.
func (c *Cache) Add(id string, img image.Image) {
	if img == nil {
		return
	}
	cost := imageCost(img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[id]; ok {
		old := element.Value.(*entry)
		c.bytes += cost - old.cost
		old.img = img
		old.cost = cost
		c.order.MoveToFront(element)
	} else {
		c.entries[id] = c.order.PushFront(&entry{id: id, img: img, cost: cost})
		c.bytes += cost
	}

	for (c.bytes > c.maxBytes || c.order.Len() > c.maxEntries) && c.order.Len() > 1 {
		c.evictOldest()
	}
}

// Remove drops an identifier from the cache.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, ok := c.entries[id]; ok {
		c.removeElement(element)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cost returns the summed decoded size of cached entries in bytes.
func (c *Cache) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

func (c *Cache) evictOldest() {
	element := c.order.Back()
	if element == nil {
		return
	}
	c.removeElement(element)
}

func (c *Cache) removeElement(element *list.Element) {
	e := element.Value.(*entry)
	c.order.Remove(element)
	delete(c.entries, e.id)
	c.bytes -= e.cost
}

// imageCost estimates the decoded memory footprint as 4 bytes per pixel.
func imageCost(img image.Image) int64 {
	bounds := img.Bounds()
	return int64(bounds.Dx()) * int64(bounds.Dy()) * 4
}
