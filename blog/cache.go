package blog

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrItemTooLarge is returned when an article exceeds the cache capacity.
	ErrItemTooLarge = errors.New("article too large for cache")
	// ErrCacheClosed is returned by Put after Close.
	ErrCacheClosed = errors.New("cache is closed")
)

const indexFile = "cache.index"

// CacheStats holds cache usage figures.
type CacheStats struct {
	Capacity     int64 // Maximum size on disk in bytes
	Size         int64 // Current size on disk in bytes
	OriginalSize int64 // Uncompressed size in bytes
	Items        int
	Hits         int64
	Misses       int64
	Evictions    int64
	HitRate      float64
}

// CacheEntry describes one cached article.
type CacheEntry struct {
	ID           string
	Title        string
	FilePath     string
	Size         int64 // Size on disk (compressed)
	OriginalSize int64
	FetchedAt    time.Time
	LastAccess   time.Time
	Hits         int64
}

// Cache stores fetched articles on disk as zstd-compressed JSON.
type Cache struct {
	mu sync.Mutex

	dir      string
	capacity int64
	ttl      time.Duration
	now      func() time.Time

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index  map[string]*CacheEntry
	size   int64
	stats  CacheStats
	closed bool
}

// NewCache opens or creates a cache in dir. Entries older than ttl are
// treated as missing; a zero ttl keeps entries forever.
func NewCache(dir string, capacity int64, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	c := &Cache{
		dir:      dir,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		encoder:  enc,
		decoder:  dec,
		index:    make(map[string]*CacheEntry),
	}
	if err := c.loadIndex(); err != nil {
		// A damaged index only costs refetches.
		c.index = make(map[string]*CacheEntry)
	}
	for _, e := range c.index {
		c.size += e.Size
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the cached article for id.
func (c *Cache) Get(id string) (Blog, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index[id]
	if !ok || c.closed {
		c.stats.Misses++
		return Blog{}, false
	}
	if c.ttl > 0 && c.now().Sub(entry.FetchedAt) > c.ttl {
		c.removeLocked(id)
		c.stats.Misses++
		return Blog{}, false
	}

	data, err := os.ReadFile(entry.FilePath)
	if err == nil {
		data, err = c.decoder.DecodeAll(data, nil)
	}
	var b Blog
	if err == nil {
		err = json.Unmarshal(data, &b)
	}
	if err != nil {
		c.removeLocked(id)
		c.stats.Misses++
		return Blog{}, false
	}

	entry.LastAccess = c.now()
	entry.Hits++
	c.stats.Hits++
	return b, true
}

// Put stores b under its ID, evicting the least recently used articles
// when the cache is full.
func (c *Cache) Put(b Blog) error {
	if b.ID == "" {
		return errors.New("cannot cache an article without an id")
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}

	data := c.encoder.EncodeAll(raw, nil)
	diskSize := int64(len(data))
	if c.capacity > 0 && diskSize > c.capacity {
		return ErrItemTooLarge
	}

	if _, ok := c.index[b.ID]; ok {
		c.removeLocked(b.ID)
	}
	for c.capacity > 0 && c.size+diskSize > c.capacity && len(c.index) > 0 {
		c.evictOldest()
	}

	path := c.filePath(b.ID)
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := c.now()
	c.index[b.ID] = &CacheEntry{
		ID:           b.ID,
		Title:        b.Title,
		FilePath:     path,
		Size:         diskSize,
		OriginalSize: int64(len(raw)),
		FetchedAt:    now,
		LastAccess:   now,
	}
	c.size += diskSize
	return c.saveIndex()
}

// Delete removes one article.
func (c *Cache) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
	return c.saveIndex()
}

// Clear removes every article.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.index {
		_ = os.Remove(e.FilePath)
	}
	c.index = make(map[string]*CacheEntry)
	c.size = 0
	return c.saveIndex()
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Capacity = c.capacity
	stats.Size = c.size
	stats.Items = len(c.index)
	for _, e := range c.index {
		stats.OriginalSize += e.OriginalSize
	}
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// Entries returns the cached articles, most recently fetched first.
func (c *Cache) Entries() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CacheEntry, 0, len(c.index))
	for _, e := range c.index {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FetchedAt.After(out[j].FetchedAt)
	})
	return out
}

// Close saves the index, including access times, and releases the
// codecs. Closing twice is a no-op.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.decoder.Close()
	return errors.Join(c.encoder.Close(), c.saveIndex())
}

func (c *Cache) removeLocked(id string) {
	e, ok := c.index[id]
	if !ok {
		return
	}
	_ = os.Remove(e.FilePath)
	c.size -= e.Size
	delete(c.index, id)
}

func (c *Cache) evictOldest() {
	var oldest *CacheEntry
	for _, e := range c.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		c.removeLocked(oldest.ID)
		c.stats.Evictions++
	}
}

func (c *Cache) filePath(id string) string {
	hash := sha256.Sum256([]byte(id))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:16])+".json.zst")
}

// writeFile writes to a temporary file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Cache) loadIndex() error {
	f, err := os.Open(filepath.Join(c.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(&c.index)
}

func (c *Cache) saveIndex() error {
	path := filepath.Join(c.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(c.index)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
