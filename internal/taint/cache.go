package taint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheVersion is bumped whenever the entry format changes; entries written
// by other versions are treated as misses.
const cacheVersion = "1"

// CacheKey identifies one persisted summary. IRHash and RulesHash pin the
// entry to the exact program and rule set it was computed for; CalleeHashes
// pin it to the callee summaries it was computed against, so an entry goes
// stale the moment any callee result changes.
type CacheKey struct {
	Fn           string   `json:"fn"`
	Shape        string   `json:"shape"`
	IRHash       string   `json:"irHash"`
	RulesHash    string   `json:"rulesHash,omitempty"`
	CalleeHashes []string `json:"calleeHashes,omitempty"`
}

func (k CacheKey) hash() string {
	data, _ := json.Marshal(k)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

type cacheEntry struct {
	Key       CacheKey  `json:"key"`
	Summary   *Summary  `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Cache persists function summaries across runs as JSON files, one per
// (function, input shape, program, rules) combination. All methods are safe
// for concurrent use; a cache that failed to initialize degrades to a no-op.
type Cache struct {
	dir     string
	enabled bool

	mu     sync.Mutex
	hits   int
	misses int
}

// NewCache opens a cache rooted at dir. An empty dir selects
// $SYMFLOW_CACHE_DIR, falling back to $HOME/.cache/symflow/summaries.
func NewCache(dir string) *Cache {
	if dir == "" {
		dir = os.Getenv("SYMFLOW_CACHE_DIR")
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return &Cache{}
		}
		dir = filepath.Join(home, ".cache", "symflow", "summaries")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		warnf("summary cache disabled: %v", err)
		return &Cache{}
	}
	return &Cache{dir: dir, enabled: true}
}

// Get returns the persisted summary for key, if one exists and is still
// valid for the key's IR, rules, and callee hashes.
func (c *Cache) Get(key CacheKey) (*Summary, bool) {
	if !c.enabled {
		return nil, false
	}

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		c.miss()
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.miss()
		return nil, false
	}
	if entry.Version != cacheVersion || entry.Summary == nil {
		c.miss()
		return nil, false
	}
	if entry.Key.IRHash != key.IRHash || entry.Key.RulesHash != key.RulesHash {
		c.miss()
		return nil, false
	}
	if !stringsEqual(entry.Key.CalleeHashes, key.CalleeHashes) {
		c.miss()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	debugf("summary cache hit for %s", key.Fn)
	return entry.Summary, true
}

// Put persists a summary. Write failures are silent; the cache is an
// optimization, never a correctness dependency.
func (c *Cache) Put(key CacheKey, s *Summary) {
	if !c.enabled {
		return
	}
	data, err := json.MarshalIndent(cacheEntry{
		Key:       key,
		Summary:   s,
		Timestamp: time.Now(),
		Version:   cacheVersion,
	}, "", "  ")
	if err != nil {
		return
	}
	path := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600)
}

func (c *Cache) entryPath(key CacheKey) string {
	return filepath.Join(c.dir, key.hash()+".json")
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear removes every persisted entry.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

func (c *Cache) miss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// summaryHash fingerprints a summary's content for callee-hash invalidation.
func summaryHash(s *Summary) string {
	data, _ := json.Marshal(s)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
