// Package cache implements the content-addressed response cache. A response
// is keyed by a deterministic fingerprint of the request that produced it and
// stored as one JSON file per key. Entries expire lazily: an expired entry is
// deleted when a read finds it, never by a background sweep.
//
// The cache is an optimization, not a correctness dependency. Every failure
// mode degrades to a miss or a dropped write; nothing here returns an error
// to the hot path.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/crucible/internal/observability"
	"github.com/haasonsaas/crucible/pkg/models"
)

// DefaultTTL is how long entries stay valid without explicit configuration.
const DefaultTTL = 24 * time.Hour

// displayKeyLen is how much of a fingerprint appears in logs and stats.
const displayKeyLen = 16

// Fingerprint returns the sha-256 hex digest of the request's canonical JSON
// serialization. Every field that affects provider output participates:
// provider, model, the exact message sequence, temperature, and max tokens.
// Identical requests always collide; differing ones never do.
func Fingerprint(req *models.CompletionRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		// CompletionRequest contains only marshalable fields; this path is
		// unreachable with well-formed input.
		data = []byte(fmt.Sprintf("%#v", req))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DisplayKey shortens a fingerprint for human consumption.
func DisplayKey(fingerprint string) string {
	if len(fingerprint) <= displayKeyLen {
		return fingerprint
	}
	return fingerprint[:displayKeyLen]
}

// entry is the on-disk shape: the write time in epoch milliseconds plus the
// response exactly as the provider returned it.
type entry struct {
	Timestamp int64                    `json:"timestamp"`
	Response  *models.CompletionResult `json:"response"`
}

// Options configures a Cache.
type Options struct {
	// Dir is the directory holding one file per entry.
	Dir string
	// TTL bounds entry age; zero or negative selects DefaultTTL.
	TTL time.Duration
	// Enabled turns the cache off entirely when false: every Get misses and
	// every Put is dropped.
	Enabled bool
	// Logger receives swallowed I/O errors. May be nil.
	Logger *observability.Logger
}

// Cache is the file-backed response store. Safe for concurrent use: distinct
// fingerprints touch distinct files, and identical fingerprints tolerate
// last-write-wins races because both writers hold identical content.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	logger  *observability.Logger
}

// New creates the cache and its directory. Directory creation failure
// disables the cache rather than failing the caller.
func New(opts Options) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		dir:     opts.Dir,
		ttl:     ttl,
		enabled: opts.Enabled,
		logger:  opts.Logger,
	}
	if c.enabled {
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			c.logf("cache disabled: cannot create directory", "dir", c.dir, "error", err)
			c.enabled = false
		}
	}
	return c
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Get returns the cached response for a fingerprint, or absent. Absent covers
// a missing file, a malformed file, and an entry older than the TTL; expired
// entries are removed on the way out.
func (c *Cache) Get(key string) (*models.CompletionResult, bool) {
	return c.GetAt(key, time.Now())
}

// GetAt is Get with an explicit clock, for tests.
func (c *Cache) GetAt(key string, now time.Time) (*models.CompletionResult, bool) {
	if !c.enabled || key == "" {
		return nil, false
	}

	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Response == nil {
		c.logf("ignoring malformed cache entry", "key", DisplayKey(key), "error", err)
		return nil, false
	}

	if now.UnixMilli()-e.Timestamp > c.ttl.Milliseconds() {
		if err := os.Remove(path); err != nil {
			c.logf("failed to remove expired cache entry", "key", DisplayKey(key), "error", err)
		}
		return nil, false
	}

	return e.Response, true
}

// Put persists a response under its fingerprint, best effort. Write failures
// are logged and swallowed.
func (c *Cache) Put(key string, result *models.CompletionResult) {
	c.PutAt(key, result, time.Now())
}

// PutAt is Put with an explicit clock, for tests.
func (c *Cache) PutAt(key string, result *models.CompletionResult, now time.Time) {
	if !c.enabled || key == "" || result == nil {
		return
	}

	data, err := json.Marshal(entry{Timestamp: now.UnixMilli(), Response: result})
	if err != nil {
		c.logf("failed to encode cache entry", "key", DisplayKey(key), "error", err)
		return
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		c.logf("failed to write cache entry", "key", DisplayKey(key), "error", err)
	}
}

// Stats describes the cache's disk footprint.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Stats counts entries and their total size. Unreadable files are skipped.
func (c *Cache) Stats() Stats {
	var s Stats
	for _, name := range c.entryFiles() {
		info, err := os.Stat(filepath.Join(c.dir, name))
		if err != nil {
			continue
		}
		s.Entries++
		s.Bytes += info.Size()
	}
	return s
}

// Clear removes every entry and reports how many were deleted.
func (c *Cache) Clear() (int, error) {
	var removed int
	var firstErr error
	for _, name := range c.entryFiles() {
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

func (c *Cache) entryFiles() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		names = append(names, de.Name())
	}
	return names
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) logf(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(context.Background(), msg, args...)
	}
}
