// Package cache is a file-based store for language-model responses. Entries
// are keyed by the SHA-256 of "model:prompt", expire after a TTL, and are
// shared safely between processes through a directory lock.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = 24 * time.Hour

// MaxResponseSize caps the characters of a stored response.
const MaxResponseSize = 50000

// TruncationNote is appended to responses cut at MaxResponseSize.
const TruncationNote = "\n\n[Response truncated for caching...]"

const (
	entryExt = ".json"
	lockName = ".cache.lock"
)

// Entry is the on-disk form of one cached response.
type Entry struct {
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarizes the cache directory.
type Stats struct {
	TotalEntries   int     `json:"total_entries"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
	CacheDir       string  `json:"cache_dir"`
}

// Cache is a prompt/response cache rooted at a directory.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time

	// mu serializes goroutines; lock serializes processes.
	mu   sync.Mutex
	lock *flock.Flock

	debugLog func(format string, args ...interface{})
}

// New creates the cache directory if needed. A non-positive ttl uses DefaultTTL.
func New(dir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{
		dir:      dir,
		ttl:      ttl,
		lock:     flock.New(filepath.Join(dir, lockName)),
		now:      time.Now,
		debugLog: func(format string, args ...interface{}) {},
	}, nil
}

// SetDebugLog sets the debug logging function.
func (c *Cache) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.debugLog = fn
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key returns the entry key for a model and prompt.
func Key(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + ":" + prompt))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}

// Get returns the cached response for prompt, or false on a miss. Expired
// entries are removed. An entry whose prompt carries different context
// markers than the current prompt is treated as a miss.
func (c *Cache) Get(model, prompt string) (string, bool) {
	path := c.path(Key(model, prompt))

	c.mu.Lock()
	if err := c.lock.RLock(); err != nil {
		c.mu.Unlock()
		c.debugLog("[cache] read lock: %v", err)
		return "", false
	}
	entry, err := readEntry(path)
	c.lock.Unlock()
	c.mu.Unlock()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.debugLog("[cache] read %s: %v", filepath.Base(path), err)
		}
		return "", false
	}

	if c.now().Sub(entry.Timestamp) > c.ttl {
		c.remove(path)
		return "", false
	}
	if !Relevant(prompt, entry.Prompt) {
		c.debugLog("[cache] entry found but not relevant: %s", preview(prompt))
		return "", false
	}
	c.debugLog("[cache] hit: %s", preview(prompt))
	return entry.Response, true
}

// Set stores response for prompt, truncating it at MaxResponseSize.
func (c *Cache) Set(model, prompt, response string) error {
	if len(response) > MaxResponseSize {
		response = models.TruncateUTF8(response, MaxResponseSize) + TruncationNote
	}
	data, err := json.MarshalIndent(Entry{
		Prompt:    prompt,
		Response:  response,
		Model:     model,
		Timestamp: c.now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	return atomicWrite(c.path(Key(model, prompt)), data)
}

// ClearExpired removes expired and unreadable entries and returns how many
// were removed.
func (c *Cache) ClearExpired() (int, error) {
	if err := c.acquire(); err != nil {
		return 0, err
	}
	defer c.release()

	paths, err := c.entries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range paths {
		entry, err := readEntry(p)
		if err == nil && c.now().Sub(entry.Timestamp) <= c.ttl {
			continue
		}
		if os.Remove(p) == nil {
			removed++
		}
	}
	if removed > 0 {
		c.debugLog("[cache] removed %d expired entries", removed)
	}
	return removed, nil
}

// ClearAll removes every entry and returns how many were removed.
func (c *Cache) ClearAll() (int, error) {
	if err := c.acquire(); err != nil {
		return 0, err
	}
	defer c.release()

	paths, err := c.entries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range paths {
		if os.Remove(p) == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats counts entries and their total size.
func (c *Cache) Stats() (Stats, error) {
	paths, err := c.entries()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{TotalEntries: len(paths), CacheDir: c.dir}
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			st.TotalSizeBytes += info.Size()
		}
	}
	mb := float64(st.TotalSizeBytes) / (1024 * 1024)
	st.TotalSizeMB = float64(int(mb*100+0.5)) / 100
	return st, nil
}

func (c *Cache) entries() ([]string, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}
	var paths []string
	for _, d := range dirents {
		if !d.IsDir() && strings.HasSuffix(d.Name(), entryExt) {
			paths = append(paths, filepath.Join(c.dir, d.Name()))
		}
	}
	return paths, nil
}

func (c *Cache) remove(path string) {
	if err := c.acquire(); err != nil {
		return
	}
	defer c.release()
	os.Remove(path)
}

func (c *Cache) acquire() error {
	c.mu.Lock()
	if err := c.lock.Lock(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("lock cache: %w", err)
	}
	return nil
}

func (c *Cache) release() {
	c.lock.Unlock()
	c.mu.Unlock()
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}

// atomicWrite writes through a temp file and rename so readers never see
// a partial entry.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func preview(prompt string) string {
	if len(prompt) > 50 {
		return prompt[:50] + "..."
	}
	return prompt
}
