package fetch

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
)

const CacheFilename = "qpack_sources.json"

// Cache remembers where fetched sources live.
type Cache struct {
	// on windows: %LocalAppData%/qpack/sources
	// on linux: ~/.cache/qpack/sources
	basePath string
	// source string -> directory relative to basePath
	Sources map[string]string
}

// DefaultCacheDir returns the per-user source cache directory
func DefaultCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "qpack", "sources"), nil
}

func ParseCache(rdr io.Reader, basePath string) (*Cache, error) {
	var sources map[string]string
	if err := json.NewDecoder(bufio.NewReader(rdr)).Decode(&sources); err != nil {
		return nil, err
	}
	return &Cache{Sources: sources, basePath: basePath}, nil
}

// LoadCache reads the cache index in basePath. A missing index is an empty
// cache.
func LoadCache(basePath string) (*Cache, error) {
	f, err := os.Open(filepath.Join(basePath, CacheFilename))
	if errors.Is(err, os.ErrNotExist) {
		return &Cache{basePath: basePath}, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCache(f, basePath)
}

func (c *Cache) Save() error {
	if err := os.MkdirAll(c.basePath, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(c.basePath, CacheFilename))
	if err != nil {
		return err
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Sources); err != nil {
		return err
	}
	return bufw.Flush()
}

// Lookup returns the directory of a cached source, if it still exists
func (c *Cache) Lookup(source string) (string, bool) {
	rel, ok := c.Sources[source]
	if !ok {
		return "", false
	}
	dir := filepath.Join(c.basePath, rel)
	if _, err := os.Stat(dir); err != nil {
		return "", false
	}
	return dir, true
}

func (c *Cache) Set(source, rel string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[source] = rel
}

// Remove forgets a source and deletes its checkout
func (c *Cache) Remove(source string) (bool, error) {
	rel, ok := c.Sources[source]
	if !ok {
		return false, nil
	}
	delete(c.Sources, source)
	return true, os.RemoveAll(filepath.Join(c.basePath, rel))
}

func (c *Cache) Dir() string { return c.basePath }
