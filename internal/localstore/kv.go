// Package localstore keeps site data as JSON files in a single directory, the
// server-side counterpart of the browser's localStorage.
package localstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrQuotaExceeded is returned by Set when the directory would outgrow its quota.
var ErrQuotaExceeded = errors.New("local storage quota exceeded")

const fileSuffix = ".json"

// KV is a directory of keyed JSON values. Writes are atomic per key.
type KV struct {
	dir   string
	quota int

	mu sync.Mutex
}

// NewKV creates dir if needed. A quota of zero or less disables the quota check.
func NewKV(dir string, quota int) (*KV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &KV{dir: dir, quota: quota}, nil
}

func (kv *KV) Dir() string {
	return kv.dir
}

// Quota is the byte budget of the directory; zero or less means unlimited.
func (kv *KV) Quota() int {
	return kv.quota
}

func (kv *KV) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(kv.dir, key+fileSuffix), nil
}

// Get returns the value under key and whether it exists.
func (kv *KV) Get(key string) ([]byte, bool, error) {
	path, err := kv.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

// Set replaces the value under key.
func (kv *KV) Set(key string, value []byte) error {
	path, err := kv.path(key)
	if err != nil {
		return err
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.quota > 0 {
		used, err := kv.usage(key)
		if err != nil {
			return err
		}
		if used+len(value) > kv.quota {
			return fmt.Errorf("set %s (%d bytes, %d in use): %w", key, len(value), used, ErrQuotaExceeded)
		}
	}

	tmp, err := os.CreateTemp(kv.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (kv *KV) Remove(key string) error {
	path, err := kv.path(key)
	if err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in sorted order.
func (kv *KV) Keys() ([]string, error) {
	entries, err := os.ReadDir(kv.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if key, ok := keyOf(entry.Name()); ok && !entry.IsDir() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// usage sums the size of every stored value except skip.
func (kv *KV) usage(skip string) (int, error) {
	entries, err := os.ReadDir(kv.dir)
	if err != nil {
		return 0, fmt.Errorf("read data dir: %w", err)
	}
	total := 0
	for _, entry := range entries {
		key, ok := keyOf(entry.Name())
		if !ok || key == skip || entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		total += int(info.Size())
	}
	return total, nil
}

func keyOf(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	return strings.TrimSuffix(name, fileSuffix), true
}
