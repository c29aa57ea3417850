// Package assetstore keeps decorated thumbnails on local disk, addressed by
// short opaque keys.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const keyExt = ".jpg"

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,59}\.jpg$`)

var (
	ErrInvalidKey = errors.New("assetstore: invalid key")
	ErrNotFound   = errors.New("assetstore: not found")
)

// NewKey returns a fresh short key such as "1f3a9c0e.jpg".
func NewKey() string {
	return uuid.NewString()[:8] + keyExt
}

// ValidKey reports whether key is a flat, filename-safe .jpg key.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Disk stores assets as files in a single directory. Writes are atomic:
// readers see either the old or the new content for a key.
type Disk struct {
	dir     string
	baseURL string
}

// NewDisk creates dir if needed. publicBaseURL is the externally reachable
// origin of the web server that serves /assets/.
func NewDisk(dir, publicBaseURL string) (*Disk, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("assetstore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assetstore: create %s: %w", dir, err)
	}
	return &Disk{
		dir:     dir,
		baseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

func (d *Disk) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(d.dir, key), nil
}

// URL returns the public URL the web server serves key under.
func (d *Disk) URL(key string) string {
	return d.baseURL + "/assets/" + key
}

// Store writes data under key, replacing any previous content.
func (d *Disk) Store(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := d.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("assetstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("assetstore: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("assetstore: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("assetstore: close %s: %w", key, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("assetstore: chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("assetstore: rename %s: %w", key, err)
	}
	return nil
}

// Read returns the stored bytes for key, or ErrNotFound.
func (d *Disk) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Delete removes key. Deleting a missing key is not an error.
func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assetstore: delete %s: %w", key, err)
	}
	return nil
}
