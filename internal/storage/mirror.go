package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/timmy/immiframe/internal/cache"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// Mirror copies each published Generation to a bucket so remote dashboards
// can read it. It is best-effort: the local publish directory stays the
// source of truth.
type Mirror struct {
	store  ObjectStorage
	prefix string
}

// NewMirror creates a mirror writing under prefix (for example "frame/").
func NewMirror(store ObjectStorage, prefix string) *Mirror {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Mirror{store: store, prefix: prefix}
}

// Key returns the object key for a published file name.
func (m *Mirror) Key(name string) string {
	return m.prefix + name
}

// URL returns the public URL of a published file name.
func (m *Mirror) URL(name string) string {
	return m.store.GetURL(m.Key(name))
}

// Publish uploads the files of manifest from dir, then deletes every other
// key under the prefix.
func (m *Mirror) Publish(ctx context.Context, dir string, manifest *domain.GenerationManifest) error {
	start := time.Now()

	type upload struct {
		name        string
		contentType string
	}
	uploads := make([]upload, 0, len(manifest.Files)+2)
	for _, f := range manifest.Files {
		uploads = append(uploads, upload{name: f.File, contentType: f.ContentType})
	}
	uploads = append(uploads,
		upload{name: cache.ThemeFile, contentType: "text/plain; charset=utf-8"},
		upload{name: cache.ManifestFile, contentType: "application/json"},
	)

	keep := make(map[string]bool, len(uploads))
	for _, u := range uploads {
		data, err := os.ReadFile(filepath.Join(dir, u.name))
		if err != nil {
			return fmt.Errorf("mirror: read %s: %w", u.name, err)
		}
		key := m.Key(u.name)
		if err := m.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), u.contentType); err != nil {
			return fmt.Errorf("mirror: upload %s: %w", key, err)
		}
		keep[key] = true
	}

	keys, err := m.store.List(ctx, m.prefix)
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	var errs []error
	removed := 0
	for _, key := range keys {
		if keep[key] {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	logger.With(logger.Fields{"removed": removed, "generation_id": manifest.ID}).
		WithCount(len(uploads)).WithDuration(time.Since(start)).
		Info(ctx, "Mirrored generation to object storage")
	if len(errs) > 0 {
		return fmt.Errorf("mirror: delete stale keys: %w", errors.Join(errs...))
	}
	return nil
}
