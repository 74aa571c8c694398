// Package cache publishes Generations into the directory the dashboard reads.
// Readers never see a mix of two Generations' files except during the short
// rename sequence at the end of Commit.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

const (
	// ThemeFile holds the theme text of the current Generation.
	ThemeFile = "theme.txt"
	// ManifestFile describes the current Generation.
	ManifestFile = "generation.json"

	stagingPrefix = ".staging-"
)

// Options configures a Store.
type Options struct {
	Dir        string
	FilePrefix string
	FileExt    string
	GapPolicy  string
}

// Store owns the publish directory.
type Store struct {
	mu        sync.Mutex
	dir       string
	prefix    string
	ext       string
	gapPolicy string
	ordinalRe *regexp.Regexp
}

// NewStore prepares the publish directory. The directory is created when
// missing, but its parent must exist.
func NewStore(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: cache directory is required", domain.ErrInvalidConfig)
	}
	if opts.FileExt == "" {
		opts.FileExt = "jpg"
	}
	if opts.GapPolicy == "" {
		opts.GapPolicy = config.GapPolicyRenumber
	}

	dir := filepath.Clean(opts.Dir)
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: cache path %s is not a directory", domain.ErrInvalidConfig, dir)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		parent := filepath.Dir(dir)
		if _, perr := os.Stat(parent); perr != nil {
			return nil, fmt.Errorf("%w: parent of cache path %s does not exist", domain.ErrInvalidConfig, dir)
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat cache directory: %w", err)
	}

	return &Store{
		dir:       dir,
		prefix:    opts.FilePrefix,
		ext:       opts.FileExt,
		gapPolicy: opts.GapPolicy,
		ordinalRe: regexp.MustCompile("^" + regexp.QuoteMeta(opts.FilePrefix) + `(\d+)\.` + regexp.QuoteMeta(opts.FileExt) + "$"),
	}, nil
}

// Dir returns the publish directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the visible file name for an ordinal.
func (s *Store) FileName(ordinal int) string {
	return s.prefix + strconv.Itoa(ordinal) + "." + s.ext
}

// Recover removes staging directories left behind by an interrupted commit.
func (s *Store) Recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove stale staging dir %s: %w", e.Name(), err)
		}
		logger.Warn("Removed stale staging directory %s", e.Name())
	}
	return nil
}

// Current returns the manifest of the published Generation, or nil when
// nothing has been published yet.
func (s *Store) Current() (*domain.GenerationManifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m domain.GenerationManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

type stagedFile struct {
	name  string
	entry domain.ManifestEntry
}

// Commit publishes gen. Everything is written and verified in a staging
// directory first; any failure before the swap leaves the previous Generation
// untouched. Committing the same Generation twice yields the same files.
func (s *Store) Commit(ctx context.Context, gen domain.Generation) (*domain.GenerationManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(gen.Assets) == 0 {
		return nil, fmt.Errorf("%w: generation %s has no assets", domain.ErrCommit, gen.ID)
	}

	assets, err := s.placeAssets(gen.Assets)
	if err != nil {
		return nil, err
	}

	stage, err := os.MkdirTemp(s.dir, stagingPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %v", domain.ErrCommit, err)
	}
	defer os.RemoveAll(stage)

	staged := make([]stagedFile, 0, len(assets))
	for _, a := range assets {
		contentType, err := VerifyImage(a.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: asset %s (slot %d): %v", domain.ErrCommit, a.AssetID, a.Ordinal, err)
		}
		name := s.FileName(a.Ordinal)
		if err := writeFileSync(filepath.Join(stage, name), a.Data); err != nil {
			return nil, fmt.Errorf("%w: stage %s: %v", domain.ErrCommit, name, err)
		}
		staged = append(staged, stagedFile{name: name, entry: domain.ManifestEntry{
			Ordinal:     a.Ordinal,
			AssetID:     a.AssetID,
			File:        name,
			Size:        a.Size(),
			ContentType: contentType,
		}})
	}

	manifest := &domain.GenerationManifest{
		ID:        gen.ID,
		Theme:     gen.Theme,
		CreatedAt: gen.CreatedAt,
		Files:     make([]domain.ManifestEntry, len(staged)),
	}
	for i, f := range staged {
		manifest.Files[i] = f.entry
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode manifest: %v", domain.ErrCommit, err)
	}

	if err := writeFileSync(filepath.Join(stage, ThemeFile), []byte(gen.Theme.Text+"\n")); err != nil {
		return nil, fmt.Errorf("%w: stage theme: %v", domain.ErrCommit, err)
	}
	if err := writeFileSync(filepath.Join(stage, ManifestFile), manifestData); err != nil {
		return nil, fmt.Errorf("%w: stage manifest: %v", domain.ErrCommit, err)
	}
	syncDir(stage)

	// last point where the commit can be abandoned cleanly
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: aborted before swap: %v", domain.ErrCommit, err)
	}

	keep := make(map[string]bool, len(staged))
	names := make([]string, 0, len(staged)+2)
	for _, f := range staged {
		keep[f.name] = true
		names = append(names, f.name)
	}
	names = append(names, ThemeFile, ManifestFile)

	for _, name := range names {
		if err := os.Rename(filepath.Join(stage, name), filepath.Join(s.dir, name)); err != nil {
			return nil, fmt.Errorf("%w: publish %s: %v", domain.ErrCommit, name, err)
		}
	}

	removed, err := s.removeStale(keep)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to remove stale cache files: %v", err)
	}
	syncDir(s.dir)

	logger.With(logger.Fields{"generation_id": gen.ID, "removed": removed}).WithCount(len(staged)).
		Info(ctx, "Published generation with %d files", len(staged))
	return manifest, nil
}

// placeAssets orders assets by ordinal and applies the gap policy.
func (s *Store) placeAssets(in []domain.CachedAsset) ([]domain.CachedAsset, error) {
	assets := make([]domain.CachedAsset, len(in))
	copy(assets, in)
	sort.SliceStable(assets, func(i, j int) bool { return assets[i].Ordinal < assets[j].Ordinal })

	switch s.gapPolicy {
	case config.GapPolicyOmit:
		seen := make(map[int]bool, len(assets))
		for _, a := range assets {
			if a.Ordinal <= 0 || seen[a.Ordinal] {
				return nil, fmt.Errorf("%w: invalid or duplicate ordinal %d", domain.ErrCommit, a.Ordinal)
			}
			seen[a.Ordinal] = true
		}
	default:
		for i := range assets {
			assets[i].Ordinal = i + 1
		}
	}
	return assets, nil
}

// removeStale deletes visible ordinal files that are not part of keep.
func (s *Store) removeStale(keep map[string]bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || keep[e.Name()] || !s.ordinalRe.MatchString(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes directory entries. Not every filesystem supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
