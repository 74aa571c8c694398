package domain

import "time"

// Generation is one atomically published set of cached assets plus theme text.
type Generation struct {
	ID        string
	Theme     Theme
	Assets    []CachedAsset
	CreatedAt time.Time
}

// GenerationManifest is the on-disk description of the current Generation.
type GenerationManifest struct {
	ID        string          `json:"id"`
	Theme     Theme           `json:"theme"`
	CreatedAt time.Time       `json:"created_at"`
	Files     []ManifestEntry `json:"files"`
}

// ManifestEntry describes one published ordinal file.
type ManifestEntry struct {
	Ordinal     int    `json:"ordinal"`
	AssetID     string `json:"asset_id"`
	File        string `json:"file"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
}
