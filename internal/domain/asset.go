package domain

import "time"

// AssetDescriptor identifies one remote asset chosen for a run.
type AssetDescriptor struct {
	ID       string    `json:"id"`
	Ordinal  int       `json:"ordinal"`             // 1..N, assigned after selection
	Year     int       `json:"year,omitempty"`      // capture year hint
	TakenAt  time.Time `json:"taken_at,omitempty"`  // capture time hint
	FileName string    `json:"file_name,omitempty"` // original file name, informational
}

// CachedAsset holds the fetched bytes for one descriptor until it is committed.
type CachedAsset struct {
	Ordinal     int
	AssetID     string
	Data        []byte
	ContentType string
}

// Size returns the payload length in bytes.
func (a CachedAsset) Size() int {
	return len(a.Data)
}

// AssignOrdinals numbers descriptors 1..len in their current order.
func AssignOrdinals(assets []AssetDescriptor) []AssetDescriptor {
	for i := range assets {
		assets[i].Ordinal = i + 1
	}
	return assets
}
