package immich

import "time"

// Asset is the subset of an Immich asset response the frame needs.
type Asset struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	OriginalFileName string    `json:"originalFileName"`
	FileCreatedAt    time.Time `json:"fileCreatedAt"`
	LocalDateTime    time.Time `json:"localDateTime"`
	IsFavorite       bool      `json:"isFavorite"`
}

// TakenAt prefers the local capture time and falls back to file creation.
func (a Asset) TakenAt() time.Time {
	if !a.LocalDateTime.IsZero() {
		return a.LocalDateTime
	}
	return a.FileCreatedAt
}

// Memory is an on-this-day memory: the assets of one past year.
type Memory struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	MemoryAt time.Time  `json:"memoryAt"`
	Data     MemoryData `json:"data"`
	Assets   []Asset    `json:"assets"`
}

type MemoryData struct {
	Year int `json:"year"`
}

// Filters narrow search and random queries.
type Filters struct {
	PersonIDs     []string
	AlbumIDs      []string
	City          string
	TakenAfter    *time.Time
	TakenBefore   *time.Time
	FavoritesOnly bool
}

type smartSearchRequest struct {
	Query       string     `json:"query"`
	Size        int        `json:"size"`
	Type        string     `json:"type"`
	PersonIDs   []string   `json:"personIds,omitempty"`
	AlbumIDs    []string   `json:"albumIds,omitempty"`
	City        string     `json:"city,omitempty"`
	TakenAfter  *time.Time `json:"takenAfter,omitempty"`
	TakenBefore *time.Time `json:"takenBefore,omitempty"`
	IsFavorite  *bool      `json:"isFavorite,omitempty"`
}

type smartSearchResponse struct {
	Assets struct {
		Items    []Asset `json:"items"`
		NextPage *string `json:"nextPage"`
	} `json:"assets"`
}

type randomSearchRequest struct {
	Size        int        `json:"size"`
	Type        string     `json:"type"`
	WithPeople  bool       `json:"withPeople,omitempty"`
	PersonIDs   []string   `json:"personIds,omitempty"`
	AlbumIDs    []string   `json:"albumIds,omitempty"`
	City        string     `json:"city,omitempty"`
	TakenAfter  *time.Time `json:"takenAfter,omitempty"`
	TakenBefore *time.Time `json:"takenBefore,omitempty"`
	IsFavorite  *bool      `json:"isFavorite,omitempty"`
}

type peopleResponse struct {
	Total  int `json:"total"`
	People []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"people"`
}

type pingResponse struct {
	Res string `json:"res"`
}

type errorResponse struct {
	Message string `json:"message"`
}
