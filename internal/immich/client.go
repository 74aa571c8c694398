package immich

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

const (
	assetTypeImage = "IMAGE"
	peopleCacheKey = "people"

	// SizeThumbnail and SizePreview are the reduced renditions Immich serves.
	SizeThumbnail = "thumbnail"
	SizePreview   = "preview"
)

// Config holds connection settings for an Immich server.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	PeopleCacheTTL time.Duration
}

// Client talks to the Immich REST API. The API key travels in the x-api-key
// header and is never logged.
type Client struct {
	client *resty.Client
	people *cache.Cache
}

// NewClient creates an Immich client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := cfg.PeopleCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("x-api-key", cfg.APIKey)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(timeout)

	return &Client{
		client: client,
		people: cache.New(ttl, 2*ttl),
	}
}

// Ping checks that the server is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var resp pingResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetResult(&resp).
		Get("/api/server/ping")
	if err := checkResponse("ping", httpResp, err); err != nil {
		return err
	}
	if resp.Res != "pong" {
		return fmt.Errorf("%w: ping: unexpected reply %q", domain.ErrSourceUnavailable, resp.Res)
	}

	// Ping is unauthenticated; the people list proves the key works.
	_, err = c.People(ctx)
	return err
}

// SearchSmart runs a semantic search and returns at most limit assets in
// backend order.
func (c *Client) SearchSmart(ctx context.Context, query string, limit int, f Filters) ([]Asset, error) {
	req := smartSearchRequest{
		Query:       query,
		Size:        limit,
		Type:        assetTypeImage,
		PersonIDs:   f.PersonIDs,
		AlbumIDs:    f.AlbumIDs,
		City:        f.City,
		TakenAfter:  f.TakenAfter,
		TakenBefore: f.TakenBefore,
		IsFavorite:  favoriteFilter(f.FavoritesOnly),
	}

	var resp smartSearchResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&errorResponse{}).
		Post("/api/search/smart")
	if err := checkResponse("smart search", httpResp, err); err != nil {
		return nil, err
	}

	items := resp.Assets.Items
	if len(items) > limit {
		items = items[:limit]
	}
	logger.CtxDebug(ctx, "Smart search %q returned %d assets", query, len(items))
	return items, nil
}

// SearchRandom returns up to count random images matching the filters.
func (c *Client) SearchRandom(ctx context.Context, count int, f Filters) ([]Asset, error) {
	req := randomSearchRequest{
		Size:        count,
		Type:        assetTypeImage,
		WithPeople:  len(f.PersonIDs) > 0,
		PersonIDs:   f.PersonIDs,
		AlbumIDs:    f.AlbumIDs,
		City:        f.City,
		TakenAfter:  f.TakenAfter,
		TakenBefore: f.TakenBefore,
		IsFavorite:  favoriteFilter(f.FavoritesOnly),
	}

	var assets []Asset
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&assets).
		SetError(&errorResponse{}).
		Post("/api/search/random")
	if err := checkResponse("random search", httpResp, err); err != nil {
		return nil, err
	}

	if len(assets) > count {
		assets = assets[:count]
	}
	logger.CtxDebug(ctx, "Random search returned %d assets", len(assets))
	return assets, nil
}

// MemoriesOnDate returns the on-this-day memories for the calendar day of date.
func (c *Client) MemoriesOnDate(ctx context.Context, date time.Time) ([]Memory, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var memories []Memory
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("for", day.Format(time.RFC3339)).
		SetQueryParam("type", "on_this_day").
		SetResult(&memories).
		SetError(&errorResponse{}).
		Get("/api/memories")
	if err := checkResponse("memories", httpResp, err); err != nil {
		return nil, err
	}
	return memories, nil
}

// FetchReduced downloads the thumbnail rendition of an asset, falling back to
// the preview rendition when the thumbnail is missing or empty. The bytes are
// returned as received.
func (c *Client) FetchReduced(ctx context.Context, id string) ([]byte, string, error) {
	data, contentType, status, err := c.fetchRendition(ctx, id, SizeThumbnail)
	if err == nil && len(data) > 0 {
		return data, contentType, nil
	}
	if err != nil && status != http.StatusNotFound {
		return nil, "", err
	}

	logger.CtxDebug(ctx, "Thumbnail missing for asset %s, trying preview", id)
	data, contentType, _, err = c.fetchRendition(ctx, id, SizePreview)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: asset %s: empty rendition", domain.ErrAssetFetch, id)
	}
	return data, contentType, nil
}

func (c *Client) fetchRendition(ctx context.Context, id, size string) ([]byte, string, int, error) {
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		SetPathParam("id", id).
		SetQueryParam("size", size).
		Get("/api/assets/{id}/thumbnail")
	if err != nil {
		return nil, "", 0, fmt.Errorf("%w: asset %s (%s): %v", domain.ErrAssetFetch, id, size, err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return nil, "", httpResp.StatusCode(), fmt.Errorf("%w: asset %s (%s): status %d",
			domain.ErrAssetFetch, id, size, httpResp.StatusCode())
	}
	return httpResp.Body(), httpResp.Header().Get("Content-Type"), httpResp.StatusCode(), nil
}

// People returns person name -> ID, cached for the configured TTL.
func (c *Client) People(ctx context.Context) (map[string]string, error) {
	if cached, ok := c.people.Get(peopleCacheKey); ok {
		return cached.(map[string]string), nil
	}

	var resp peopleResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetResult(&resp).
		SetError(&errorResponse{}).
		Get("/api/people")
	if err := checkResponse("people", httpResp, err); err != nil {
		return nil, err
	}

	people := make(map[string]string, len(resp.People))
	for _, p := range resp.People {
		if p.Name != "" {
			people[p.Name] = p.ID
		}
	}
	c.people.SetDefault(peopleCacheKey, people)
	logger.CtxInfo(ctx, "Retrieved %d people from Immich", len(people))
	return people, nil
}

// ResolvePeople maps names to person IDs. Unknown names are logged and skipped.
func (c *Client) ResolvePeople(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	people, err := c.People(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := people[strings.TrimSpace(name)]
		if !ok {
			logger.CtxWarn(ctx, "Person %q not found in Immich, ignoring", name)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func favoriteFilter(only bool) *bool {
	if !only {
		return nil
	}
	return &only
}

// checkResponse maps transport errors and non-2xx replies to ErrSourceUnavailable.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, op, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		if e, ok := resp.Error().(*errorResponse); ok && e.Message != "" {
			return fmt.Errorf("%w: %s: status %d: %s", domain.ErrSourceUnavailable, op, resp.StatusCode(), e.Message)
		}
		return fmt.Errorf("%w: %s: status %d", domain.ErrSourceUnavailable, op, resp.StatusCode())
	}
	return nil
}
