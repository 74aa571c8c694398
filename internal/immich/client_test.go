package immich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/immiframe/internal/domain"
)

const baseURL = "http://immich.test"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(&Config{BaseURL: baseURL + "/", APIKey: "k-123", Timeout: time.Second})
	httpmock.ActivateNonDefault(c.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestSearchSmart(t *testing.T) {
	c := newTestClient(t)

	var got smartSearchRequest
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/search/smart",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "k-123", req.Header.Get("x-api-key"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"assets": map[string]interface{}{
					"items": []map[string]interface{}{{"id": "a"}, {"id": "b"}, {"id": "c"}},
				},
			})
		})

	assets, err := c.SearchSmart(context.Background(), "beach", 2, Filters{City: "Lisbon", PersonIDs: []string{"p1"}})
	require.NoError(t, err)

	assert.Equal(t, "beach", got.Query)
	assert.Equal(t, 2, got.Size)
	assert.Equal(t, "IMAGE", got.Type)
	assert.Equal(t, "Lisbon", got.City)
	assert.Equal(t, []string{"p1"}, got.PersonIDs)
	assert.Nil(t, got.IsFavorite)

	require.Len(t, assets, 2)
	assert.Equal(t, "a", assets[0].ID)
	assert.Equal(t, "b", assets[1].ID)
}

func TestSearchErrorsAreSourceUnavailable(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/search/random",
		httpmock.NewJsonResponderOrPanic(http.StatusInternalServerError, map[string]string{"message": "boom"}))
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/search/smart",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.SearchRandom(context.Background(), 3, Filters{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "boom")

	_, err = c.SearchSmart(context.Background(), "x", 3, Filters{})
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
}

func TestSearchRandomFavorites(t *testing.T) {
	c := newTestClient(t)

	var got map[string]interface{}
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/search/random",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			return httpmock.NewJsonResponse(http.StatusOK, []map[string]string{{"id": "r1"}})
		})

	assets, err := c.SearchRandom(context.Background(), 5, Filters{FavoritesOnly: true, AlbumIDs: []string{"al"}})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, true, got["isFavorite"])
	assert.Equal(t, []interface{}{"al"}, got["albumIds"])
	assert.NotContains(t, got, "withPeople")
}

func TestMemoriesOnDate(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/api/memories",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "on_this_day", req.URL.Query().Get("type"))
			assert.Contains(t, req.URL.Query().Get("for"), "2025-03-14T00:00:00")
			return httpmock.NewJsonResponse(http.StatusOK, []map[string]interface{}{
				{"id": "m1", "data": map[string]int{"year": 2019}, "assets": []map[string]string{{"id": "x"}}},
			})
		})

	memories, err := c.MemoriesOnDate(context.Background(), time.Date(2025, 3, 14, 17, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, 2019, memories[0].Data.Year)
	assert.Equal(t, "x", memories[0].Assets[0].ID)
}

func TestFetchReducedFallsBackToPreview(t *testing.T) {
	tests := []struct {
		name      string
		thumb     httpmock.Responder
		wantBytes string
		wantErr   bool
	}{
		{
			name:      "thumbnail ok",
			thumb:     httpmock.NewBytesResponder(http.StatusOK, []byte("thumb")),
			wantBytes: "thumb",
		},
		{
			name:      "thumbnail missing",
			thumb:     httpmock.NewStringResponder(http.StatusNotFound, ""),
			wantBytes: "preview",
		},
		{
			name:      "thumbnail empty",
			thumb:     httpmock.NewBytesResponder(http.StatusOK, nil),
			wantBytes: "preview",
		},
		{
			name:    "server error is not retried",
			thumb:   httpmock.NewStringResponder(http.StatusBadGateway, ""),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t)
			url := baseURL + "/api/assets/a1/thumbnail"
			httpmock.RegisterResponderWithQuery(http.MethodGet, url, "size=thumbnail", tt.thumb)
			httpmock.RegisterResponderWithQuery(http.MethodGet, url, "size=preview",
				httpmock.NewBytesResponder(http.StatusOK, []byte("preview")))

			data, _, err := c.FetchReduced(context.Background(), "a1")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrAssetFetch))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBytes, string(data))
		})
	}
}

func TestPeopleCachedAndResolved(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/api/people",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"people": []map[string]string{{"id": "p1", "name": "Alice"}, {"id": "p2", "name": "Bob"}, {"id": "p3", "name": ""}},
		}))

	ids, err := c.ResolvePeople(context.Background(), []string{"Alice", "Carol", " Bob "})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	_, err = c.People(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
