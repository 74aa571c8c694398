package selection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/immich"
)

type fakeSource struct {
	smart      []immich.Asset
	random     []immich.Asset
	memories   []immich.Memory
	err        error
	lastQuery  string
	lastLimit  int
	lastFilter immich.Filters
	lastDate   time.Time
}

func (f *fakeSource) SearchSmart(_ context.Context, q string, limit int, flt immich.Filters) ([]immich.Asset, error) {
	f.lastQuery, f.lastLimit, f.lastFilter = q, limit, flt
	if f.err != nil {
		return nil, f.err
	}
	return f.smart, nil
}

func (f *fakeSource) SearchRandom(_ context.Context, count int, flt immich.Filters) ([]immich.Asset, error) {
	f.lastFilter = flt
	if f.err != nil {
		return nil, f.err
	}
	return head(f.random, count), nil
}

func (f *fakeSource) MemoriesOnDate(_ context.Context, d time.Time) ([]immich.Memory, error) {
	f.lastDate = d
	if f.err != nil {
		return nil, f.err
	}
	return f.memories, nil
}

func head(a []immich.Asset, n int) []immich.Asset {
	if len(a) > n {
		return a[:n]
	}
	return a
}

type fakePeople map[string]string

func (f fakePeople) ResolvePeople(_ context.Context, names []string) ([]string, error) {
	var ids []string
	for _, n := range names {
		if id, ok := f[n]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func assets(ids ...string) []immich.Asset {
	out := make([]immich.Asset, len(ids))
	for i, id := range ids {
		out[i] = immich.Asset{ID: id}
	}
	return out
}

func descriptors(ids ...string) []domain.AssetDescriptor {
	out := make([]domain.AssetDescriptor, len(ids))
	for i, id := range ids {
		out[i] = domain.AssetDescriptor{ID: id}
	}
	return out
}

func ids(ds []domain.AssetDescriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func TestSearchKeepsBackendOrder(t *testing.T) {
	src := &fakeSource{smart: assets("c", "a", "a", "b", "d")}
	filters := NewFilterBuilder(config.SelectionFilter{People: []string{"Alice", "Zed"}, City: "Porto"}, fakePeople{"Alice": "p1"})
	s := NewSearchStrategy(src, filters)

	got, err := s.Select(context.Background(), &domain.Theme{Text: "harbour"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(got))
	assert.Equal(t, "harbour", src.lastQuery)
	assert.Equal(t, []string{"p1"}, src.lastFilter.PersonIDs)
	assert.Equal(t, "Porto", src.lastFilter.City)
}

func TestSearchShortfallAndErrors(t *testing.T) {
	src := &fakeSource{smart: assets("x")}
	s := NewSearchStrategy(src, nil)

	got, err := s.Select(context.Background(), &domain.Theme{Text: "rare"}, 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Select(context.Background(), &domain.Theme{Text: "  "}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	src.err = fmt.Errorf("%w: status 503", domain.ErrSourceUnavailable)
	_, err = s.Select(context.Background(), &domain.Theme{Text: "rare"}, 5)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
}

func TestRandomUsesFilters(t *testing.T) {
	src := &fakeSource{random: assets("r1", "r2")}
	s := NewRandomStrategy(src, NewFilterBuilder(config.SelectionFilter{FavoritesOnly: true, TakenAfter: "2020-01-01"}, nil))

	got, err := s.Select(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids(got))
	assert.True(t, src.lastFilter.FavoritesOnly)
	require.NotNil(t, src.lastFilter.TakenAfter)
	assert.Equal(t, 2020, src.lastFilter.TakenAfter.Year())
}

func TestOnThisDaySpreadsAcrossYears(t *testing.T) {
	at := func(y int, h int) time.Time { return time.Date(y, 3, 14, h, 0, 0, 0, time.UTC) }
	src := &fakeSource{memories: []immich.Memory{
		{Data: immich.MemoryData{Year: 2018}, Assets: []immich.Asset{
			{ID: "18a", LocalDateTime: at(2018, 9)},
			{ID: "18b", LocalDateTime: at(2018, 18)},
		}},
		{Data: immich.MemoryData{Year: 2022}, Assets: []immich.Asset{
			{ID: "22a", LocalDateTime: at(2022, 8)},
			{ID: "22b", LocalDateTime: at(2022, 10)},
			{ID: "22c", LocalDateTime: at(2022, 12)},
		}},
		{Data: immich.MemoryData{Year: 2020}, Assets: []immich.Asset{
			{ID: "20a", LocalDateTime: at(2020, 7)},
		}},
	}}
	s := NewOnThisDayStrategy(src)
	s.now = func() time.Time { return at(2025, 6) }

	got, err := s.Select(context.Background(), nil, 4)
	require.NoError(t, err)
	// one per year, newest year first, then the newest leftover
	assert.Equal(t, []string{"22c", "20a", "18b", "22b"}, ids(got))
	assert.Equal(t, 2022, got[0].Year)
	assert.Equal(t, 14, src.lastDate.Day())

	all, err := s.Select(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestOnThisDayEmptyIsNotAnError(t *testing.T) {
	s := NewOnThisDayStrategy(&fakeSource{})
	got, err := s.Select(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackfill(t *testing.T) {
	tests := []struct {
		name    string
		primary []string
		pool    []string
		n       int
		want    int
	}{
		{"already full", []string{"a", "b", "c"}, []string{"x"}, 3, 3},
		{"truncates", []string{"a", "b", "c", "d"}, nil, 2, 2},
		{"empty primary", nil, []string{"r1", "r2", "r3"}, 5, 3},
		{"tops up", []string{"a"}, []string{"r1", "r2", "r3", "r4"}, 3, 3},
		{"skips duplicates", []string{"a", "b"}, []string{"a", "b", "r1"}, 5, 3},
		{"duplicates only", []string{"a"}, []string{"a"}, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			random := NewRandomStrategy(&fakeSource{random: assets(tt.pool...)}, nil)
			got, err := Backfill(context.Background(), descriptors(tt.primary...), random, tt.n)
			require.NoError(t, err)
			require.Len(t, got, tt.want)

			seen := map[string]bool{}
			for i, d := range got {
				assert.False(t, seen[d.ID], "duplicate %s", d.ID)
				seen[d.ID] = true
				assert.Equal(t, i+1, d.Ordinal)
			}
			for i := 0; i < len(tt.primary) && i < tt.n; i++ {
				assert.Equal(t, tt.primary[i], got[i].ID, "primary order is kept")
			}
		})
	}
}

func TestBackfillRandomFailureKeepsPrimary(t *testing.T) {
	random := NewRandomStrategy(&fakeSource{err: domain.ErrSourceUnavailable}, nil)
	got, err := Backfill(context.Background(), descriptors("a", "b"), random, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.Equal(t, 2, got[1].Ordinal)
}

func reverse(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

func TestSampledSearchPicksFromWidePool(t *testing.T) {
	src := &fakeSource{smart: assets("a", "b", "b", "c", "d", "e")}
	s := NewSampledSearchStrategy(src, NewFilterBuilder(config.SelectionFilter{City: "Lisbon"}, nil), 500)
	s.shuffle = reverse

	got, err := s.Select(context.Background(), &domain.Theme{Text: "trams"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d", "c"}, ids(got))
	assert.Equal(t, 500, src.lastLimit)
	assert.Equal(t, "trams", src.lastQuery)
	assert.Equal(t, "Lisbon", src.lastFilter.City)

	got, err = s.Select(context.Background(), &domain.Theme{Text: "trams"}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 5, "duplicates are dropped before sampling")
	assert.Equal(t, 500, src.lastLimit)

	got, err = s.Select(context.Background(), &domain.Theme{Text: ""}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	src.err = fmt.Errorf("%w: timeout", domain.ErrSourceUnavailable)
	_, err = s.Select(context.Background(), &domain.Theme{Text: "trams"}, 3)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestSampledSearchPoolCoversCount(t *testing.T) {
	src := &fakeSource{smart: assets("a")}
	s := NewSampledSearchStrategy(src, nil, 2)

	_, err := s.Select(context.Background(), &domain.Theme{Text: "x"}, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, src.lastLimit)
	assert.Equal(t, config.DefaultMaxSearchResults, NewSampledSearchStrategy(src, nil, 0).maxResults)
}

func TestNewFilterSet(t *testing.T) {
	src := &fakeSource{smart: assets("s1", "s2"), random: assets("r1", "r2", "r3")}
	set, err := NewFilterSet(config.FilterSet{
		Name:             "kids",
		Mode:             config.ModeSampledSearch,
		MaxSearchResults: 40,
		Filters:          config.SelectionFilter{People: []string{"Alice"}},
	}, src, fakePeople{"Alice": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "kids", set.Name)
	assert.Equal(t, config.ModeSampledSearch, set.Primary.Mode())

	_, err = set.Primary.Select(context.Background(), &domain.Theme{Text: "park"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 40, src.lastLimit)
	assert.Equal(t, []string{"p1"}, src.lastFilter.PersonIDs)

	src.lastFilter = immich.Filters{}
	got, err := set.Random.Select(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids(got))
	assert.Equal(t, []string{"p1"}, src.lastFilter.PersonIDs, "backfill shares the set's filters")

	_, err = NewFilterSet(config.FilterSet{Name: "bad", Mode: "latest"}, src, nil)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, mode := range []string{config.ModeSearch, config.ModeSampledSearch, config.ModeRandom, config.ModeOnThisDay} {
		s, err := New(mode, &fakeSource{}, nil)
		require.NoError(t, err)
		assert.Equal(t, mode, s.Mode())
	}
	_, err := New("latest", &fakeSource{}, nil)
	assert.Error(t, err)
}
