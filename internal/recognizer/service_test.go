package recognizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"organ/internal/events"
	"organ/internal/media"
	"organ/internal/store"
)

type fakeCatalog struct {
	matches      map[string]*media.CatalogMatch
	details      map[int64]*media.CatalogMatch
	searchCalls  []string
	detailsCalls []int64
	searchErr    error
}

func (f *fakeCatalog) FindBestMatch(ctx context.Context, query string, mediaType media.Type, year int, filename string) (*media.CatalogMatch, error) {
	f.searchCalls = append(f.searchCalls, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches[query], nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string, mediaType media.Type, year int) ([]media.CatalogMatch, error) {
	if match := f.matches[query]; match != nil {
		return []media.CatalogMatch{*match}, nil
	}
	return nil, nil
}

func (f *fakeCatalog) GetMovieDetails(ctx context.Context, id int64) (*media.CatalogMatch, error) {
	return f.lookup(id)
}

func (f *fakeCatalog) GetTVDetails(ctx context.Context, id int64) (*media.CatalogMatch, error) {
	return f.lookup(id)
}

func (f *fakeCatalog) lookup(id int64) (*media.CatalogMatch, error) {
	f.detailsCalls = append(f.detailsCalls, id)
	if match := f.details[id]; match != nil {
		return match, nil
	}
	return nil, errors.New("not found")
}

type fakeHints struct {
	byName map[string]media.ExtractedHints
	calls  int
}

func (f *fakeHints) Extract(ctx context.Context, filenames []string, mediaType media.Type) []media.ExtractedHints {
	f.calls++
	out := make([]media.ExtractedHints, len(filenames))
	for i, name := range filenames {
		hints := f.byName[name]
		hints.Filename = name
		out[i] = hints
	}
	return out
}

func (f *fakeHints) ExtractSingle(ctx context.Context, filename string, mediaType media.Type) media.ExtractedHints {
	return f.Extract(ctx, []string{filename}, mediaType)[0]
}

type memCache struct {
	entries map[string]store.CachedRecognition
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]store.CachedRecognition)}
}

func (c *memCache) GetRecognition(ctx context.Context, key string, ttl time.Duration) (*store.CachedRecognition, error) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *memCache) SaveRecognition(ctx context.Context, entry store.CachedRecognition) error {
	c.entries[entry.Key] = entry
	return nil
}

func highMatch(id int64, title string, year int) *media.CatalogMatch {
	return &media.CatalogMatch{
		ID:         id,
		MediaType:  media.TypeTV,
		Title:      title,
		Year:       year,
		Confidence: media.ConfidenceHigh,
	}
}

func TestRecognizeSinglePrefersNativeTitleQuery(t *testing.T) {
	catalog := &fakeCatalog{matches: map[string]*media.CatalogMatch{
		"流浪地球": {ID: 1, MediaType: media.TypeMovie, Title: "The Wandering Earth", Year: 2019, Confidence: media.ConfidenceHigh},
	}}
	hints := &fakeHints{byName: map[string]media.ExtractedHints{
		"The.Wandering.Earth.2019.1080p.mkv": {TitleNative: "流浪地球", TitleLatin: "The Wandering Earth", Year: 2019},
	}}
	svc := NewService(newMemCache(), hints, catalog, nil, time.Hour, nil)

	file := media.FileInfo{Name: "The.Wandering.Earth.2019.1080p.mkv", Size: 1024}
	result, err := svc.RecognizeSingle(context.Background(), file, media.TypeMovie)
	if err != nil {
		t.Fatalf("RecognizeSingle: %v", err)
	}
	if len(catalog.searchCalls) != 1 || catalog.searchCalls[0] != "流浪地球" {
		t.Fatalf("search calls = %v", catalog.searchCalls)
	}
	if !result.Recognized() || result.Info.Title != "The Wandering Earth" {
		t.Fatalf("result = %+v", result)
	}
	if result.Confidence != media.ConfidenceHigh {
		t.Fatalf("confidence = %s", result.Confidence)
	}
	if result.Info.Quality != "1080p" {
		t.Fatalf("pattern quality not merged: %+v", result.Info)
	}
}

func TestRecognizeSingleFallsBackToCleanedFilename(t *testing.T) {
	catalog := &fakeCatalog{matches: map[string]*media.CatalogMatch{}}
	svc := NewService(nil, &fakeHints{}, catalog, nil, time.Hour, nil)

	file := media.FileInfo{Name: "Some.Show.S01E02.720p.mkv"}
	result, err := svc.RecognizeSingle(context.Background(), file, media.TypeTV)
	if err != nil {
		t.Fatalf("RecognizeSingle: %v", err)
	}
	if len(catalog.searchCalls) != 1 {
		t.Fatalf("search calls = %v", catalog.searchCalls)
	}
	if catalog.searchCalls[0] != "Some Show" {
		t.Fatalf("query = %q, want cleaned filename", catalog.searchCalls[0])
	}
	if result.Recognized() {
		t.Fatalf("no match should leave media info absent: %+v", result.Info)
	}
	if result.Confidence != media.ConfidenceLow {
		t.Fatalf("confidence = %s", result.Confidence)
	}
}

func TestRecognizeSingleUsesExtractedCatalogID(t *testing.T) {
	catalog := &fakeCatalog{details: map[int64]*media.CatalogMatch{
		4521: highMatch(4521, "Dark", 2017),
	}}
	hints := &fakeHints{byName: map[string]media.ExtractedHints{
		"Dark.S01E01.mkv": {TitleLatin: "Dark", TMDBID: 4521},
	}}
	svc := NewService(nil, hints, catalog, nil, time.Hour, nil)

	result, err := svc.RecognizeSingle(context.Background(), media.FileInfo{Name: "Dark.S01E01.mkv"}, media.TypeTV)
	if err != nil {
		t.Fatalf("RecognizeSingle: %v", err)
	}
	if len(catalog.detailsCalls) != 1 || catalog.detailsCalls[0] != 4521 {
		t.Fatalf("details calls = %v", catalog.detailsCalls)
	}
	if len(catalog.searchCalls) != 0 {
		t.Fatalf("id hit should skip search, got %v", catalog.searchCalls)
	}
	if result.Info.TMDBID != 4521 || result.Info.Season != 1 || result.Info.Episode != 1 {
		t.Fatalf("result info = %+v", result.Info)
	}
}

func TestRecognizeSingleCacheHitSkipsProviders(t *testing.T) {
	catalog := &fakeCatalog{matches: map[string]*media.CatalogMatch{
		"Dark": highMatch(4521, "Dark", 2017),
	}}
	hints := &fakeHints{byName: map[string]media.ExtractedHints{
		"Dark.S01E01.mkv": {TitleLatin: "Dark"},
	}}
	cache := newMemCache()
	svc := NewService(cache, hints, catalog, nil, time.Hour, nil)

	file := media.FileInfo{Name: "Dark.S01E01.mkv", Size: 77}
	first, err := svc.RecognizeSingle(context.Background(), file, media.TypeTV)
	if err != nil {
		t.Fatalf("first RecognizeSingle: %v", err)
	}
	second, err := svc.RecognizeSingle(context.Background(), file, media.TypeTV)
	if err != nil {
		t.Fatalf("second RecognizeSingle: %v", err)
	}

	if len(catalog.searchCalls) != 1 || hints.calls != 1 {
		t.Fatalf("cache hit should skip providers: search=%d llm=%d", len(catalog.searchCalls), hints.calls)
	}
	if second.Info == nil || second.Info.TMDBID != first.Info.TMDBID {
		t.Fatalf("cached result differs: %+v vs %+v", second.Info, first.Info)
	}
}

func TestRecognizeBatchIsolatesFailures(t *testing.T) {
	catalog := &fakeCatalog{searchErr: errors.New("catalog down")}
	bus := events.NewBus(nil)
	var completed events.RecognitionCompleted
	bus.Subscribe(events.KindRecognitionCompleted, func(e events.Event) {
		completed = e.Payload.(events.RecognitionCompleted)
	})
	svc := NewService(nil, &fakeHints{}, catalog, bus, time.Hour, nil)

	files := []media.FileInfo{
		{Name: "A.S01E01.mkv"},
		{Name: "B.S01E02.mkv"},
	}
	results := svc.RecognizeBatch(context.Background(), files, media.TypeTV)

	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	for i, result := range results {
		if result.Recognized() || result.Confidence != media.ConfidenceLow {
			t.Errorf("result %d should be low without info: %+v", i, result)
		}
		if result.File.Name != files[i].Name {
			t.Errorf("result %d order lost: %s", i, result.File.Name)
		}
	}
	if completed.Total != 2 || completed.LowConfidence != 2 {
		t.Fatalf("completion event = %+v", completed)
	}
}

func TestRecognizeBatchMixedCacheAndMiss(t *testing.T) {
	catalog := &fakeCatalog{matches: map[string]*media.CatalogMatch{
		"Dark": highMatch(4521, "Dark", 2017),
	}}
	hints := &fakeHints{byName: map[string]media.ExtractedHints{
		"Dark.S01E01.mkv": {TitleLatin: "Dark"},
		"Dark.S01E02.mkv": {TitleLatin: "Dark"},
	}}
	cache := newMemCache()
	svc := NewService(cache, hints, catalog, nil, time.Hour, nil)

	ctx := context.Background()
	if _, err := svc.RecognizeSingle(ctx, media.FileInfo{Name: "Dark.S01E01.mkv"}, media.TypeTV); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	results := svc.RecognizeBatch(ctx, []media.FileInfo{
		{Name: "Dark.S01E01.mkv"},
		{Name: "Dark.S01E02.mkv"},
	}, media.TypeTV)

	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Info == nil || results[1].Info == nil {
		t.Fatalf("both files should recognize: %+v %+v", results[0].Info, results[1].Info)
	}
	if results[0].Info.Episode != 1 || results[1].Info.Episode != 2 {
		t.Fatalf("episodes = %d, %d", results[0].Info.Episode, results[1].Info.Episode)
	}
	// Warmup consumed one search; only the uncached file searched again.
	if len(catalog.searchCalls) != 2 {
		t.Fatalf("search calls = %v", catalog.searchCalls)
	}
}

func TestReIdentifyByCatalogID(t *testing.T) {
	catalog := &fakeCatalog{details: map[int64]*media.CatalogMatch{
		4521: {ID: 4521, MediaType: media.TypeTV, Title: "Dark", Year: 2017, Confidence: media.ConfidenceHigh},
	}}
	cache := newMemCache()
	svc := NewService(cache, nil, catalog, nil, time.Hour, nil)

	file := media.FileInfo{Name: "wrong.guess.S02E01.mkv", Size: 9}
	result, err := svc.ReIdentify(context.Background(), file, media.TypeTV, "", 0, 4521)
	if err != nil {
		t.Fatalf("ReIdentify: %v", err)
	}
	if !result.UserOverride {
		t.Fatal("re-identified result must carry user override")
	}
	if result.Confidence != media.ConfidenceHigh || result.Info.TMDBID != 4521 {
		t.Fatalf("result = %+v", result)
	}
	if result.Info.Season != 2 || result.Info.Episode != 1 {
		t.Fatalf("pattern season/episode lost: %+v", result.Info)
	}

	entry, err := cache.GetRecognition(context.Background(), Fingerprint(file.Name, file.Size), time.Hour)
	if err != nil || entry == nil {
		t.Fatalf("re-identify must overwrite cache: %v %v", entry, err)
	}
	if !entry.UserOverride {
		t.Fatal("cache entry must carry user override")
	}
}

func TestReIdentifyNoMatchLowConfidence(t *testing.T) {
	catalog := &fakeCatalog{matches: map[string]*media.CatalogMatch{}}
	svc := NewService(nil, nil, catalog, nil, time.Hour, nil)

	result, err := svc.ReIdentify(context.Background(), media.FileInfo{Name: "x.mkv"}, media.TypeMovie, "nothing", 0, 0)
	if err != nil {
		t.Fatalf("ReIdentify: %v", err)
	}
	if result.Recognized() || result.Confidence != media.ConfidenceLow || !result.UserOverride {
		t.Fatalf("result = %+v", result)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("a.mkv", 10)
	if a != Fingerprint("a.mkv", 10) {
		t.Fatal("fingerprint must be deterministic")
	}
	if a == Fingerprint("a.mkv", 11) || a == Fingerprint("b.mkv", 10) {
		t.Fatal("fingerprint must depend on name and size")
	}
}
