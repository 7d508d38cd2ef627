package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"organ/internal/media"
)

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New("", "https://api.example.com/3", []string{"en-US"}); err == nil {
		t.Fatal("expected error for empty api key")
	}
	if _, err := New("key", "", []string{"en-US"}); err == nil {
		t.Fatal("expected error for empty base url")
	}
	client, err := New("key", "https://api.example.com/3/", []string{"en-US"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if client.baseURL != "https://api.example.com/3" {
		t.Fatalf("expected trailing slash trimmed, got %q", client.baseURL)
	}
}

func TestFindBestMatchMovie(t *testing.T) {
	var searchCalls, detailCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/movie":
			searchCalls++
			if got := r.URL.Query().Get("api_key"); got != "test-key" {
				t.Errorf("api_key = %q", got)
			}
			if got := r.URL.Query().Get("language"); got != "zh-CN" {
				t.Errorf("language = %q", got)
			}
			if got := r.URL.Query().Get("year"); got != "2020" {
				t.Errorf("year = %q", got)
			}
			fmt.Fprint(w, `{"page":1,"total_results":1,"results":[{"id":99,"title":"Inception","original_title":"Inception","release_date":"2020-07-16","genre_ids":[28,878]}]}`)
		case "/movie/99":
			detailCalls++
			if got := r.URL.Query().Get("append_to_response"); got != "alternative_titles" {
				t.Errorf("append_to_response = %q", got)
			}
			fmt.Fprint(w, `{"id":99,"title":"Inception","original_title":"Inception","release_date":"2020-07-16","genres":[{"id":28},{"id":878}],"alternative_titles":{"titles":[{"title":"Origen"}]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New("test-key", server.URL, []string{"zh-CN"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	match, err := client.FindBestMatch(context.Background(), "Inception", media.TypeMovie, 2020, "Inception.2020.1080p.mkv")
	if err != nil {
		t.Fatalf("FindBestMatch returned error: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ID != 99 || match.Year != 2020 {
		t.Fatalf("unexpected match %+v", match)
	}
	if match.Confidence != media.ConfidenceHigh {
		t.Fatalf("confidence = %s, want high", match.Confidence)
	}
	if len(match.AlternateTitles) != 1 || match.AlternateTitles[0] != "Origen" {
		t.Fatalf("alternate titles = %v", match.AlternateTitles)
	}
	if searchCalls != 1 || detailCalls != 1 {
		t.Fatalf("calls = %d search, %d detail", searchCalls, detailCalls)
	}
}

func TestFindBestMatchRetriesWithoutYear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/tv":
			if r.URL.Query().Get("first_air_date_year") != "" {
				fmt.Fprint(w, `{"page":1,"total_results":0,"results":[]}`)
				return
			}
			fmt.Fprint(w, `{"page":1,"total_results":1,"results":[{"id":42,"name":"Dark","original_name":"Dark","first_air_date":"2017-12-01"}]}`)
		case "/tv/42":
			fmt.Fprint(w, `{"id":42,"name":"Dark","original_name":"Dark","first_air_date":"2017-12-01","seasons":[{"season_number":0,"episode_count":2},{"season_number":1,"episode_count":10}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New("test-key", server.URL, nil, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	match, err := client.FindBestMatch(context.Background(), "Dark", media.TypeTV, 2018, "Dark.S01E01.mkv")
	if err != nil {
		t.Fatalf("FindBestMatch returned error: %v", err)
	}
	if match == nil || match.ID != 42 {
		t.Fatalf("unexpected match %+v", match)
	}
	if len(match.Seasons) != 1 || match.Seasons[0].Number != 1 {
		t.Fatalf("seasons = %+v, want specials skipped", match.Seasons)
	}
}

func TestFindBestMatchLanguageFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/movie":
			if r.URL.Query().Get("language") == "zh-CN" {
				fmt.Fprint(w, `{"page":1,"total_results":0,"results":[]}`)
				return
			}
			fmt.Fprint(w, `{"page":1,"total_results":1,"results":[{"id":7,"title":"Heat","original_title":"Heat","release_date":"1995-12-15"}]}`)
		case "/movie/7":
			fmt.Fprint(w, `{"id":7,"title":"Heat","original_title":"Heat","release_date":"1995-12-15"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New("test-key", server.URL, []string{"zh-CN"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	match, err := client.FindBestMatch(context.Background(), "Heat", media.TypeMovie, 1995, "Heat.1995.mkv")
	if err != nil {
		t.Fatalf("FindBestMatch returned error: %v", err)
	}
	if match == nil || match.ID != 7 {
		t.Fatalf("unexpected match %+v", match)
	}
}

func TestFindBestMatchLanguageLadder(t *testing.T) {
	var queried []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/movie":
			lang := r.URL.Query().Get("language")
			queried = append(queried, lang)
			if lang != "en-US" {
				fmt.Fprint(w, `{"page":1,"total_results":0,"results":[]}`)
				return
			}
			fmt.Fprint(w, `{"page":1,"total_results":1,"results":[{"id":11,"title":"Drive","original_title":"Drive","release_date":"2011-09-16"}]}`)
		case "/movie/11":
			fmt.Fprint(w, `{"id":11,"title":"Drive","original_title":"Drive","release_date":"2011-09-16"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New("test-key", server.URL, []string{"zh-CN", "en-US"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	match, err := client.FindBestMatch(context.Background(), "Drive", media.TypeMovie, 2011, "Drive.2011.mkv")
	if err != nil {
		t.Fatalf("FindBestMatch returned error: %v", err)
	}
	if match == nil || match.ID != 11 {
		t.Fatalf("unexpected match %+v", match)
	}
	if len(queried) != 2 || queried[0] != "zh-CN" || queried[1] != "en-US" {
		t.Fatalf("queried languages = %v, want [zh-CN en-US]", queried)
	}
}

func TestFindBestMatchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"page":1,"total_results":0,"results":[]}`)
	}))
	defer server.Close()

	client, err := New("test-key", server.URL, nil, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	match, err := client.FindBestMatch(context.Background(), "Nonexistent", media.TypeMovie, 0, "nonexistent.mkv")
	if err != nil {
		t.Fatalf("FindBestMatch returned error: %v", err)
	}
	if match != nil {
		t.Fatalf("expected nil match, got %+v", match)
	}
}

func TestGetTVDetailsAlwaysHigh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":1399,"name":"Game of Thrones","original_name":"Game of Thrones","first_air_date":"2011-04-17","genres":[{"id":18}],"alternative_titles":{"results":[{"title":"GoT"}]}}`)
	}))
	defer server.Close()

	client, err := New("test-key", server.URL, []string{"en-US"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	match, err := client.GetTVDetails(context.Background(), 1399)
	if err != nil {
		t.Fatalf("GetTVDetails returned error: %v", err)
	}
	if match.Confidence != media.ConfidenceHigh {
		t.Fatalf("confidence = %s, want high", match.Confidence)
	}
	if match.Year != 2011 {
		t.Fatalf("year = %d", match.Year)
	}
	if len(match.AlternateTitles) != 1 || match.AlternateTitles[0] != "GoT" {
		t.Fatalf("alternate titles = %v", match.AlternateTitles)
	}
	if len(match.GenreIDs) != 1 || match.GenreIDs[0] != 18 {
		t.Fatalf("genre ids = %v", match.GenreIDs)
	}
}

func TestGetMovieDetailsRejectsBadID(t *testing.T) {
	client, err := New("test-key", "https://api.example.com/3", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.GetMovieDetails(context.Background(), 0); err == nil {
		t.Fatal("expected error for non-positive id")
	}
}

func TestRateLimitRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":5,"title":"Se7en","original_title":"Se7en","release_date":"1995-09-22"}`)
	}))
	defer server.Close()

	var slept time.Duration
	client, err := New("test-key", server.URL, nil, WithHTTPClient(server.Client()), WithSleeper(func(d time.Duration) { slept = d }))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	match, err := client.GetMovieDetails(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetMovieDetails returned error: %v", err)
	}
	if match.ID != 5 {
		t.Fatalf("unexpected match %+v", match)
	}
	if slept != 3*time.Second {
		t.Fatalf("slept %v, want 3s", slept)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRequestSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":5,"title":"Se7en","original_title":"Se7en","release_date":"1995-09-22"}`)
	}))
	defer server.Close()

	var waits []time.Duration
	client, err := New("test-key", server.URL, nil,
		WithHTTPClient(server.Client()),
		WithRateLimit(2),
		WithSleeper(func(d time.Duration) { waits = append(waits, d) }))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := client.GetMovieDetails(context.Background(), 5); err != nil {
			t.Fatalf("GetMovieDetails returned error: %v", err)
		}
	}

	if len(waits) != 1 {
		t.Fatalf("waits = %v, want one spacing sleep", waits)
	}
	if waits[0] <= 0 || waits[0] > 500*time.Millisecond {
		t.Fatalf("spacing sleep = %v, want within 500ms", waits[0])
	}
}

func TestMatchConfidenceScoring(t *testing.T) {
	base := func() *media.CatalogMatch {
		return &media.CatalogMatch{
			Title:         "The Matrix",
			OriginalTitle: "The Matrix",
			Year:          1999,
		}
	}

	tests := []struct {
		name         string
		match        *media.CatalogMatch
		query        string
		year         int
		filename     string
		totalResults int
		want         media.Confidence
	}{
		{
			name:  "exact title and year",
			match: base(), query: "The Matrix", year: 1999,
			totalResults: 5,
			want:         media.ConfidenceHigh,
		},
		{
			name:  "exact title only",
			match: base(), query: "The Matrix",
			totalResults: 5,
			want:         media.ConfidenceMedium,
		},
		{
			name:  "substring title only",
			match: base(), query: "Matrix",
			totalResults: 5,
			want:         media.ConfidenceLow,
		},
		{
			name:  "substring title with exact year",
			match: base(), query: "Matrix", year: 1999,
			totalResults: 5,
			want:         media.ConfidenceMedium,
		},
		{
			name:  "substring title with single result",
			match: base(), query: "Matrix",
			totalResults: 1,
			want:         media.ConfidenceMedium,
		},
		{
			name: "alternate title only",
			match: &media.CatalogMatch{
				Title:           "黑客帝国",
				OriginalTitle:   "The Matrix",
				Year:            1999,
				AlternateTitles: []string{"Matrix Reloaded Predecessor"},
			},
			query:        "Matrix Reloaded",
			totalResults: 5,
			want:         media.ConfidenceLow,
		},
		{
			name:  "filename boost reaches high",
			match: base(), query: "The Matrix", year: 1998,
			filename:     "The Matrix 1999 1080p.mkv",
			totalResults: 5,
			want:         media.ConfidenceHigh,
		},
		{
			name:         "no signals",
			match:        &media.CatalogMatch{Title: "Unrelated", Year: 2005},
			query:        "Something Else",
			totalResults: 5,
			want:         media.ConfidenceLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchConfidence(tc.match, tc.query, tc.year, tc.filename, tc.totalResults)
			if got != tc.want {
				t.Fatalf("MatchConfidence = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMatchConfidenceYearProximityMonotonic(t *testing.T) {
	match := &media.CatalogMatch{Title: "Blade Runner", OriginalTitle: "Blade Runner", Year: 1982}

	exact := MatchConfidence(match, "Blade Runner", 1982, "", 5)
	offByOne := MatchConfidence(match, "Blade Runner", 1983, "", 5)
	farOff := MatchConfidence(match, "Blade Runner", 1990, "", 5)

	if exact.Rank() < offByOne.Rank() {
		t.Fatalf("exact year %s ranked below off-by-one %s", exact, offByOne)
	}
	if offByOne.Rank() < farOff.Rank() {
		t.Fatalf("off-by-one %s ranked below distant year %s", offByOne, farOff)
	}
	if exact != media.ConfidenceHigh {
		t.Fatalf("exact = %s, want high", exact)
	}
}
