package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"organ/internal/media"
)

// searchResult models one entry of a TMDB paginated search response. Movie
// and TV payloads use different field names for the same concepts.
type searchResult struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Name             string   `json:"name"`
	OriginalTitle    string   `json:"original_title"`
	OriginalName     string   `json:"original_name"`
	Overview         string   `json:"overview"`
	ReleaseDate      string   `json:"release_date"`
	FirstAirDate     string   `json:"first_air_date"`
	GenreIDs         []int64  `json:"genre_ids"`
	OriginCountry    []string `json:"origin_country"`
	OriginalLanguage string   `json:"original_language"`
}

type searchResponse struct {
	Page         int            `json:"page"`
	Results      []searchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

type detailsPayload struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Name             string   `json:"name"`
	OriginalTitle    string   `json:"original_title"`
	OriginalName     string   `json:"original_name"`
	Overview         string   `json:"overview"`
	ReleaseDate      string   `json:"release_date"`
	FirstAirDate     string   `json:"first_air_date"`
	OriginCountry    []string `json:"origin_country"`
	OriginalLanguage string   `json:"original_language"`
	Genres           []struct {
		ID int64 `json:"id"`
	} `json:"genres"`
	Seasons []struct {
		SeasonNumber int    `json:"season_number"`
		EpisodeCount int    `json:"episode_count"`
		AirDate      string `json:"air_date"`
		Name         string `json:"name"`
	} `json:"seasons"`
	AlternativeTitles struct {
		Titles []struct {
			Title string `json:"title"`
		} `json:"titles"`
		Results []struct {
			Title string `json:"title"`
		} `json:"results"`
	} `json:"alternative_titles"`
}

// Searcher defines the catalog operations consumed by the recognition
// pipeline. Implemented by Client and by test fakes.
type Searcher interface {
	FindBestMatch(ctx context.Context, query string, mediaType media.Type, year int, filename string) (*media.CatalogMatch, error)
	Search(ctx context.Context, query string, mediaType media.Type, year int) ([]media.CatalogMatch, error)
	GetMovieDetails(ctx context.Context, movieID int64) (*media.CatalogMatch, error)
	GetTVDetails(ctx context.Context, showID int64) (*media.CatalogMatch, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	languages  []string
	httpClient *http.Client
	sleep      func(time.Duration)

	// Requests across the whole client are spaced at least rateInterval
	// apart. lastRequest tracks the scheduled time of the newest request.
	rateInterval time.Duration
	rateMu       sync.Mutex
	lastRequest  time.Time
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides the sleep function used for retry and rate-limit
// waits. Tests use this to avoid real delays.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithRateLimit caps requests per second across the whole client. Zero or
// negative disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.rateInterval = time.Duration(float64(time.Second) / perSecond)
		}
	}
}

// New creates a TMDB client. Languages is the priority order for catalog
// queries; search falls back through the list before dropping the filter.
func New(apiKey, baseURL string, languages []string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sleep:      time.Sleep,
	}
	for _, lang := range languages {
		if trimmed := strings.TrimSpace(lang); trimmed != "" {
			client.languages = append(client.languages, trimmed)
		}
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search performs a catalog search and converts results without confidence
// scoring. Used by the re-identify flow to present candidates.
func (c *Client) Search(ctx context.Context, query string, mediaType media.Type, year int) ([]media.CatalogMatch, error) {
	resp, _, err := c.searchWithFallback(ctx, query, mediaType, year)
	if err != nil {
		return nil, err
	}
	matches := make([]media.CatalogMatch, 0, len(resp.Results))
	for _, item := range resp.Results {
		matches = append(matches, convertSearchResult(item, mediaType))
	}
	return matches, nil
}

// FindBestMatch searches the catalog and returns the top result enriched
// with full details and a match confidence. A nil match with nil error means
// the catalog had no candidates.
func (c *Client) FindBestMatch(ctx context.Context, query string, mediaType media.Type, year int, filename string) (*media.CatalogMatch, error) {
	resp, lang, err := c.searchWithFallback(ctx, query, mediaType, year)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 && year > 0 {
		// Year filters hide re-releases with shifted dates; retry without.
		resp, lang, err = c.searchWithFallback(ctx, query, mediaType, 0)
		if err != nil {
			return nil, err
		}
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	best := resp.Results[0]
	var details *media.CatalogMatch
	if mediaType == media.TypeMovie {
		details, err = c.movieDetails(ctx, best.ID, lang)
	} else {
		details, err = c.tvDetails(ctx, best.ID, lang)
	}
	if err != nil || details == nil {
		// Search payloads carry enough to score; details are an enrichment.
		converted := convertSearchResult(best, mediaType)
		details = &converted
	}

	details.Confidence = MatchConfidence(details, query, year, filename, len(resp.Results))
	return details, nil
}

// GetMovieDetails fetches movie details by TMDB ID. Direct ID lookups are
// always high confidence.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int64) (*media.CatalogMatch, error) {
	match, err := c.movieDetails(ctx, movieID, c.primaryLanguage())
	if err != nil {
		return nil, err
	}
	match.Confidence = media.ConfidenceHigh
	return match, nil
}

// GetTVDetails fetches TV show details by TMDB ID. Direct ID lookups are
// always high confidence.
func (c *Client) GetTVDetails(ctx context.Context, showID int64) (*media.CatalogMatch, error) {
	match, err := c.tvDetails(ctx, showID, c.primaryLanguage())
	if err != nil {
		return nil, err
	}
	match.Confidence = media.ConfidenceHigh
	return match, nil
}

// searchWithFallback walks the configured language list in priority order,
// then retries without a language preference. Returns the language that
// produced results.
func (c *Client) searchWithFallback(ctx context.Context, query string, mediaType media.Type, year int) (*searchResponse, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, "", errors.New("query must not be empty")
	}

	languages := append(append([]string{}, c.languages...), "")

	var lastErr error
	for _, lang := range languages {
		resp, err := c.search(ctx, query, mediaType, year, lang)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Results) > 0 {
			return resp, lang, nil
		}
	}
	if lastErr != nil {
		return nil, "", lastErr
	}
	return &searchResponse{}, "", nil
}

func (c *Client) search(ctx context.Context, query string, mediaType media.Type, year int, language string) (*searchResponse, error) {
	path := "/search/tv"
	if mediaType == media.TypeMovie {
		path = "/search/movie"
	}
	params := url.Values{}
	params.Set("query", query)
	if year > 0 {
		if mediaType == media.TypeMovie {
			params.Set("year", strconv.Itoa(year))
		} else {
			params.Set("first_air_date_year", strconv.Itoa(year))
		}
	}

	var payload searchResponse
	if err := c.get(ctx, path, params, language, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) movieDetails(ctx context.Context, movieID int64, language string) (*media.CatalogMatch, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", "alternative_titles")

	var payload detailsPayload
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", movieID), params, language, &payload); err != nil {
		return nil, err
	}
	return convertDetails(payload, media.TypeMovie), nil
}

func (c *Client) tvDetails(ctx context.Context, showID int64, language string) (*media.CatalogMatch, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", "alternative_titles")

	var payload detailsPayload
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", showID), params, language, &payload); err != nil {
		return nil, err
	}
	return convertDetails(payload, media.TypeTV), nil
}

func (c *Client) primaryLanguage() string {
	if len(c.languages) == 0 {
		return ""
	}
	return c.languages[0]
}

// waitForRateLimit reserves the next request slot and sleeps until it
// arrives. Concurrent callers are serialized so the interval holds across
// the whole client.
func (c *Client) waitForRateLimit() {
	if c.rateInterval <= 0 {
		return
	}
	c.rateMu.Lock()
	next := c.lastRequest.Add(c.rateInterval)
	if now := time.Now(); next.Before(now) {
		next = now
	}
	c.lastRequest = next
	c.rateMu.Unlock()
	if wait := time.Until(next); wait > 0 {
		c.sleep(wait)
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, language string, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if language != "" {
		params.Set("language", language)
	}
	endpoint.RawQuery = params.Encode()

	for attempt := 0; ; attempt++ {
		c.waitForRateLimit()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		requestStart := time.Now()
		resp, err := c.httpClient.Do(req)
		latency := time.Since(requestStart)
		if err != nil {
			return fmt.Errorf("execute request (latency=%v): %w", latency, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			retryAfter := 10
			if v := resp.Header.Get("Retry-After"); v != "" {
				if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
					retryAfter = parsed
				}
			}
			resp.Body.Close()
			c.sleep(time.Duration(retryAfter) * time.Second)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("tmdb %s returned %d (latency=%v)", path, resp.StatusCode, latency)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode tmdb response: %w", err)
		}
		return nil
	}
}

// MatchConfidence scores a catalog candidate against the query and source
// filename. Exact title matches and exact year matches dominate; substring
// and alternate-title matches contribute less. Scores of 5 and above map to
// high, 3 and above to medium, anything else to low.
func MatchConfidence(result *media.CatalogMatch, query string, year int, filename string, totalResults int) media.Confidence {
	if result == nil {
		return media.ConfidenceLow
	}
	score := 0

	queryLower := strings.ToLower(query)
	titleLower := strings.ToLower(result.Title)
	originalLower := strings.ToLower(result.OriginalTitle)
	switch {
	case titleLower == queryLower:
		score += 3
	case queryLower != "" && strings.Contains(titleLower, queryLower):
		score += 2
	case originalLower != "" && queryLower != "" && strings.Contains(originalLower, queryLower):
		score += 2
	default:
		for _, alt := range result.AlternateTitles {
			if queryLower != "" && strings.Contains(strings.ToLower(alt), queryLower) {
				score++
				break
			}
		}
	}

	if year > 0 && result.Year > 0 {
		switch int(math.Abs(float64(year - result.Year))) {
		case 0:
			score += 2
		case 1:
			score++
		}
	}

	if filename != "" {
		filenameLower := strings.ToLower(filename)
		if titleLower != "" && strings.Contains(filenameLower, titleLower) {
			score++
		}
		if originalLower != "" && strings.Contains(filenameLower, originalLower) {
			score++
		}
	}

	if totalResults == 1 {
		score++
	}

	switch {
	case score >= 5:
		return media.ConfidenceHigh
	case score >= 3:
		return media.ConfidenceMedium
	default:
		return media.ConfidenceLow
	}
}

func convertSearchResult(item searchResult, mediaType media.Type) media.CatalogMatch {
	title := item.Title
	original := item.OriginalTitle
	date := item.ReleaseDate
	if mediaType == media.TypeTV {
		title = item.Name
		original = item.OriginalName
		date = item.FirstAirDate
	}
	return media.CatalogMatch{
		ID:               item.ID,
		MediaType:        mediaType,
		Title:            title,
		OriginalTitle:    original,
		Year:             extractYear(date),
		Overview:         item.Overview,
		GenreIDs:         item.GenreIDs,
		OriginCountry:    item.OriginCountry,
		OriginalLanguage: item.OriginalLanguage,
		Confidence:       media.ConfidenceLow,
	}
}

func convertDetails(payload detailsPayload, mediaType media.Type) *media.CatalogMatch {
	title := payload.Title
	original := payload.OriginalTitle
	date := payload.ReleaseDate
	altSource := payload.AlternativeTitles.Titles
	if mediaType == media.TypeTV {
		title = payload.Name
		original = payload.OriginalName
		date = payload.FirstAirDate
		altSource = payload.AlternativeTitles.Results
	}

	genreIDs := make([]int64, 0, len(payload.Genres))
	for _, g := range payload.Genres {
		genreIDs = append(genreIDs, g.ID)
	}

	alts := make([]string, 0, len(altSource))
	for _, alt := range altSource {
		if alt.Title != "" {
			alts = append(alts, alt.Title)
		}
	}

	match := &media.CatalogMatch{
		ID:               payload.ID,
		MediaType:        mediaType,
		Title:            title,
		OriginalTitle:    original,
		Year:             extractYear(date),
		Overview:         payload.Overview,
		GenreIDs:         genreIDs,
		OriginCountry:    payload.OriginCountry,
		OriginalLanguage: payload.OriginalLanguage,
		AlternateTitles:  alts,
		Confidence:       media.ConfidenceLow,
	}

	if mediaType == media.TypeTV {
		for _, season := range payload.Seasons {
			// Season 0 holds specials; they never drive episode math.
			if season.SeasonNumber <= 0 {
				continue
			}
			match.Seasons = append(match.Seasons, media.SeasonInfo{
				Number:       season.SeasonNumber,
				EpisodeCount: season.EpisodeCount,
				AirDate:      season.AirDate,
				Name:         season.Name,
			})
		}
	}

	return match
}

func extractYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
