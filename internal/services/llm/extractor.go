package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"organ/internal/media"
)

const defaultBatchSize = 50

// extractionSystemPrompt asks the model to pull structured fields out of
// media filenames. The response contract is a bare JSON array, one object
// per filename, in input order.
const extractionSystemPrompt = `You are a media file analyzer. Extract information from video filenames.

For each filename, extract:
- title_cn: Chinese title if present (use original Chinese characters)
- title_en: English title if present
- year: Release year (4-digit number, e.g., 2023)
- tmdb_id: TMDB ID if present in filename (e.g., from {tmdb-12345})
- season: Season number for TV shows (1, 2, 3, etc.)
- episode: Episode number (1, 2, 3, etc.)
- end_episode: End episode for multi-episode files (e.g., E01-E03 has episode=1, end_episode=3)
- quality: Video quality (e.g., 1080p, 720p, 4K, 2160p)
- source: Video source (e.g., BluRay, WEB-DL, HDTV, DVDRip)

Return ONLY a JSON array with extracted info for each filename.
Use null for fields you cannot determine.
Do not include explanations, only the JSON array.`

const extractionUserPromptTemplate = `Extract media information from these filenames:

%s

Return a JSON array with one object per filename, in the same order as input.`

// Extractor runs filename extraction batches against the chat client.
type Extractor struct {
	client    *Client
	batchSize int
}

// NewExtractor wraps a client for batch extraction. A non-positive batch
// size falls back to the default of 50 files per request.
func NewExtractor(client *Client, batchSize int) *Extractor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Extractor{client: client, batchSize: batchSize}
}

// Extract returns one hints entry per filename, in input order. A failed
// batch yields empty hints for its filenames rather than failing the whole
// call; recognition falls back to pattern extraction for those files.
func (e *Extractor) Extract(ctx context.Context, filenames []string, mediaType media.Type) []media.ExtractedHints {
	if len(filenames) == 0 {
		return nil
	}

	byName := make(map[string]media.ExtractedHints, len(filenames))
	for start := 0; start < len(filenames); start += e.batchSize {
		end := start + e.batchSize
		if end > len(filenames) {
			end = len(filenames)
		}
		batch := filenames[start:end]
		for name, hints := range e.extractBatch(ctx, batch, mediaType) {
			byName[name] = hints
		}
	}

	results := make([]media.ExtractedHints, len(filenames))
	for i, name := range filenames {
		if hints, ok := byName[name]; ok {
			results[i] = hints
		} else {
			results[i] = media.ExtractedHints{Filename: name}
		}
	}
	return results
}

// ExtractSingle extracts hints for one filename.
func (e *Extractor) ExtractSingle(ctx context.Context, filename string, mediaType media.Type) media.ExtractedHints {
	results := e.Extract(ctx, []string{filename}, mediaType)
	if len(results) == 0 {
		return media.ExtractedHints{Filename: filename}
	}
	return results[0]
}

func (e *Extractor) extractBatch(ctx context.Context, batch []string, mediaType media.Type) map[string]media.ExtractedHints {
	empty := make(map[string]media.ExtractedHints, len(batch))
	for _, name := range batch {
		empty[name] = media.ExtractedHints{Filename: name}
	}

	encoded, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return empty
	}

	systemPrompt := extractionSystemPrompt
	switch mediaType {
	case media.TypeMovie:
		systemPrompt += "\n\nThese are MOVIE filenames. Season/episode fields should be null."
	case media.TypeTV:
		systemPrompt += "\n\nThese are TV SHOW filenames. Look for season/episode patterns."
	}

	content, err := e.client.Complete(ctx, systemPrompt, fmt.Sprintf(extractionUserPromptTemplate, encoded))
	if err != nil {
		return empty
	}

	var items []extractionItem
	if err := DecodeLLMJSON(content, &items); err != nil {
		return empty
	}

	results := empty
	for i, item := range items {
		name := strings.TrimSpace(item.Filename)
		if name == "" && i < len(batch) {
			name = batch[i]
		}
		if _, ok := results[name]; !ok {
			continue
		}
		results[name] = item.toHints(name)
	}
	return results
}

// extractionItem tolerates the field aliases and loose typing models return
// in practice: cn_name/en_name for titles, tmdbid for the ID, and numbers
// serialized as strings.
type extractionItem struct {
	Filename    string   `json:"filename"`
	TitleCN     string   `json:"title_cn"`
	CNName      string   `json:"cn_name"`
	TitleEN     string   `json:"title_en"`
	ENName      string   `json:"en_name"`
	Year        flexInt  `json:"year"`
	TMDBID      flexInt  `json:"tmdb_id"`
	TMDBIDAlias flexInt  `json:"tmdbid"`
	Season      flexInt  `json:"season"`
	Episode     flexInt  `json:"episode"`
	EndEpisode  flexInt  `json:"end_episode"`
	Quality     string   `json:"quality"`
	Source      string   `json:"source"`
}

func (item extractionItem) toHints(filename string) media.ExtractedHints {
	tmdbID := int64(item.TMDBID)
	if tmdbID == 0 {
		tmdbID = int64(item.TMDBIDAlias)
	}
	return media.ExtractedHints{
		Filename:    filename,
		TitleNative: firstNonEmpty(item.TitleCN, item.CNName),
		TitleLatin:  firstNonEmpty(item.TitleEN, item.ENName),
		Year:        int(item.Year),
		TMDBID:      tmdbID,
		Season:      int(item.Season),
		Episode:     int(item.Episode),
		EndEpisode:  int(item.EndEpisode),
		Quality:     strings.TrimSpace(item.Quality),
		Source:      strings.TrimSpace(item.Source),
	}
}

// flexInt decodes integers that may arrive as numbers, numeric strings, or
// null. Anything unparseable decodes to zero.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexInt(parsed)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}
