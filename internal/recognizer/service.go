package recognizer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/recognizer/pattern"
	"organ/internal/recognizer/tmdb"
	"organ/internal/store"
	"organ/internal/textutil"
)

// Cache persists recognition outcomes keyed by file fingerprint.
// Implemented by *store.Store.
type Cache interface {
	GetRecognition(ctx context.Context, key string, ttl time.Duration) (*store.CachedRecognition, error)
	SaveRecognition(ctx context.Context, entry store.CachedRecognition) error
}

// HintExtractor produces filename hints from a language model. Implemented
// by *llm.Extractor; nil disables the step.
type HintExtractor interface {
	Extract(ctx context.Context, filenames []string, mediaType media.Type) []media.ExtractedHints
	ExtractSingle(ctx context.Context, filename string, mediaType media.Type) media.ExtractedHints
}

// Service composes the pattern extractor, the language-model extractor, the
// catalog client, and the recognition cache into the file recognition
// pipeline.
type Service struct {
	cache    Cache
	hints    HintExtractor
	catalog  tmdb.Searcher
	bus      *events.Bus
	logger   *slog.Logger
	cacheTTL time.Duration
}

// NewService constructs the recognition pipeline. cache, hints, and bus may
// be nil; catalog must not be.
func NewService(cache Cache, hints HintExtractor, catalog tmdb.Searcher, bus *events.Bus, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cache:    cache,
		hints:    hints,
		catalog:  catalog,
		bus:      bus,
		logger:   logger.With(logging.String(logging.FieldComponent, "recognizer")),
		cacheTTL: cacheTTL,
	}
}

// Fingerprint derives the cache key for a file from its name and size.
func Fingerprint(name string, size int64) string {
	return textutil.Fingerprint(name, size)
}

// RecognizeBatch recognizes files in order. A single file's failure yields
// a low-confidence result without media info; the batch continues.
func (s *Service) RecognizeBatch(ctx context.Context, files []media.FileInfo, mediaType media.Type) []*media.RecognitionResult {
	s.publish(events.KindRecognitionStarted, events.RecognitionStarted{
		FileCount: len(files),
		MediaType: string(mediaType),
	})

	results := make([]*media.RecognitionResult, len(files))

	// Resolve cache hits first so only misses go to the language model.
	var (
		missFiles   []media.FileInfo
		missIndexes []int
	)
	for i, file := range files {
		if cached := s.cachedResult(ctx, file); cached != nil {
			results[i] = cached
			continue
		}
		missFiles = append(missFiles, file)
		missIndexes = append(missIndexes, i)
	}

	hints := make([]media.ExtractedHints, len(missFiles))
	if s.hints != nil && len(missFiles) > 0 {
		names := make([]string, len(missFiles))
		for i, file := range missFiles {
			names[i] = file.Name
		}
		hints = s.hints.Extract(ctx, names, mediaType)
	}

	for i, file := range missFiles {
		result, err := s.recognizeWithHints(ctx, file, mediaType, hints[i])
		if err != nil {
			s.logger.Warn("recognition failed",
				logging.String(logging.FieldFile, file.Name),
				logging.Error(err),
			)
			result = &media.RecognitionResult{File: file, Confidence: media.ConfidenceLow}
		}
		results[missIndexes[i]] = result
	}

	high, low := 0, 0
	for _, result := range results {
		switch result.Confidence {
		case media.ConfidenceHigh:
			high++
		case media.ConfidenceLow:
			low++
		}
	}
	s.publish(events.KindRecognitionCompleted, events.RecognitionCompleted{
		Total:          len(results),
		HighConfidence: high,
		LowConfidence:  low,
	})

	return results
}

// RecognizeSingle recognizes one file, consulting the cache first.
func (s *Service) RecognizeSingle(ctx context.Context, file media.FileInfo, mediaType media.Type) (*media.RecognitionResult, error) {
	if cached := s.cachedResult(ctx, file); cached != nil {
		return cached, nil
	}

	var llmHints media.ExtractedHints
	if s.hints != nil {
		llmHints = s.hints.ExtractSingle(ctx, file.Name, mediaType)
	}
	return s.recognizeWithHints(ctx, file, mediaType, llmHints)
}

// ReIdentify resolves a file against the catalog using operator-supplied
// hints. The outcome always carries user_override and overwrites any cached
// entry; confidence is high when a match was found, low otherwise.
func (s *Service) ReIdentify(ctx context.Context, file media.FileInfo, mediaType media.Type, query string, year int, catalogID int64) (*media.RecognitionResult, error) {
	var (
		match *media.CatalogMatch
		err   error
	)
	switch {
	case catalogID > 0:
		if mediaType == media.TypeMovie {
			match, err = s.catalog.GetMovieDetails(ctx, catalogID)
		} else {
			match, err = s.catalog.GetTVDetails(ctx, catalogID)
		}
	case query != "":
		match, err = s.catalog.FindBestMatch(ctx, query, mediaType, year, file.Name)
	}
	if err != nil {
		return nil, err
	}

	patternHints := pattern.Extract(file.Name)
	result := &media.RecognitionResult{
		File:         file,
		Confidence:   media.ConfidenceLow,
		UserOverride: true,
		Hints:        &patternHints,
	}
	if match != nil {
		result.Confidence = media.ConfidenceHigh
		result.Info = buildInfo(mediaType, match, patternHints, patternHints)
	}

	s.saveResult(ctx, result)
	return result, nil
}

// SearchCatalog exposes raw catalog search for manual re-identification.
func (s *Service) SearchCatalog(ctx context.Context, query string, mediaType media.Type, year int) ([]media.CatalogMatch, error) {
	return s.catalog.Search(ctx, query, mediaType, year)
}

func (s *Service) recognizeWithHints(ctx context.Context, file media.FileInfo, mediaType media.Type, llmHints media.ExtractedHints) (*media.RecognitionResult, error) {
	patternHints := pattern.Extract(file.Name)
	merged := mergeHints(llmHints, patternHints)

	var (
		match *media.CatalogMatch
		err   error
	)
	if merged.TMDBID > 0 {
		// An extracted catalog id beats a title search when it resolves.
		if mediaType == media.TypeMovie {
			match, err = s.catalog.GetMovieDetails(ctx, merged.TMDBID)
		} else {
			match, err = s.catalog.GetTVDetails(ctx, merged.TMDBID)
		}
		if err != nil {
			s.logger.Debug("catalog id lookup failed, falling back to search",
				logging.String(logging.FieldFile, file.Name),
				logging.Int64("tmdb_id", merged.TMDBID),
				logging.Error(err),
			)
			match = nil
		}
	}
	if match == nil {
		query := searchQuery(llmHints, file.Name)
		match, err = s.catalog.FindBestMatch(ctx, query, mediaType, merged.Year, file.Name)
		if err != nil {
			return nil, err
		}
	}

	result := &media.RecognitionResult{
		File:       file,
		Confidence: media.ConfidenceLow,
		Hints:      &merged,
	}
	if match != nil {
		result.Confidence = match.Confidence
		result.Info = buildInfo(mediaType, match, merged, patternHints)
	}

	s.saveResult(ctx, result)
	return result, nil
}

// searchQuery prefers a native-language title, then a latin title, then the
// cleaned filename.
func searchQuery(hints media.ExtractedHints, filename string) string {
	if hints.TitleNative != "" {
		return hints.TitleNative
	}
	if hints.TitleLatin != "" {
		return hints.TitleLatin
	}
	return pattern.CleanForSearch(filename)
}

// mergeHints overlays language-model hints on pattern hints. The pattern
// value is used only where the language-model field is absent.
func mergeHints(llm, pat media.ExtractedHints) media.ExtractedHints {
	merged := llm
	merged.Filename = pat.Filename
	if merged.Year == 0 {
		merged.Year = pat.Year
	}
	if merged.Season == 0 {
		merged.Season = pat.Season
	}
	if merged.Episode == 0 {
		merged.Episode = pat.Episode
	}
	if merged.EndEpisode == 0 {
		merged.EndEpisode = pat.EndEpisode
	}
	if merged.Quality == "" {
		merged.Quality = pat.Quality
	}
	if merged.Source == "" {
		merged.Source = pat.Source
	}
	if merged.Codec == "" {
		merged.Codec = pat.Codec
	}
	if merged.Audio == "" {
		merged.Audio = pat.Audio
	}
	if merged.ReleaseGroup == "" {
		merged.ReleaseGroup = pat.ReleaseGroup
	}
	return merged
}

// buildInfo assembles merged media info. Season/episode come from the merged
// hints; technical tags always come from the pattern extractor.
func buildInfo(mediaType media.Type, match *media.CatalogMatch, merged, pat media.ExtractedHints) *media.Info {
	if mediaType != media.TypeMovie && mediaType != media.TypeTV {
		mediaType = match.MediaType
	}
	return &media.Info{
		MediaType:     mediaType,
		Title:         match.Title,
		OriginalTitle: match.OriginalTitle,
		Year:          match.Year,
		TMDBID:        match.ID,
		Catalog:       match,
		Season:        merged.Season,
		Episode:       merged.Episode,
		EndEpisode:    merged.EndEpisode,
		Quality:       pat.Quality,
		Source:        pat.Source,
		Codec:         pat.Codec,
		Audio:         pat.Audio,
		ReleaseGroup:  pat.ReleaseGroup,
	}
}

func (s *Service) cachedResult(ctx context.Context, file media.FileInfo) *media.RecognitionResult {
	if s.cache == nil {
		return nil
	}
	entry, err := s.cache.GetRecognition(ctx, Fingerprint(file.Name, file.Size), s.cacheTTL)
	if err != nil {
		s.logger.Warn("cache lookup failed",
			logging.String(logging.FieldFile, file.Name),
			logging.Error(err),
		)
		return nil
	}
	if entry == nil {
		return nil
	}

	var result media.RecognitionResult
	if err := json.Unmarshal([]byte(entry.Payload), &result); err != nil {
		s.logger.Warn("discarding undecodable cache entry",
			logging.String(logging.FieldFile, file.Name),
			logging.Error(err),
		)
		return nil
	}
	result.File = file
	result.Confidence = entry.Confidence
	result.UserOverride = entry.UserOverride
	return &result
}

func (s *Service) saveResult(ctx context.Context, result *media.RecognitionResult) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	entry := store.CachedRecognition{
		Key:          Fingerprint(result.File.Name, result.File.Size),
		Payload:      string(payload),
		Confidence:   result.Confidence,
		UserOverride: result.UserOverride,
	}
	if err := s.cache.SaveRecognition(ctx, entry); err != nil {
		s.logger.Warn("cache write failed",
			logging.String(logging.FieldFile, result.File.Name),
			logging.Error(err),
		)
	}
}

func (s *Service) publish(kind events.Kind, payload any) {
	if s.bus != nil {
		s.bus.Publish(kind, payload)
	}
}
