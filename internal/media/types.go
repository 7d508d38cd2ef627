// Package media defines the core data model shared across recognition,
// rule matching, naming, and transfer.
package media

import (
	"path"
	"strings"
	"time"
)

// Type classifies a media item.
type Type string

const (
	TypeMovie   Type = "movie"
	TypeTV      Type = "tv"
	TypeUnknown Type = "unknown"
	// TypeAll is the wildcard used by rule filters only.
	TypeAll Type = "all"
)

// ParseType normalizes a media type string, defaulting to unknown.
func ParseType(value string) Type {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie":
		return TypeMovie
	case "tv", "series", "show":
		return TypeTV
	case "all":
		return TypeAll
	default:
		return TypeUnknown
	}
}

// Confidence classifies how trustworthy an automatic catalog match is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank returns an ordering value for threshold comparisons (higher is better).
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Backend identifies a storage backend.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendCloud  Backend = "clouddrive"
	BackendWebDAV Backend = "webdav"
	// BackendAll is the wildcard used by rule filters only.
	BackendAll Backend = "all"
)

// ParseBackend normalizes a backend tag.
func ParseBackend(value string) Backend {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "local":
		return BackendLocal
	case "clouddrive", "cloud", "115":
		return BackendCloud
	case "webdav", "dav":
		return BackendWebDAV
	case "all":
		return BackendAll
	default:
		return Backend(strings.ToLower(strings.TrimSpace(value)))
	}
}

// FileInfo is an immutable snapshot of a filesystem entry as reported by a
// VFS adapter listing. The FileID and PickCode fields carry backend-specific
// handles and are empty for backends without them.
type FileInfo struct {
	Name     string
	Path     string
	Size     int64
	IsDir    bool
	Ext      string
	Modified time.Time
	FileID   string
	PickCode string
	Backend  Backend
}

// Stem returns the file name without its extension.
func (f FileInfo) Stem() string {
	return strings.TrimSuffix(f.Name, path.Ext(f.Name))
}

// ExtractedHints carries filename-derived fields. The pattern extractor and
// the LLM extractor both produce this shape; zero values mean "not found".
type ExtractedHints struct {
	Filename     string `json:"filename"`
	TitleNative  string `json:"title_cn"`
	TitleLatin   string `json:"title_en"`
	Year         int    `json:"year"`
	TMDBID       int64  `json:"tmdb_id"`
	Season       int    `json:"season"`
	Episode      int    `json:"episode"`
	EndEpisode   int    `json:"end_episode"`
	Quality      string `json:"quality"`
	Source       string `json:"source"`
	Codec        string `json:"codec"`
	Audio        string `json:"audio"`
	ReleaseGroup string `json:"release_group"`
}

// CatalogMatch is a canonical catalog entry with match confidence attached.
type CatalogMatch struct {
	ID               int64        `json:"tmdb_id"`
	MediaType        Type         `json:"media_type"`
	Title            string       `json:"title"`
	OriginalTitle    string       `json:"original_title"`
	Year             int          `json:"year"`
	Overview         string       `json:"overview"`
	GenreIDs         []int64      `json:"genre_ids"`
	OriginCountry    []string     `json:"origin_country"`
	OriginalLanguage string       `json:"original_language"`
	Seasons          []SeasonInfo `json:"seasons,omitempty"`
	AlternateTitles  []string     `json:"alternate_titles,omitempty"`
	Confidence       Confidence   `json:"match_confidence"`
}

// SeasonInfo summarizes one season of a series.
type SeasonInfo struct {
	Number       int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Info is the merged media description attached to a recognized file.
type Info struct {
	MediaType     Type          `json:"media_type"`
	Title         string        `json:"title"`
	OriginalTitle string        `json:"original_title,omitempty"`
	Year          int           `json:"year,omitempty"`
	TMDBID        int64         `json:"tmdb_id,omitempty"`
	Catalog       *CatalogMatch `json:"catalog,omitempty"`
	Season        int           `json:"season,omitempty"`
	Episode       int           `json:"episode,omitempty"`
	EndEpisode    int           `json:"end_episode,omitempty"`
	EpisodeTitle  string        `json:"episode_title,omitempty"`
	Quality       string        `json:"quality,omitempty"`
	Source        string        `json:"source,omitempty"`
	Codec         string        `json:"codec,omitempty"`
	Audio         string        `json:"audio,omitempty"`
	ReleaseGroup  string        `json:"release_group,omitempty"`
}

// RecognitionResult is the unit of work flowing through the pipeline.
// A result with nil Info never carries a routing outcome.
type RecognitionResult struct {
	File         FileInfo        `json:"file"`
	Info         *Info           `json:"info,omitempty"`
	Confidence   Confidence      `json:"confidence"`
	Hints        *ExtractedHints `json:"hints,omitempty"`
	UserOverride bool            `json:"user_override,omitempty"`

	// Routing outcome, populated by the transfer orchestrator.
	MatchedRuleID   string `json:"matched_rule_id,omitempty"`
	MatchedRuleName string `json:"matched_rule_name,omitempty"`
	TargetPath      string `json:"target_path,omitempty"`
	TargetFolder    string `json:"target_folder,omitempty"`
	TargetFile      string `json:"target_file,omitempty"`
}

// Recognized reports whether the pipeline attached media info to the result.
func (r *RecognitionResult) Recognized() bool {
	return r != nil && r.Info != nil
}

// VideoExtensions lists the file extensions treated as media files by
// monitors and scans.
var VideoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
	".webm": {}, ".m4v": {}, ".ts": {}, ".m2ts": {},
}

// IsVideo reports whether the path has a known video extension.
func IsVideo(name string) bool {
	_, ok := VideoExtensions[strings.ToLower(path.Ext(name))]
	return ok
}
