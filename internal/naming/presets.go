package naming

import (
	"sort"

	"organ/internal/store"
)

// DefaultPreset is used when no template name is given.
const DefaultPreset = "emby_standard"

// Built-in naming layouts. Custom templates saved in the store may shadow
// neither of these names; preset lookup wins.
var presets = map[string]*store.NamingTemplate{
	"emby_standard": {
		Name:         "emby_standard",
		MovieFolder:  "{title} ({year}) {tmdb-{tmdb_id}}",
		MovieFile:    "{title} ({year}){version}{ext}",
		TVFolder:     "{title} ({year}) {tmdb-{tmdb_id}}",
		SeasonFolder: "Season {season:02d}",
		EpisodeFile:  "{title} ({year}) - S{season:02d}E{episode:02d}{ext}",
	},
	"plex_standard": {
		Name:         "plex_standard",
		MovieFolder:  "{title} ({year})",
		MovieFile:    "{title} ({year}){version}{ext}",
		TVFolder:     "{title} ({year})",
		SeasonFolder: "Season {season:02d}",
		EpisodeFile:  "{title} ({year}) - S{season:02d}E{episode:02d}{ext}",
	},
}

// Preset returns a built-in template by name.
func Preset(name string) (*store.NamingTemplate, bool) {
	template, ok := presets[name]
	return template, ok
}

// PresetNames lists the built-in template names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
