package pattern_test

import (
	"testing"

	"organ/internal/recognizer/pattern"
)

func TestExtractEpisodeInfoForms(t *testing.T) {
	cases := []struct {
		name                         string
		filename                     string
		season, episode, endEpisode  int
	}{
		{"standard", "Show.Name.S02E05.1080p.WEB-DL.mkv", 2, 5, 0},
		{"sep", "Show.Name.S01EP03.mkv", 1, 3, 0},
		{"dotted", "Show.S01.E02.mkv", 1, 2, 0},
		{"cross", "Show 1x01.mkv", 1, 1, 0},
		{"multi", "Show.S01E01-E03.mkv", 1, 1, 3},
		{"multiNoPrefix", "Show.EP05-06.mkv", 1, 5, 6},
		{"episodeOnly", "Show.EP07.mkv", 0, 7, 0},
		{"cjkEpisode", "节目 第六集.mkv", 0, 6, 0},
		{"cjkTens", "节目 第十五集.mkv", 0, 15, 0},
		{"standalone", "Show 12.mkv", 0, 12, 0},
		{"yearIgnored", "Movie.2020.mkv", 0, 0, 0},
		{"none", "Movie.mkv", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			season, episode, end := pattern.ExtractEpisodeInfo(tc.filename)
			if season != tc.season || episode != tc.episode || end != tc.endEpisode {
				t.Fatalf("ExtractEpisodeInfo(%q) = (%d, %d, %d), want (%d, %d, %d)",
					tc.filename, season, episode, end, tc.season, tc.episode, tc.endEpisode)
			}
		})
	}
}

func TestExtractSeasonNumber(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"Show Season 3", 3},
		{"Show S04", 4},
		{"节目 第三季", 3},
		{"节目 第1季", 1},
		{"节目 三季", 3},
		{"节目 第二十一季", 21},
		{"no markers here", 1},
	}
	for _, tc := range cases {
		if got := pattern.ExtractSeasonNumber(tc.text, 1); got != tc.want {
			t.Errorf("ExtractSeasonNumber(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestExtractQualitySourceCodecAudio(t *testing.T) {
	hints := pattern.Extract("Show.Name.S02E05.2160p.WEB-DL.HEVC.Atmos-GROUP.mkv")
	if hints.Quality != "2160p" {
		t.Errorf("quality = %q", hints.Quality)
	}
	if hints.Source != "WEB-DL" {
		t.Errorf("source = %q", hints.Source)
	}
	if hints.Codec != "HEVC" {
		t.Errorf("codec = %q", hints.Codec)
	}
	if hints.Audio != "Atmos" {
		t.Errorf("audio = %q", hints.Audio)
	}
	if hints.ReleaseGroup != "GROUP" {
		t.Errorf("release group = %q", hints.ReleaseGroup)
	}
	if hints.Season != 2 || hints.Episode != 5 {
		t.Errorf("season/episode = %d/%d", hints.Season, hints.Episode)
	}
}

func TestExtractYear(t *testing.T) {
	hints := pattern.Extract("Movie.Title.2019.1080p.BluRay.x264-GRP.mkv")
	if hints.Year != 2019 {
		t.Fatalf("year = %d", hints.Year)
	}
	if hints.Quality != "1080p" || hints.Source != "BluRay" || hints.Codec != "AVC" {
		t.Fatalf("unexpected metadata: %+v", hints)
	}
}

func TestResolutionDigitsNotEpisode(t *testing.T) {
	_, episode, _ := pattern.ExtractEpisodeInfo("Movie.1080p.mkv")
	if episode != 0 {
		t.Fatalf("resolution digits parsed as episode %d", episode)
	}
}

func TestCleanForSearch(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Show.Name.S02E05.1080p.WEB-DL.mkv", "Show Name"},
		{"Movie.Title.1080p.BluRay.x264-GRP.mkv", "Movie Title"},
		{"[Group] Another Show EP01.mkv", "Another Show EP01"},
	}
	for _, tc := range cases {
		if got := pattern.CleanForSearch(tc.in); got != tc.want {
			t.Errorf("CleanForSearch(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
