package naming

import (
	"context"
	"testing"

	"organ/internal/media"
	"organ/internal/store"
)

type fakeTemplates struct {
	templates map[string]*store.NamingTemplate
}

func (f *fakeTemplates) GetNamingTemplate(ctx context.Context, name string) (*store.NamingTemplate, error) {
	return f.templates[name], nil
}

func movieResult() *media.RecognitionResult {
	return &media.RecognitionResult{
		File: media.FileInfo{Name: "Title.2020.1080p.mkv", Ext: ".mkv"},
		Info: &media.Info{
			MediaType: media.TypeMovie,
			Title:     "Title",
			Year:      2020,
			TMDBID:    99,
			Quality:   "1080p",
		},
	}
}

func episodeResult() *media.RecognitionResult {
	return &media.RecognitionResult{
		File: media.FileInfo{Name: "Show.Name.S02E05.1080p.WEB-DL.mkv", Ext: ".mkv"},
		Info: &media.Info{
			MediaType: media.TypeTV,
			Title:     "Show Name",
			Year:      2019,
			TMDBID:    1234,
			Season:    2,
			Episode:   5,
			Quality:   "1080p",
			Source:    "WEB-DL",
		},
	}
}

func TestGenerateNamesMoviePreset(t *testing.T) {
	svc := NewService(nil, nil)

	names, err := svc.GenerateNames(context.Background(), movieResult(), "emby_standard", "")
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}
	if names.FolderName != "Title (2020) {tmdb-99}" {
		t.Errorf("folder = %q", names.FolderName)
	}
	if names.FileName != "Title (2020).mkv" {
		t.Errorf("file = %q", names.FileName)
	}
	if names.SeasonFolder != "" {
		t.Errorf("movie should have no season folder, got %q", names.SeasonFolder)
	}
}

func TestGenerateNamesMovieVersionTag(t *testing.T) {
	svc := NewService(nil, nil)

	names, err := svc.GenerateNames(context.Background(), movieResult(), "plex_standard", "[4K]")
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}
	if names.FolderName != "Title (2020)" {
		t.Errorf("folder = %q", names.FolderName)
	}
	if names.FileName != "Title (2020) [4K].mkv" {
		t.Errorf("file = %q", names.FileName)
	}
}

func TestTargetPathEpisode(t *testing.T) {
	svc := NewService(nil, nil)

	target, err := svc.TargetPath(context.Background(), episodeResult(), "/media/tv", "emby_standard", "")
	if err != nil {
		t.Fatalf("TargetPath: %v", err)
	}
	want := "/media/tv/Show Name (2019) {tmdb-1234}/Season 02/Show Name (2019) - S02E05.mkv"
	if target != want {
		t.Errorf("target = %q, want %q", target, want)
	}
}

func TestGenerateNamesMultiEpisodeRange(t *testing.T) {
	svc := NewService(nil, nil)

	result := episodeResult()
	result.Info.Season = 1
	result.Info.Episode = 1
	result.Info.EndEpisode = 3

	names, err := svc.GenerateNames(context.Background(), result, "", "")
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}
	if names.FileName != "Show Name (2019) - S01E01-E03.mkv" {
		t.Errorf("file = %q", names.FileName)
	}
}

func TestGenerateNamesCustomTemplate(t *testing.T) {
	source := &fakeTemplates{templates: map[string]*store.NamingTemplate{
		"by-decade": {
			Name:        "by-decade",
			MovieFolder: "{decade}/{first_letter}/{title} ({year})",
			MovieFile:   "{title} ({year}) {quality}{ext}",
		},
	}}
	svc := NewService(source, nil)

	names, err := svc.GenerateNames(context.Background(), movieResult(), "by-decade", "")
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}
	if names.FolderName != "2020s／T／Title (2020)" {
		t.Errorf("folder = %q", names.FolderName)
	}
	if names.FileName != "Title (2020) 1080p.mkv" {
		t.Errorf("file = %q", names.FileName)
	}
}

func TestGenerateNamesUnknownTemplateFallsBackToDefault(t *testing.T) {
	svc := NewService(&fakeTemplates{}, nil)

	names, err := svc.GenerateNames(context.Background(), movieResult(), "missing", "")
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}
	if names.FolderName != "Title (2020) {tmdb-99}" {
		t.Errorf("folder = %q", names.FolderName)
	}
}

func TestGenerateNamesFallbackWithoutMediaInfo(t *testing.T) {
	svc := NewService(nil, nil)

	result := &media.RecognitionResult{
		File: media.FileInfo{Name: "some.random_download.mkv"},
	}
	names, err := svc.GenerateNames(context.Background(), result, "", "")
	if err != nil {
		t.Fatalf("GenerateNames: %v", err)
	}
	if names.FolderName != "Some Random Download" {
		t.Errorf("folder = %q", names.FolderName)
	}
	if names.FileName != "some.random_download.mkv" {
		t.Errorf("file = %q", names.FileName)
	}
}

func TestCleanNameFullWidthReplacement(t *testing.T) {
	got := CleanName(`Mission: Impossible / Part "One"?  `)
	want := "Mission： Impossible ／ Part ＂One＂？"
	if got != want {
		t.Errorf("CleanName = %q, want %q", got, want)
	}
}

func TestRenderUnresolvedVariablesEmpty(t *testing.T) {
	got := Render("{title} {mystery} end", Context{"title": "X"})
	if got != "X  end" {
		t.Errorf("Render = %q", got)
	}
}

func TestRenderZeroPad(t *testing.T) {
	got := Render("Season {season:02d}", Context{"season": 7})
	if got != "Season 07" {
		t.Errorf("Render = %q", got)
	}
}

func TestBuildContextDerivedFields(t *testing.T) {
	ctx := BuildContext(movieResult(), "[HDR]")
	if ctx["decade"] != "2020s" {
		t.Errorf("decade = %v", ctx["decade"])
	}
	if ctx["first_letter"] != "T" {
		t.Errorf("first_letter = %v", ctx["first_letter"])
	}
	if ctx["version"] != " [HDR]" {
		t.Errorf("version = %v", ctx["version"])
	}

	cjk := movieResult()
	cjk.Info.Title = "流浪地球"
	if got := BuildContext(cjk, "")["first_letter"]; got != "#" {
		t.Errorf("first_letter for CJK title = %v", got)
	}
}
