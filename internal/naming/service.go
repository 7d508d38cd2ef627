package naming

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/store"
)

// Names holds the rendered path components for one file. SeasonFolder is
// empty for movies and fallback names.
type Names struct {
	FolderName   string
	SeasonFolder string
	FileName     string
}

// TemplateSource loads custom naming templates by name. Implemented by
// *store.Store; nil restricts resolution to the built-in presets.
type TemplateSource interface {
	GetNamingTemplate(ctx context.Context, name string) (*store.NamingTemplate, error)
}

// Service renders folder and file names from presets or stored templates.
type Service struct {
	templates TemplateSource
	logger    *slog.Logger
	caser     cases.Caser
}

// NewService constructs a naming service.
func NewService(templates TemplateSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		templates: templates,
		logger:    logger.With(logging.String(logging.FieldComponent, "naming")),
		caser:     cases.Title(language.Und, cases.NoLower),
	}
}

// GenerateNames renders the folder, season folder, and file name for a
// recognition result. A result without media info falls back to names
// derived from the original filename.
func (s *Service) GenerateNames(ctx context.Context, result *media.RecognitionResult, templateName, versionTag string) (*Names, error) {
	if !result.Recognized() {
		return s.fallbackNames(result.File.Name), nil
	}

	template, err := s.resolveTemplate(ctx, templateName)
	if err != nil {
		return nil, err
	}

	tctx := BuildContext(result, versionTag)
	info := result.Info

	if info.MediaType == media.TypeMovie {
		return &Names{
			FolderName: CleanName(Render(template.MovieFolder, tctx)),
			FileName:   CleanName(Render(template.MovieFile, tctx)),
		}, nil
	}

	episodeTemplate := template.EpisodeFile
	if info.EndEpisode > 0 {
		// Multi-episode files render an explicit range, S01E01-E03.
		tctx["episode_range"] = renderEpisodeRange(tctx)
		episodeTemplate = strings.ReplaceAll(episodeTemplate, "E{episode:02d}", "{episode_range}")
	}

	return &Names{
		FolderName:   CleanName(Render(template.TVFolder, tctx)),
		SeasonFolder: CleanName(Render(template.SeasonFolder, tctx)),
		FileName:     CleanName(Render(episodeTemplate, tctx)),
	}, nil
}

// TargetPath composes the full POSIX target path for a file under basePath.
func (s *Service) TargetPath(ctx context.Context, result *media.RecognitionResult, basePath, templateName, versionTag string) (string, error) {
	names, err := s.GenerateNames(ctx, result, templateName, versionTag)
	if err != nil {
		return "", err
	}

	parts := []string{basePath, names.FolderName}
	if result.Recognized() && result.Info.MediaType == media.TypeTV && names.SeasonFolder != "" {
		parts = append(parts, names.SeasonFolder)
	}
	parts = append(parts, names.FileName)
	return path.Join(parts...), nil
}

// resolveTemplate prefers presets, then stored custom templates, then the
// default preset.
func (s *Service) resolveTemplate(ctx context.Context, name string) (*store.NamingTemplate, error) {
	if name == "" {
		name = DefaultPreset
	}
	if preset, ok := Preset(name); ok {
		return preset, nil
	}
	if s.templates != nil {
		custom, err := s.templates.GetNamingTemplate(ctx, name)
		if err != nil {
			return nil, err
		}
		if custom != nil {
			return custom, nil
		}
	}
	s.logger.Warn("naming template not found, using default",
		logging.String("template", name),
	)
	preset, _ := Preset(DefaultPreset)
	return preset, nil
}

func (s *Service) fallbackNames(originalName string) *Names {
	stem := originalName
	if idx := strings.LastIndex(stem, "."); idx > 0 {
		stem = stem[:idx]
	}
	folder := strings.NewReplacer(".", " ", "_", " ").Replace(stem)
	folder = CleanName(s.caser.String(folder))
	if folder == "" {
		folder = "Unknown"
	}
	return &Names{
		FolderName: folder,
		FileName:   originalName,
	}
}

func renderEpisodeRange(ctx Context) string {
	start, _ := toInt(ctx["episode"])
	end, _ := toInt(ctx["end_episode"])
	return Render("E{episode:02d}-E{end_episode:02d}", Context{
		"episode":     start,
		"end_episode": end,
	})
}
