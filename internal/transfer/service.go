// Package transfer routes recognized files to their destinations: rule
// match, name rendering, backend move, history row per attempt.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"organ/internal/events"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/naming"
	"organ/internal/rules"
	"organ/internal/services"
	"organ/internal/store"
	"organ/internal/vfs"
)

// Store is the persistence surface the orchestrator consumes.
type Store interface {
	GetRule(ctx context.Context, id string) (*store.Rule, error)
	AddTransferRecord(ctx context.Context, record *store.TransferRecord) error
}

// AdapterSource hands out the filesystem adapter serving a backend.
type AdapterSource interface {
	For(backend media.Backend) (vfs.Adapter, error)
}

// ItemError pairs a file with the failure it hit. Batches return these
// instead of aborting on the first bad item.
type ItemError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Report summarizes a dry run. Items carry their routing fields filled
// in; nothing on any backend has been touched.
type Report struct {
	Total            int                        `json:"total"`
	Recognized       int                        `json:"recognized"`
	HighConfidence   int                        `json:"high_confidence"`
	MediumConfidence int                        `json:"medium_confidence"`
	LowConfidence    int                        `json:"low_confidence"`
	Items            []*media.RecognitionResult `json:"items"`
	Errors           []ItemError                `json:"errors,omitempty"`
}

// Result summarizes an executed batch.
type Result struct {
	Transferred int         `json:"transferred"`
	Failed      int         `json:"failed"`
	Skipped     int         `json:"skipped"`
	Errors      []ItemError `json:"errors,omitempty"`
}

// Success reports whether every attempted item landed.
func (r *Result) Success() bool { return r.Failed == 0 }

// Options tunes an execute batch. The zero value attributes to no job,
// matches rules per item, and overwrites existing destinations.
type Options struct {
	JobID        int64
	RuleOverride string
	Template     string
	VersionTag   string
	KeepExisting bool
}

// Service orchestrates transfers across the rule engine, naming service,
// and filesystem adapters.
type Service struct {
	engine   *rules.Engine
	namer    *naming.Service
	adapters AdapterSource
	store    Store
	bus      *events.Bus
	logger   *slog.Logger
}

// NewService constructs a transfer orchestrator.
func NewService(engine *rules.Engine, namer *naming.Service, adapters AdapterSource, st Store, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		engine:   engine,
		namer:    namer,
		adapters: adapters,
		store:    st,
		bus:      bus,
		logger:   logger.With(logging.String(logging.FieldComponent, "transfer")),
	}
}

// DryRun resolves rules and names for each result without touching any
// backend. Per-file errors are collected, not propagated.
func (s *Service) DryRun(ctx context.Context, items []*media.RecognitionResult, backend media.Backend) (*Report, error) {
	report := &Report{Total: len(items)}
	for _, item := range items {
		if item == nil {
			continue
		}
		if err := s.route(ctx, item, backend); err != nil {
			s.logger.Error("dry-run routing failed",
				logging.String(logging.FieldFile, item.File.Name),
				logging.Error(err),
			)
			report.Errors = append(report.Errors, ItemError{File: item.File.Name, Error: err.Error()})
			continue
		}
		if item.Recognized() {
			report.Recognized++
		}
		switch item.Confidence {
		case media.ConfidenceHigh:
			report.HighConfidence++
		case media.ConfidenceMedium:
			report.MediumConfidence++
		default:
			report.LowConfidence++
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

// Execute moves each routed item to its destination and appends one
// history row per attempt. One item failing never aborts the batch.
func (s *Service) Execute(ctx context.Context, items []*media.RecognitionResult, backend media.Backend, opts Options) (*Result, error) {
	adapter, err := s.adapters.For(backend)
	if err != nil {
		return nil, err
	}

	s.publish(events.KindTransferStarted, events.TransferStarted{JobID: opts.JobID, FileCount: len(items)})

	result := &Result{}
	for _, item := range items {
		if item == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Skipped += remaining(items, item)
			break
		}

		target, err := s.executeOne(ctx, adapter, item, backend, opts)
		done := result.Transferred + result.Failed + result.Skipped + 1
		switch {
		case err == nil && target == "":
			result.Skipped++
			s.record(ctx, opts.JobID, item, item.File.Path, "", backend, store.OutcomeSkipped, "", 0)
		case err == nil:
			result.Transferred++
			s.publish(events.KindTransferProgress, events.TransferProgress{
				JobID:      opts.JobID,
				SourcePath: item.File.Path,
				TargetPath: target,
				Completed:  done,
				Total:      len(items),
			})
		default:
			result.Failed++
			result.Errors = append(result.Errors, ItemError{File: item.File.Name, Error: err.Error()})
			s.logger.Error("transfer failed",
				logging.String(logging.FieldFile, item.File.Name),
				logging.String(logging.FieldBackend, string(backend)),
				logging.Error(err),
			)
		}
	}

	s.publish(events.KindTransferCompleted, events.TransferCompleted{
		JobID:     opts.JobID,
		Succeeded: result.Transferred,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	})
	return result, nil
}

// executeOne routes and moves a single item. An empty target with nil
// error means the item was skipped (no media info, no rule).
func (s *Service) executeOne(ctx context.Context, adapter vfs.Adapter, item *media.RecognitionResult, backend media.Backend, opts Options) (string, error) {
	if opts.RuleOverride != "" {
		rule, err := s.store.GetRule(ctx, opts.RuleOverride)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "transfer", "rule_override", "load override rule", err)
		}
		applyRule(item, rule)
	} else if item.TargetPath == "" {
		if err := s.route(ctx, item, backend); err != nil {
			return "", err
		}
	}
	if item.TargetPath == "" {
		// Unrouted items (no media info or no matching rule) are skipped.
		return "", nil
	}

	template := opts.Template
	if template == "" {
		template = s.templateFor(ctx, item)
	}
	target, err := s.namer.TargetPath(ctx, item, item.TargetPath, template, opts.VersionTag)
	if err != nil {
		s.record(ctx, opts.JobID, item, item.File.Path, item.TargetPath, backend, store.OutcomeFailed, err.Error(), 0)
		return "", err
	}

	started := time.Now()
	if err := s.moveOne(ctx, adapter, item.File.Path, target, !opts.KeepExisting); err != nil {
		s.record(ctx, opts.JobID, item, item.File.Path, target, backend, store.OutcomeFailed, err.Error(), time.Since(started))
		return "", err
	}
	s.record(ctx, opts.JobID, item, item.File.Path, target, backend, store.OutcomeCompleted, "", time.Since(started))
	return target, nil
}

func (s *Service) moveOne(ctx context.Context, adapter vfs.Adapter, source, target string, overwrite bool) error {
	if err := adapter.MkdirAll(ctx, vfs.Parent(target)); err != nil {
		return err
	}
	return adapter.Move(ctx, source, target, overwrite)
}

// TransferSeries moves episodes season by season. An existing season
// folder is deleted recursively and recreated, so a re-run replaces the
// whole season rather than merging into it.
func (s *Service) TransferSeries(ctx context.Context, items []*media.RecognitionResult, backend media.Backend, targetBase string, opts Options) (*Result, error) {
	result := &Result{}
	if len(items) == 0 {
		return result, nil
	}
	adapter, err := s.adapters.For(backend)
	if err != nil {
		return nil, err
	}

	seasons := make(map[int][]*media.RecognitionResult)
	for _, item := range items {
		if item == nil {
			continue
		}
		season := 1
		if item.Recognized() && item.Info.Season > 0 {
			season = item.Info.Season
		}
		seasons[season] = append(seasons[season], item)
	}
	order := make([]int, 0, len(seasons))
	for season := range seasons {
		order = append(order, season)
	}
	sort.Ints(order)

	s.publish(events.KindTransferStarted, events.TransferStarted{JobID: opts.JobID, FileCount: len(items)})
	for _, season := range order {
		s.transferSeason(ctx, adapter, seasons[season], backend, targetBase, season, opts, result)
	}
	s.publish(events.KindTransferCompleted, events.TransferCompleted{
		JobID:     opts.JobID,
		Succeeded: result.Transferred,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	})
	return result, nil
}

func (s *Service) transferSeason(ctx context.Context, adapter vfs.Adapter, items []*media.RecognitionResult, backend media.Backend, targetBase string, season int, opts Options, result *Result) {
	names, err := s.namer.GenerateNames(ctx, items[0], opts.Template, opts.VersionTag)
	if err != nil {
		s.failSeason(ctx, items, backend, opts, result, err)
		return
	}
	seasonFolder := names.SeasonFolder
	if seasonFolder == "" {
		seasonFolder = fmt.Sprintf("Season %02d", season)
	}
	seasonPath := vfs.Join(targetBase, names.FolderName, seasonFolder)

	exists, err := adapter.Exists(ctx, seasonPath)
	if err != nil {
		s.failSeason(ctx, items, backend, opts, result, err)
		return
	}
	if exists {
		s.logger.Info("replacing existing season folder", logging.String("path", seasonPath))
		if err := adapter.Delete(ctx, seasonPath, true); err != nil {
			s.failSeason(ctx, items, backend, opts, result, err)
			return
		}
	}
	if err := adapter.MkdirAll(ctx, seasonPath); err != nil {
		s.failSeason(ctx, items, backend, opts, result, err)
		return
	}

	for _, item := range items {
		epNames, err := s.namer.GenerateNames(ctx, item, opts.Template, opts.VersionTag)
		if err != nil {
			s.failOne(ctx, item, "", backend, opts, result, err)
			continue
		}
		target := vfs.Join(seasonPath, epNames.FileName)
		started := time.Now()
		if err := adapter.Move(ctx, item.File.Path, target, true); err != nil {
			s.failOne(ctx, item, target, backend, opts, result, err)
			continue
		}
		s.record(ctx, opts.JobID, item, item.File.Path, target, backend, store.OutcomeCompleted, "", time.Since(started))
		result.Transferred++
		s.publish(events.KindTransferProgress, events.TransferProgress{
			JobID:      opts.JobID,
			SourcePath: item.File.Path,
			TargetPath: target,
			Completed:  result.Transferred + result.Failed,
			Total:      len(items),
		})
	}
}

func (s *Service) failSeason(ctx context.Context, items []*media.RecognitionResult, backend media.Backend, opts Options, result *Result, err error) {
	for _, item := range items {
		s.failOne(ctx, item, "", backend, opts, result, err)
	}
}

func (s *Service) failOne(ctx context.Context, item *media.RecognitionResult, target string, backend media.Backend, opts Options, result *Result, err error) {
	result.Failed++
	result.Errors = append(result.Errors, ItemError{File: item.File.Name, Error: err.Error()})
	s.logger.Error("episode transfer failed",
		logging.String(logging.FieldFile, item.File.Name),
		logging.Error(err),
	)
	s.record(ctx, opts.JobID, item, item.File.Path, target, backend, store.OutcomeFailed, err.Error(), 0)
}

// route fills the item's routing fields from the first matching rule.
// Items with no media info or no matching rule stay unrouted.
func (s *Service) route(ctx context.Context, item *media.RecognitionResult, backend media.Backend) error {
	rule, err := s.engine.Match(ctx, item, backend)
	if err != nil {
		return err
	}
	if rule == nil {
		return nil
	}
	applyRule(item, rule)

	names, err := s.namer.GenerateNames(ctx, item, rule.NamingTemplate, "")
	if err != nil {
		return err
	}
	item.TargetFolder = names.FolderName
	item.TargetFile = names.FileName
	return nil
}

func applyRule(item *media.RecognitionResult, rule *store.Rule) {
	item.MatchedRuleID = rule.ID
	item.MatchedRuleName = rule.Name
	item.TargetPath = SubstitutePathTemplate(rule.TargetPath, item)
}

// templateFor recovers the naming template of the rule the item matched
// during routing. Falls back to the default preset.
func (s *Service) templateFor(ctx context.Context, item *media.RecognitionResult) string {
	if item.MatchedRuleID == "" {
		return ""
	}
	rule, err := s.store.GetRule(ctx, item.MatchedRuleID)
	if err != nil || rule == nil {
		return ""
	}
	return rule.NamingTemplate
}

func (s *Service) record(ctx context.Context, jobID int64, item *media.RecognitionResult, source, target string, backend media.Backend, outcome store.TransferOutcome, message string, elapsed time.Duration) {
	record := &store.TransferRecord{
		JobID:        jobID,
		SourcePath:   source,
		TargetPath:   target,
		Backend:      backend,
		Outcome:      outcome,
		Bytes:        item.File.Size,
		DurationMS:   elapsed.Milliseconds(),
		ErrorMessage: message,
	}
	if err := s.store.AddTransferRecord(ctx, record); err != nil {
		s.logger.Error("record transfer history",
			logging.String(logging.FieldFile, item.File.Name),
			logging.Error(err),
		)
	}
}

func (s *Service) publish(kind events.Kind, payload any) {
	if s.bus != nil {
		s.bus.Publish(kind, payload)
	}
}

func remaining(items []*media.RecognitionResult, from *media.RecognitionResult) int {
	count := 0
	seen := false
	for _, item := range items {
		if item == from {
			seen = true
		}
		if seen && item != nil {
			count++
		}
	}
	return count
}

// SubstitutePathTemplate expands {title} {year} {tmdb_id} {quality}
// {season} in a rule's target path. Results without media info keep the
// template untouched.
func SubstitutePathTemplate(template string, item *media.RecognitionResult) string {
	if !item.Recognized() {
		return template
	}
	info := item.Info

	title := info.Title
	if title == "" {
		title = "Unknown"
	}
	year := "Unknown"
	if info.Year > 0 {
		year = fmt.Sprintf("%d", info.Year)
	}
	season := ""
	if info.Season > 0 {
		season = fmt.Sprintf("%02d", info.Season)
	}

	replacer := map[string]string{
		"{title}":   title,
		"{year}":    year,
		"{tmdb_id}": fmt.Sprintf("%d", info.TMDBID),
		"{quality}": info.Quality,
		"{season}":  season,
	}
	out := template
	for key, value := range replacer {
		out = strings.ReplaceAll(out, key, value)
	}
	return out
}
