// Package batch turns a directory of exported chat transcripts into a
// training dataset.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/doppel/internal/clock"
	"github.com/MikeSquared-Agency/doppel/internal/dataset"
	"github.com/MikeSquared-Agency/doppel/internal/hermes"
	"github.com/MikeSquared-Agency/doppel/internal/prompt"
	"github.com/MikeSquared-Agency/doppel/internal/slack"
	"github.com/MikeSquared-Agency/doppel/internal/store"
	"github.com/MikeSquared-Agency/doppel/internal/transcript"
)

// ErrNoInput is returned when no transcript files are found.
var ErrNoInput = errors.New("no transcript files found")

const (
	defaultFailureBackoff = 5 * time.Second
	archiveTimeout        = 30 * time.Second
)

// Completer turns a prompt into raw model output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Limiter blocks until the next model call is allowed.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Archiver persists a finished run.
type Archiver interface {
	ArchiveRun(ctx context.Context, run store.Run, records []store.SourcedRecord) error
}

// Publisher emits events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier announces a finished run.
type Notifier interface {
	PostRunSummary(ctx context.Context, s slack.RunSummary) (string, error)
}

// Config holds the generate command configuration.
type Config struct {
	InputDir       string
	SingleFile     string // process a single file only
	OutputPath     string
	SelfName       string
	SessionGap     time.Duration
	Direct         bool // derive roles locally instead of calling the model
	SkipDuplicates bool
	FailureBackoff time.Duration
}

// Runner orchestrates a dataset run.
type Runner struct {
	cfg       Config
	parser    *transcript.Parser
	completer Completer
	limiter   Limiter
	archiver  Archiver
	events    Publisher
	notifier  Notifier
	clock     clock.Clock
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewRunner creates a runner. completer and limiter may be nil in direct mode.
func NewRunner(cfg Config, parser *transcript.Parser, completer Completer, limiter Limiter, clk clock.Clock, logger *slog.Logger) *Runner {
	if cfg.SessionGap <= 0 {
		cfg.SessionGap = transcript.DefaultGap
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = defaultFailureBackoff
	}
	return &Runner{
		cfg:       cfg,
		parser:    parser,
		completer: completer,
		limiter:   limiter,
		clock:     clk,
		sleep:     sleepContext,
		logger:    logger,
	}
}

func (r *Runner) WithArchiver(a Archiver) *Runner {
	r.archiver = a
	return r
}

func (r *Runner) WithEvents(p Publisher) *Runner {
	r.events = p
	return r
}

func (r *Runner) WithNotifier(n Notifier) *Runner {
	r.notifier = n
	return r
}

type parsedFile struct {
	path string
	msgs []transcript.Message
}

// Run executes the pipeline. Records collected before a cancellation are
// still written, and the context error is returned alongside the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	input := r.cfg.InputDir
	if r.cfg.SingleFile != "" {
		input = r.cfg.SingleFile
	}
	report := &Report{
		RunID:     uuid.New().String(),
		Input:     input,
		Output:    r.cfg.OutputPath,
		Direct:    r.cfg.Direct,
		StartedAt: r.clock.Now().UTC(),
		Errors:    []string{},
		path:      ReportPath(r.cfg.OutputPath),
	}

	files, err := r.discoverFiles()
	if err != nil {
		return report, fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		r.logger.Error("no transcript files found", "input", input)
		return report, ErrNoInput
	}
	report.FilesDiscovered = len(files)
	r.logger.Info("files discovered", "count", len(files), "input", input)

	parsed := r.parseFiles(files, report)
	if r.cfg.SkipDuplicates {
		parsed = r.dropDuplicates(parsed, report)
	}

	var records []store.SourcedRecord
	interrupted := false

files:
	for _, pf := range parsed {
		sessions := transcript.Segment(pf.msgs, r.cfg.SessionGap)
		r.logger.Info("processing file", "path", pf.path, "messages", len(pf.msgs), "sessions", len(sessions))

		for i, session := range sessions {
			if ctx.Err() != nil {
				interrupted = true
				break files
			}
			report.Sessions++

			rec, err := r.convert(ctx, session, report)
			if err != nil {
				if ctx.Err() != nil {
					interrupted = true
					break files
				}
				ref := fmt.Sprintf("%s#%d", filepath.Base(pf.path), i)
				r.logger.Error("session skipped", "session", ref, "error", err)
				report.AddError(fmt.Sprintf("%s: %v", ref, err))
				continue
			}
			records = append(records, store.SourcedRecord{Source: filepath.Base(pf.path), Record: rec})
		}
		report.FilesProcessed++
	}

	if interrupted {
		r.logger.Info("run interrupted, writing collected records", "records", len(records))
		report.Interrupted = true
	}

	if err := r.writeOutput(records); err != nil {
		return report, err
	}
	report.Records = len(records)
	report.FinishedAt = r.clock.Now().UTC()

	// Publishing and archiving must still happen after an interrupt.
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	r.archive(postCtx, report, records)
	r.publish(report, records)

	if err := report.Save(); err != nil {
		r.logger.Warn("failed to save report", "path", report.path, "error", err)
	}
	r.notify(postCtx, report)

	r.logger.Info("run complete",
		"run_id", report.RunID,
		"sessions", report.Sessions,
		"records", report.Records,
		"errors", report.Failures(),
		"direct", report.Direct,
	)

	if interrupted {
		return report, ctx.Err()
	}
	return report, nil
}

// convert turns one session into a validated record.
func (r *Runner) convert(ctx context.Context, session transcript.Session, report *Report) (dataset.Record, error) {
	if r.cfg.Direct {
		return dataset.FromSession(session, r.cfg.SelfName), nil
	}

	text := prompt.FormatSession(session, r.cfg.SelfName)
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return dataset.Record{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	raw, err := r.completer.Complete(ctx, text)
	if err != nil {
		r.logger.Warn("model call failed, backing off", "backoff", r.cfg.FailureBackoff.String(), "error", err)
		if serr := r.sleep(ctx, r.cfg.FailureBackoff); serr != nil {
			return dataset.Record{}, serr
		}
		return dataset.Record{}, fmt.Errorf("complete: %w", err)
	}

	v, strategy, err := dataset.Extract(raw)
	if err != nil {
		return dataset.Record{}, err
	}
	if strategy != "direct" {
		r.logger.Warn("model response was not bare JSON", "strategy", strategy)
	}

	rec, err := dataset.Decode(v)
	if err != nil {
		return dataset.Record{}, err
	}
	report.countStrategy(strategy)
	return rec, nil
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		if _, err := os.Stat(r.cfg.SingleFile); err != nil {
			return nil, err
		}
		return []string{r.cfg.SingleFile}, nil
	}

	entries, err := os.ReadDir(r.cfg.InputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		files = append(files, filepath.Join(r.cfg.InputDir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (r *Runner) parseFiles(paths []string, report *Report) []parsedFile {
	var out []parsedFile
	for _, path := range paths {
		msgs, err := r.parser.ParseFile(path)
		if err != nil {
			r.logger.Warn("failed to parse file", "path", path, "error", err)
			report.AddError(fmt.Sprintf("parse %s: %v", path, err))
			continue
		}
		if len(msgs) == 0 {
			r.logger.Warn("no messages found", "path", path)
		}
		out = append(out, parsedFile{path: path, msgs: msgs})
	}
	return out
}

func (r *Runner) dropDuplicates(files []parsedFile, report *Report) []parsedFile {
	fps := make([]transcript.Fingerprint, len(files))
	for i, f := range files {
		fps[i] = transcript.BuildFingerprint(f.path, f.msgs)
	}
	duplicates := transcript.FindDuplicates(fps)

	kept := files[:0:0]
	for _, f := range files {
		if duplicates[f.path] {
			r.logger.Info("skipping duplicate export", "path", f.path)
			report.DuplicatesSkipped = append(report.DuplicatesSkipped, f.path)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func (r *Runner) writeOutput(records []store.SourcedRecord) error {
	out := make([]dataset.Record, len(records))
	for i, sr := range records {
		out[i] = sr.Record
	}
	if err := dataset.WriteFile(r.cfg.OutputPath, out); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	r.logger.Info("dataset written", "path", r.cfg.OutputPath, "records", len(out))
	return nil
}

func (r *Runner) archive(ctx context.Context, report *Report, records []store.SourcedRecord) {
	if r.archiver == nil {
		return
	}
	runID, err := uuid.Parse(report.RunID)
	if err != nil {
		r.logger.Warn("archive skipped: bad run id", "error", err)
		return
	}
	run := store.Run{
		ID:         runID,
		Input:      report.Input,
		Output:     report.Output,
		Files:      report.FilesProcessed,
		Sessions:   report.Sessions,
		Records:    len(records),
		Failures:   report.Failures(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := r.archiver.ArchiveRun(ctx, run, records); err != nil {
		r.logger.Error("archive failed", "run_id", report.RunID, "error", err)
		report.AddError(fmt.Sprintf("archive: %v", err))
		return
	}
	r.logger.Info("run archived", "run_id", report.RunID, "records", len(records))
}

func (r *Runner) publish(report *Report, records []store.SourcedRecord) {
	if r.events == nil {
		return
	}
	for i, sr := range records {
		ev := hermes.RecordWritten{RunID: report.RunID, Index: i, Source: sr.Source, Turns: len(sr.Record.Contents)}
		if err := r.events.Publish(hermes.SubjectRecordWritten, ev); err != nil {
			r.logger.Warn("failed to publish record event", "index", i, "error", err)
		}
	}
	err := r.events.Publish(hermes.SubjectBatchCompleted, hermes.BatchCompleted{
		RunID:      report.RunID,
		Output:     report.Output,
		Files:      report.FilesProcessed,
		Sessions:   report.Sessions,
		Records:    report.Records,
		Failures:   report.Failures(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	})
	if err != nil {
		r.logger.Warn("failed to publish completion event", "error", err)
	}
}

func (r *Runner) notify(ctx context.Context, report *Report) {
	if r.notifier == nil {
		return
	}
	_, err := r.notifier.PostRunSummary(ctx, slack.RunSummary{
		RunID:             report.RunID,
		Input:             report.Input,
		Output:            report.Output,
		Files:             report.FilesProcessed,
		SkippedDuplicates: len(report.DuplicatesSkipped),
		Sessions:          report.Sessions,
		Records:           report.Records,
		Failures:          report.Failures(),
		Duration:          report.FinishedAt.Sub(report.StartedAt),
		Direct:            report.Direct,
	})
	if err != nil {
		r.logger.Warn("failed to post run summary", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
