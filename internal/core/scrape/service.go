// Package scrape coordinates scrape jobs: it reserves the profile, runs the
// worker, decodes and normalizes the artifact and persists the posts.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"profilescraper/internal/core/artifact"
	"profilescraper/internal/core/model"
	"profilescraper/internal/core/posts"
	"profilescraper/internal/core/supervisor"
	"profilescraper/internal/logger"
)

// lockGrace is added to the worker timeout for the profile lease so that
// artifact decoding and storage finish under the same lease.
const lockGrace = time.Minute

// DefaultQueueWait is how long an async job may sit in the queue before its
// lease lapses and the profile can be scraped again.
const DefaultQueueWait = 30 * time.Minute

type Runner interface {
	Run(ctx context.Context, profile string, sink supervisor.Sink) (*supervisor.Outcome, error)
	Timeout() time.Duration
}

type Resolver interface {
	Resolve(ctx context.Context, profile string, kind artifact.Kind, stdout []byte) ([]model.FlatRow, error)
}

type PostStore interface {
	Save(ctx context.Context, doc model.ProfilePosts) error
	Get(ctx context.Context, profile string) (*model.ProfilePosts, error)
	All(ctx context.Context) ([]model.ProfilePosts, error)
}

type JobStore interface {
	Record(ctx context.Context, j *model.Job) error
	Get(ctx context.Context, profile string) (*model.Job, error)
}

// Dispatcher hands a reserved profile to background execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, p TaskPayload) error
}

type Config struct {
	Kind artifact.Kind
	Mode Mode
	// QueueWait extends the lease of queued async jobs until a worker
	// picks them up.
	QueueWait time.Duration
}

type Deps struct {
	Runner     Runner
	Resolver   Resolver
	Posts      PostStore
	Jobs       JobStore
	Locks      Locker
	Dispatcher Dispatcher
}

type Service struct {
	cfg Config
	Deps
	now func() time.Time
	log *logger.Logger
}

func NewService(cfg Config, d Deps) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeSync
	}
	if cfg.Kind == "" {
		cfg.Kind = artifact.KindDelimitedFile
	}
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = DefaultQueueWait
	}
	return &Service{cfg: cfg, Deps: d, now: time.Now, log: logger.New("ScrapeService")}
}

// DefaultMode is used when a request names no mode.
func (s *Service) DefaultMode() Mode { return s.cfg.Mode }

type Request struct {
	Profile string
	Mode    Mode
	// Sink receives worker output in ModeStream.
	Sink supervisor.Sink
}

type Result struct {
	Profile  string             `json:"profile"`
	Posts    []model.PostRecord `json:"posts"`
	Accepted bool               `json:"accepted,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Job      *model.Job         `json:"job,omitempty"`
}

// Start validates and reserves req.Profile, then runs it in the requested
// mode. Invalid and conflicting requests are rejected before any process is
// spawned.
func (s *Service) Start(ctx context.Context, req Request) (*Result, error) {
	r, err := s.Reserve(ctx, req.Profile)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, req.Mode, req.Sink)
}

// Reservation is a validated profile holding the in-flight lease. Exactly one
// of Run or Cancel must be called.
type Reservation struct {
	s       *Service
	profile string
	lease   Lease
	once    sync.Once
}

func (s *Service) Reserve(ctx context.Context, profile string) (*Reservation, error) {
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}
	lease, err := s.Locks.Acquire(ctx, profile, s.leaseTTL())
	if err != nil {
		s.log.LogWarnf("reserving %s: %v", profile, err)
		return nil, err
	}
	return &Reservation{s: s, profile: profile, lease: lease}, nil
}

func (r *Reservation) Profile() string { return r.profile }

// Cancel gives the profile back without running anything.
func (r *Reservation) Cancel(ctx context.Context) {
	r.once.Do(func() { r.s.release(ctx, r.lease) })
}

// Run executes the reserved job. An empty mode selects the configured
// default.
func (r *Reservation) Run(ctx context.Context, mode Mode, sink supervisor.Sink) (*Result, error) {
	if mode == "" {
		mode = r.s.cfg.Mode
	}
	var (
		res *Result
		err error
		ran bool
	)
	r.once.Do(func() {
		ran = true
		switch mode {
		case ModeAsync:
			res, err = r.s.dispatch(ctx, r)
		case ModeStream:
			defer r.s.release(ctx, r.lease)
			res, err = r.s.execute(ctx, r.profile, sink, false)
		case ModeSync:
			defer r.s.release(ctx, r.lease)
			res, err = r.s.execute(ctx, r.profile, nil, false)
		default:
			r.s.release(ctx, r.lease)
			err = model.NewError(model.ErrInvalidRequest, fmt.Sprintf("unknown mode %q", mode), nil)
		}
	})
	if !ran {
		return nil, fmt.Errorf("reservation for %s already used", r.profile)
	}
	return res, err
}

func (s *Service) dispatch(ctx context.Context, r *Reservation) (*Result, error) {
	if s.Dispatcher == nil {
		s.release(ctx, r.lease)
		return nil, model.NewError(model.ErrInvalidRequest, "async mode is not available", nil)
	}
	if err := r.lease.Extend(ctx, s.leaseTTL()+s.cfg.QueueWait); err != nil {
		s.release(ctx, r.lease)
		return nil, err
	}
	queued := model.NewJob(r.profile)
	s.record(ctx, queued)

	p := TaskPayload{Profile: r.profile, LockToken: r.lease.Token()}
	if err := s.Dispatcher.Dispatch(ctx, p); err != nil {
		s.release(ctx, r.lease)
		return nil, fmt.Errorf("dispatching %s: %w", r.profile, err)
	}
	s.log.LogInfof("scrape of %s queued", r.profile)
	return &Result{Profile: r.profile, Accepted: true, Job: queued}, nil
}

// execute runs the worker and turns its artifact into stored posts. With
// strict set a storage failure fails the job; otherwise it becomes a warning
// on a result that still carries the posts.
func (s *Service) execute(ctx context.Context, profile string, sink supervisor.Sink, strict bool) (*Result, error) {
	log := s.log.Job(profile)

	launching := model.NewJob(profile)
	_ = launching.Transition(model.StateLaunching)
	s.record(ctx, launching)

	out, err := s.Runner.Run(ctx, profile, sink)
	if out != nil && out.Job != nil {
		s.record(ctx, out.Job)
	}
	if err != nil {
		log.LogWarnf("worker run failed: %v", err)
		return nil, err
	}
	job := out.Job

	var warnings []string
	rows, err := s.Resolver.Resolve(ctx, profile, s.cfg.Kind, out.Stdout)
	switch {
	case errors.Is(err, artifact.ErrCleanup):
		log.LogWarnf("%v", err)
		warnings = append(warnings, err.Error())
	case err != nil:
		s.fail(ctx, job, err)
		return nil, withDetail(err, out)
	}

	records := posts.Aggregate(rows)
	doc := model.ProfilePosts{Profile: profile, Posts: records, ScrapedAt: s.now().UTC()}
	if err := s.Posts.Save(ctx, doc); err != nil {
		if strict {
			s.fail(ctx, job, err)
			return nil, err
		}
		log.LogErrorf("storing posts: %v", err)
		warnings = append(warnings, err.Error())
	}

	_ = job.Transition(model.StateResolved)
	s.record(ctx, job)
	log.LogSuccessf("%d rows normalized into %d posts", len(rows), len(records))
	return &Result{Profile: profile, Posts: records, Warnings: warnings, Job: job}, nil
}

// leaseTTL covers one worker run plus decoding and storage.
func (s *Service) leaseTTL() time.Duration {
	return s.Runner.Timeout() + lockGrace
}

func (s *Service) fail(ctx context.Context, job *model.Job, err error) {
	_ = job.Transition(model.StateFailed)
	job.Error = err.Error()
	s.record(ctx, job)
}

func (s *Service) record(ctx context.Context, j *model.Job) {
	if s.Jobs == nil {
		return
	}
	if err := s.Jobs.Record(ctx, j); err != nil {
		s.log.LogWarnf("recording job %s (%s): %v", j.Profile, j.State, err)
	}
}

func (s *Service) release(ctx context.Context, lease Lease) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		s.log.LogErrorf("releasing lease: %v", err)
	}
}

// withDetail attaches worker stderr to artifact errors that carry none, so a
// worker claiming success without output can be diagnosed.
func withDetail(err error, out *supervisor.Outcome) error {
	var e *model.Error
	if errors.As(err, &e) && e.Detail == "" {
		e.Detail = strings.TrimSpace(string(out.Stderr))
	}
	return err
}

// PostsOf returns the stored posts of profile.
func (s *Service) PostsOf(ctx context.Context, profile string) (*model.ProfilePosts, error) {
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}
	return s.Posts.Get(ctx, profile)
}

// AllPosts returns every stored profile document.
func (s *Service) AllPosts(ctx context.Context) ([]model.ProfilePosts, error) {
	return s.Posts.All(ctx)
}

// JobOf returns the latest recorded job of profile.
func (s *Service) JobOf(ctx context.Context, profile string) (*model.Job, error) {
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}
	if s.Jobs == nil {
		return nil, model.NewError(model.ErrNoData, "job tracking disabled", nil)
	}
	return s.Jobs.Get(ctx, profile)
}
