// Package cron drives one aml.Timer per occurrence of a cron schedule,
// supplementing aml's fixed-period Ticker with calendar-aware scheduling.
// Grounded in the teacher's scheduler module: cron expression parsing via
// robfig/cron/v3, job identity via google/uuid, and optional completion
// events via cloudevents/sdk-go/v2, the same three libraries, reused for
// the same three concerns, wrapped around a much smaller surface — a
// single recurring job, not a store/worker-pool/backfill subsystem.
package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/aml-go/aml"
)

// Errors a Job can return.
var (
	ErrInvalidSchedule = errors.New("cron: invalid schedule expression")
	ErrAlreadyRunning  = errors.New("cron: job already started")
	ErrNotRunning      = errors.New("cron: job is not started")
)

// EventEmitter is notified after each completed run, mirroring the
// teacher scheduler's EventEmitter — swapped from an application-wide
// sink to a per-Job optional hook.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event cloudevents.Event) error
}

// Option configures a Job at construction.
type Option func(*Job)

// WithEventEmitter attaches an emitter that receives a cloudevents.Event
// after every run, successful or not. No event is sent for a run during
// which the job was stopped.
func WithEventEmitter(e EventEmitter) Option {
	return func(j *Job) { j.emitter = e }
}

// WithContext supplies the context.Context passed to fn on every run.
// Defaults to context.Background().
func WithContext(ctx context.Context) Option {
	return func(j *Job) { j.ctx = ctx }
}

// Job runs fn once per occurrence of a cron schedule expression, driven by
// one aml.Timer at a time: after each run the fired Timer is released and
// a new one is armed for the schedule's next occurrence.
type Job struct {
	ID       string
	Schedule string

	fn      func(ctx context.Context) error
	sched   cron.Schedule
	emitter EventEmitter
	ctx     context.Context

	mu    sync.Mutex
	timer *aml.Timer
	loop  *aml.Loop
}

// NewJob parses expr with robfig/cron's standard 5-field parser and
// returns a Job ready to Start on a Loop.
func NewJob(expr string, fn func(ctx context.Context) error, opts ...Option) (*Job, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, ErrInvalidSchedule
	}
	j := &Job{
		ID:       uuid.NewString(),
		Schedule: expr,
		fn:       fn,
		sched:    sched,
		ctx:      context.Background(),
	}
	for _, o := range opts {
		o(j)
	}
	return j, nil
}

// Start arms the job's first occurrence on loop.
func (j *Job) Start(loop *aml.Loop) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timer != nil {
		return ErrAlreadyRunning
	}
	j.loop = loop
	j.timer = j.armNext(time.Now())
	return loop.Start(j.timer)
}

// Stop disarms the job. A run already in progress still completes.
func (j *Job) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timer == nil {
		return ErrNotRunning
	}
	err := j.loop.Stop(j.timer)
	aml.Unref(j.timer)
	j.timer = nil
	j.loop = nil
	return err
}

func (j *Job) armNext(from time.Time) *aml.Timer {
	next := j.sched.Next(from)
	d := next.Sub(time.Now())
	if d < 0 {
		d = 0
	}
	return aml.NewTimer(d, j.run)
}

func (j *Job) run(obj any) {
	started := time.Now()
	err := j.fn(j.ctx)

	j.mu.Lock()
	if j.loop != nil {
		aml.Unref(j.timer)
		j.timer = j.armNext(started)
		j.loop.Start(j.timer)
	}
	loop := j.loop
	j.mu.Unlock()

	if j.emitter != nil && loop != nil {
		event := cloudevents.NewEvent()
		event.SetID(uuid.NewString())
		event.SetSource("aml/cron")
		event.SetType("aml.cron.job.completed")
		event.SetTime(started)
		status := "ok"
		if err != nil {
			status = err.Error()
		}
		_ = event.SetData(cloudevents.ApplicationJSON, map[string]string{
			"jobId":    j.ID,
			"schedule": j.Schedule,
			"status":   status,
		})
		_ = j.emitter.EmitEvent(j.ctx, event)
	}
}
