// Package scheduler runs named tasks on fixed intervals for the lifetime of
// an owner. Tasks run once on Start and then every interval until Stop.
// Runs of the same task may overlap; there is no deduplication.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrStarted is returned when tasks are added to, or Start is called on, a running scheduler.
	ErrStarted = errors.New("scheduler: already started")
	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("scheduler: stopped")
)

// Task is a named job run on a fixed interval.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
}

// TaskInfo describes a scheduled task.
type TaskInfo struct {
	Name  string        `json:"name"`
	Every time.Duration `json:"every"`
	Prev  time.Time     `json:"prev"`
	Next  time.Time     `json:"next"`
}

// Scheduler owns the timers of a set of tasks.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	chain   cron.Chain
	tasks   []Task
	entries map[string]cron.EntryID
	logger  *slog.Logger
	cancel  context.CancelFunc
	initial sync.WaitGroup
	started bool
	stopped bool
}

// New constructs an idle scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	adapter := cronLogger{log: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(adapter)),
		chain:   cron.NewChain(cron.Recover(adapter)),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

// Add registers a task. Intervals are whole seconds, minimum one.
func (s *Scheduler) Add(task Task) error {
	task.Name = strings.TrimSpace(task.Name)
	if task.Name == "" {
		return errors.New("scheduler: task name required")
	}
	if task.Run == nil {
		return fmt.Errorf("scheduler: task %s has no run func", task.Name)
	}
	if task.Every < time.Second {
		return fmt.Errorf("scheduler: task %s interval %s below 1s", task.Name, task.Every)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return ErrStarted
	}
	for _, existing := range s.tasks {
		if existing.Name == task.Name {
			return fmt.Errorf("scheduler: task %s already registered", task.Name)
		}
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Start runs every task once and schedules the rest. The context passed to
// task runs is cancelled by Stop or when parent is done.
func (s *Scheduler) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrStarted
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	for _, task := range s.tasks {
		job := s.chain.Then(s.job(ctx, task))
		s.entries[task.Name] = s.cron.Schedule(cron.Every(task.Every), job)
	}
	s.cron.Start()
	s.started = true

	s.initial.Add(len(s.tasks))
	for _, task := range s.tasks {
		job := s.chain.Then(s.job(ctx, task))
		go func() {
			defer s.initial.Done()
			job.Run()
		}()
	}
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	return nil
}

// Stop cancels in-flight runs, prevents further runs and waits for running
// jobs to return or ctx to expire. Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		return nil
	}
	cancel()
	cronDone := s.cron.Stop()
	initialDone := make(chan struct{})
	go func() {
		s.initial.Wait()
		close(initialDone)
	}()

	for _, done := range []<-chan struct{}{cronDone.Done(), initialDone} {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("scheduler: stop: %w", ctx.Err())
		}
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// Tasks reports the registered tasks with their last and next activation.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, task := range s.tasks {
		info := TaskInfo{Name: task.Name, Every: task.Every}
		if id, ok := s.entries[task.Name]; ok && !s.stopped {
			entry := s.cron.Entry(id)
			info.Prev = entry.Prev
			info.Next = entry.Next
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Scheduler) job(ctx context.Context, task Task) cron.Job {
	return cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		task.Run(ctx)
	})
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
