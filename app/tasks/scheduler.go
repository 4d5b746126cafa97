package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/postcard/app/postcard"
)

const DefaultTaskTimeout = 5 * time.Minute

var ErrBusy = errors.New("another task is already running")

// Scheduler runs the auto-post cycle on a fixed interval once the chat
// connection is ready. At most one task runs at a time; a tick that finds
// one in progress is skipped.
type Scheduler struct {
	poster      AutoPoster
	refresher   Refresher
	ready       <-chan struct{}
	interval    time.Duration
	taskTimeout time.Duration
	running     sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewScheduler builds a scheduler. A nil ready channel starts ticking
// immediately; a nil refresher skips the startup cache warm-up.
func NewScheduler(poster AutoPoster, refresher Refresher, ready <-chan struct{}, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		poster:      poster,
		refresher:   refresher,
		ready:       ready,
		interval:    interval,
		taskTimeout: DefaultTaskTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.ready != nil {
			slog.Debug("Scheduler waiting for readiness")
			select {
			case <-s.ctx.Done():
				return
			case <-s.ready:
			}
		}

		slog.Info("Scheduler started", "interval", s.interval.String())

		s.runStartupTasks()
		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// TriggerNow runs one auto-post cycle synchronously. It returns ErrBusy
// without running anything if a task is already in progress.
func (s *Scheduler) TriggerNow() (postcard.Result, error) {
	task := NewAutoPostTask(s.poster)
	err := s.execute(task)
	return task.Result, err
}

func (s *Scheduler) runStartupTasks() {
	if s.refresher == nil {
		return
	}
	_ = s.execute(NewRefreshFeedTask(s.refresher))
}

func (s *Scheduler) tick() {
	_ = s.execute(NewAutoPostTask(s.poster))
}

func (s *Scheduler) execute(task TaskInterface) error {
	if !s.running.TryLock() {
		slog.Warn("Task already running, skipping", "type", string(task.GetType()), "id", task.GetID())
		return ErrBusy
	}
	defer s.running.Unlock()

	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Task execution failed",
			"type", string(task.GetType()),
			"id", task.GetID(),
			"duration", task.GetDuration(),
			"error", err)
		return err
	}

	return nil
}
