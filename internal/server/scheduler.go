package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Job is one background task driven by a cron expression.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler checks its jobs once per Tick and runs the due ones. With Rdb
// set, a job runs on one replica at a time.
type Scheduler struct {
	Jobs   []Job
	Rdb    *redis.Client
	Logger *zap.Logger
	Tick   time.Duration

	mu   sync.Mutex
	last map[string]time.Time
	stop chan struct{}
	wg   sync.WaitGroup
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.Tick <= 0 {
		s.Tick = time.Minute
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	s.stop = make(chan struct{})
	ticker := time.NewTicker(s.Tick)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.tick(ctx, now)
			}
		}
	}()
}

// Stop waits for the running tick to finish.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.Jobs {
		if !isDue(job.Spec, s.lastRun(job.Name), now) {
			continue
		}
		s.runJob(ctx, job, now)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job, now time.Time) {
	log := s.Logger.With(zap.String("job", job.Name))
	// distributed lock to avoid duplicate runs
	if s.Rdb != nil {
		lockKey := "askweb:sched:lock:" + job.Name
		ok, err := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
		if err != nil {
			log.Warn("scheduler lock failed", zap.Error(err))
			return
		}
		if !ok {
			return
		}
		defer s.Rdb.Del(context.WithoutCancel(ctx), lockKey)
	}

	s.mu.Lock()
	if s.last == nil {
		s.last = map[string]time.Time{}
	}
	s.last[job.Name] = now
	s.mu.Unlock()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Warn("job failed", zap.Error(err))
		return
	}
	log.Debug("job finished", zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) lastRun(name string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.last[name]; ok {
		return &t
	}
	return nil
}

// isDue determines if a job with cronSpec should run at now based on its last run.
// Supports "@daily", "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.IsZero() && !next.After(now)
	}
}
