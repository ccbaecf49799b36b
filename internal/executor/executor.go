package executor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/actuator"
	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/pkg/distlock"
	"github.com/stewardhq/steward/internal/queue"
)

// Repository is the claim-side persistence surface. *queue.Store implements
// it; tests supply fakes.
type Repository interface {
	ClaimDue(ctx context.Context, workerID string, limit int) ([]domain.Action, error)
	ClaimByID(ctx context.Context, workerID string, id uuid.UUID) (*domain.Action, error)
	MarkExecuted(ctx context.Context, id uuid.UUID, executedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, detail string) error
	ResetFailedForRetry(ctx context.Context, ownerID string, id uuid.UUID) (int64, error)
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Action, error)
	RecoverStale(ctx context.Context, lease time.Duration) (int64, error)
	ExpireOld(ctx context.Context, maxAge time.Duration) (int64, error)
}

// TierSource resolves an owner's integration tier. Capability is re-checked
// at execution time: a tier downgraded while the action waited must stop it.
type TierSource interface {
	OwnerTier(ctx context.Context, ownerID string) (domain.Tier, error)
}

// Ledger appends execution outcomes to the audit trail.
type Ledger interface {
	Append(ctx context.Context, r *domain.ExecutionRecord) (uuid.UUID, error)
}

// Notifier is the optional fire-and-forget failure alert sink.
type Notifier interface {
	Notify(ctx context.Context, ownerID, message, priority string)
}

// Config tunes the scheduler loop.
type Config struct {
	// WorkerID identifies this instance in claimed rows. Defaults to a
	// fresh uuid per process.
	WorkerID string
	// TickInterval is how often due actions are claimed. Default 5s.
	TickInterval time.Duration
	// BatchSize caps claims per tick. Default 25.
	BatchSize int
	// ExecTimeout bounds one actuator call. Default 15s.
	ExecTimeout time.Duration
	// StaleLease is how long an executing claim may sit before the worker
	// is presumed dead. Default 5m.
	StaleLease time.Duration
	// MaxPendingAge expires pending actions older than this instead of
	// executing a stale backlog. Default 24h.
	MaxPendingAge time.Duration
}

func (c *Config) applyDefaults() {
	if c.WorkerID == "" {
		c.WorkerID = "executor-" + uuid.NewString()[:8]
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 15 * time.Second
	}
	if c.StaleLease <= 0 {
		c.StaleLease = 5 * time.Minute
	}
	if c.MaxPendingAge <= 0 {
		c.MaxPendingAge = 24 * time.Hour
	}
}

// Stats is a snapshot of scheduler counters since start.
type Stats struct {
	Ticks     int64 `json:"ticks"`
	Executed  int64 `json:"executed"`
	Failed    int64 `json:"failed"`
	Recovered int64 `json:"recovered"`
	Expired   int64 `json:"expired"`
}

// Scheduler is the execution worker.
type Scheduler struct {
	cfg    Config
	repo   Repository
	tiers  TierSource
	act    actuator.Actuator
	ledger Ledger
	notify Notifier         // may be nil
	lock   distlock.DistLock // may be nil; single-instance deployments

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	ticks     atomic.Int64
	executed  atomic.Int64
	failed    atomic.Int64
	recovered atomic.Int64
	expired   atomic.Int64
}

// NewScheduler wires the scheduler. notify and lock may be nil.
func NewScheduler(cfg Config, repo Repository, tiers TierSource, act actuator.Actuator, ledger Ledger, notify Notifier, lock distlock.DistLock) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:    cfg,
		repo:   repo,
		tiers:  tiers,
		act:    act,
		ledger: ledger,
		notify: notify,
		lock:   lock,
	}
}

// Start launches the tick loop. Safe to call once; subsequent calls while
// running are no-ops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	s.wg.Add(1)
	go s.run()
	log.Printf("[Executor] started worker=%s tick=%s batch=%d",
		s.cfg.WorkerID, s.cfg.TickInterval, s.cfg.BatchSize)
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("[Executor] stopped worker=%s", s.cfg.WorkerID)
}

// Running reports whether the tick loop is live. The health endpoint reads
// this.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:     s.ticks.Load(),
		Executed:  s.executed.Load(),
		Failed:    s.failed.Load(),
		Recovered: s.recovered.Load(),
		Expired:   s.expired.Load(),
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	// Maintenance runs every 12 ticks.
	const maintenanceEvery = 12
	tickN := 0

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.ticks.Add(1)
			tickN++
			s.tick(s.ctx)
			if tickN%maintenanceEvery == 0 {
				s.maintain(s.ctx)
			}
		}
	}
}

// tick claims one batch of due actions and executes them serially. With a
// lock configured, only the instance holding it claims; losing the lock is
// normal, not an error.
func (s *Scheduler) tick(ctx context.Context) {
	if s.lock != nil {
		got, err := s.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[Executor] lock acquire failed: %v", err)
			return
		}
		if !got {
			return
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				log.Printf("[Executor] lock release failed: %v", err)
			}
		}()
	}

	actions, err := s.repo.ClaimDue(ctx, s.cfg.WorkerID, s.cfg.BatchSize)
	if err != nil {
		log.Printf("[Executor] claim failed: %v", err)
		return
	}
	// The claim UPDATE does not guarantee row order; re-sort so the batch
	// executes oldest first.
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})
	for i := range actions {
		if ctx.Err() != nil {
			return
		}
		s.executeOne(ctx, &actions[i], actions[i].Trigger)
	}
}

func (s *Scheduler) maintain(ctx context.Context) {
	if n, err := s.repo.RecoverStale(ctx, s.cfg.StaleLease); err != nil {
		log.Printf("[Executor] stale recovery failed: %v", err)
	} else if n > 0 {
		s.recovered.Add(n)
		log.Printf("[Executor] requeued %d stale executing actions", n)
	}
	if n, err := s.repo.ExpireOld(ctx, s.cfg.MaxPendingAge); err != nil {
		log.Printf("[Executor] expiry pass failed: %v", err)
	} else if n > 0 {
		s.expired.Add(n)
		log.Printf("[Executor] expired %d stale pending actions", n)
	}
}

// executeOne drives a claimed action to a terminal state and records the
// outcome in the ledger. The action is already in executing status.
func (s *Scheduler) executeOne(ctx context.Context, a *domain.Action, trigger domain.TriggerType) {
	execCtx, cancel := context.WithTimeout(ctx, s.cfg.ExecTimeout)
	defer cancel()

	tier, err := s.tiers.OwnerTier(execCtx, a.OwnerID)
	if err == nil {
		err = capability.Check(tier, a.Type)
	}
	var res *actuator.Result
	if err == nil {
		res, err = s.act.Execute(execCtx, a)
	}

	if err != nil {
		s.failed.Add(1)
		detail := err.Error()
		if markErr := s.repo.MarkFailed(ctx, a.ID, detail); markErr != nil {
			log.Printf("[Executor] mark failed for %s: %v", a.ID, markErr)
		}
		s.record(ctx, a, trigger, domain.ResultFailed, detail, "")
		if s.notify != nil {
			s.notify.Notify(ctx, a.OwnerID,
				fmt.Sprintf("Action %s (%s) failed: %s", a.ID, a.Type, detail), "high")
		}
		log.Printf("[Executor] action %s type=%s failed: %v", a.ID, a.Type, err)
		return
	}

	now := time.Now().UTC()
	if err := s.repo.MarkExecuted(ctx, a.ID, now); err != nil {
		log.Printf("[Executor] mark executed for %s: %v", a.ID, err)
	}
	s.executed.Add(1)
	summary := ""
	if res != nil {
		summary = res.Detail
	}
	s.record(ctx, a, trigger, domain.ResultSuccess, "", summary)
	log.Printf("[Executor] action %s type=%s executed", a.ID, a.Type)
}

func (s *Scheduler) record(ctx context.Context, a *domain.Action, trigger domain.TriggerType, result domain.ExecutionResult, errDetail, summary string) {
	if trigger == "" {
		trigger = domain.TriggerManual
	}
	rec := &domain.ExecutionRecord{
		OwnerID:     a.OwnerID,
		PolicyID:    a.PolicyID,
		TriggerType: trigger,
		TriggerData: a.TriggerData,
		ActionsTaken: []domain.TakenAction{{
			ActionID: a.ID,
			Type:     a.Type,
			Summary:  summary,
		}},
		Result:          result,
		Error:           errDetail,
		RelatedActionID: &a.ID,
	}
	if _, err := s.ledger.Append(ctx, rec); err != nil {
		log.Printf("[Executor] ledger append for %s failed: %v", a.ID, err)
	}
}

// Retry re-runs a failed action inline: failed -> pending -> claim -> execute,
// all on the caller's goroutine so the API can return the outcome. The
// ledger records the rerun with the retry trigger.
func (s *Scheduler) Retry(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Action, error) {
	rows, err := s.repo.ResetFailedForRetry(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		a, err := s.repo.Get(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: status is %s, retry needs failed", queue.ErrStateConflict, a.Status)
	}

	claimed, err := s.repo.ClaimByID(ctx, s.cfg.WorkerID, id)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		// The tick loop won the race; it will execute the action.
		return s.repo.Get(ctx, ownerID, id)
	}

	s.executeOne(ctx, claimed, domain.TriggerRetry)
	return s.repo.Get(ctx, ownerID, id)
}
