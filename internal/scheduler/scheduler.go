package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/autosave-fi/autosave/internal/tasks"
	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/storage"
)

// LedgerClient is the slice of the ledger API the scheduler reads from.
type LedgerClient interface {
	GetPlan(ctx context.Context, planID string) (types.Plan, error)
	CurrentHeight(ctx context.Context) (uint64, error)
	EventsInRange(ctx context.Context, from uint64, to uint64, kind types.EventKind) ([]types.Event, error)
}

// QueueClient is the slice of asynq.Client the scheduler enqueues through.
type QueueClient interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Config struct {
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval" json:"discovery_interval,omitempty"`
	ExecutionInterval time.Duration `mapstructure:"execution_interval" json:"execution_interval,omitempty"`
	MaxEventWindow    uint64        `mapstructure:"max_event_window" json:"max_event_window,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = 30 * time.Second
	}
	if c.ExecutionInterval <= 0 {
		c.ExecutionInterval = 10 * time.Second
	}
	if c.MaxEventWindow == 0 {
		c.MaxEventWindow = 500
	}
}

// SchedulerService keeps a local mirror of the ledger's plans up to date and
// enqueues execution tasks for the ones that have come due. The mirror is a
// cache: every plan is re-read from the ledger before a task is enqueued, and
// the ledger's own interval gate is the final authority.
type SchedulerService struct {
	cfg    Config
	db     storage.SchedulerStorage
	ledger LedgerClient
	client QueueClient
	logger *logrus.Logger
	done   chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
}

func NewSchedulerService(cfg Config, db storage.SchedulerStorage, ledger LedgerClient, client QueueClient, logger *logrus.Logger) (*SchedulerService, error) {
	if db == nil {
		return nil, fmt.Errorf("scheduler storage is nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger client is nil")
	}
	if client == nil {
		return nil, fmt.Errorf("queue client is nil")
	}

	cfg.applyDefaults()
	return &SchedulerService{
		cfg:    cfg,
		db:     db,
		ledger: ledger,
		client: client,
		logger: logger,
		done:   make(chan struct{}),
		now:    time.Now,
	}, nil
}

func (s *SchedulerService) Start() {
	s.wg.Add(2)
	go s.runDiscovery()
	go s.runExecution()
}

func (s *SchedulerService) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *SchedulerService) runDiscovery() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.DiscoverPlans(context.Background()); err != nil {
				s.logger.Errorf("Failed to discover plans: %v", err)
			}
		case <-s.done:
			return
		}
	}
}

func (s *SchedulerService) runExecution() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ExecutionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.EnqueueDuePlans(context.Background()); err != nil {
				s.logger.Errorf("Failed to enqueue due plans: %v", err)
			}
		case <-s.done:
			return
		}
	}
}

// DiscoverPlans advances the progress cursor through the ledger's event log,
// folding plan lifecycle events into the local mirror. The cursor is persisted
// only after the whole window has been applied, so a crash mid-window replays
// it; every fold re-reads the live plan, which makes the replay harmless.
func (s *SchedulerService) DiscoverPlans(ctx context.Context) error {
	cursor, err := s.db.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}

	head, err := s.ledger.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to get ledger height: %w", err)
	}
	if head <= cursor {
		return nil
	}

	from := cursor + 1
	to := head
	if to-from+1 > s.cfg.MaxEventWindow {
		to = from + s.cfg.MaxEventWindow - 1
	}

	events, err := s.ledger.EventsInRange(ctx, from, to, "")
	if err != nil {
		return fmt.Errorf("failed to get events in [%d,%d]: %w", from, to, err)
	}

	for _, event := range events {
		if event.Kind == types.EventPlanExecuted {
			continue
		}
		if err := s.refreshPlan(ctx, event.PlanID); err != nil {
			return fmt.Errorf("failed to refresh plan %s: %w", event.PlanID, err)
		}
	}

	if err := s.db.SetCursor(ctx, to); err != nil {
		return fmt.Errorf("failed to persist cursor: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"from":   from,
		"to":     to,
		"events": len(events),
	}).Info("Discovery window applied")
	return nil
}

func (s *SchedulerService) refreshPlan(ctx context.Context, planID string) error {
	plan, err := s.ledger.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, types.ErrPlanNotFound) {
			return nil
		}
		return err
	}
	return s.db.UpsertPlan(ctx, plan)
}

// EnqueueDuePlans walks the local mirror and enqueues an execution task for
// every plan whose interval has elapsed. The task ID binds the plan to the
// lastExecuted value observed at enqueue time, so a plan can never have two
// outstanding tasks for the same interval.
func (s *SchedulerService) EnqueueDuePlans(ctx context.Context) error {
	plans, err := s.db.ListCachedPlans(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cached plans: %w", err)
	}

	now := s.now().UTC()
	for _, cached := range plans {
		if !cached.Active || !cached.Eligible(now) {
			continue
		}
		if err := s.enqueuePlan(ctx, cached.ID, now); err != nil {
			s.logger.WithFields(logrus.Fields{
				"plan": cached.ID,
			}).Errorf("Failed to enqueue plan: %v", err)
		}
	}
	return nil
}

func (s *SchedulerService) enqueuePlan(ctx context.Context, planID string, now time.Time) error {
	// the cache can be stale, re-check against the ledger before enqueueing
	plan, err := s.ledger.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, types.ErrPlanNotFound) {
			return nil
		}
		return fmt.Errorf("failed to re-read plan: %w", err)
	}
	if err := s.db.UpsertPlan(ctx, plan); err != nil {
		return fmt.Errorf("failed to update cached plan: %w", err)
	}
	if !plan.Active || !plan.Eligible(now) {
		return nil
	}

	event := types.ExecutePlanEvent{
		PlanID: plan.ID,
		DueAt:  plan.DueAt().Unix(),
	}
	buf, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal execute event: %w", err)
	}

	// No Retention: the task must vanish as soon as the worker finishes
	// with it, or the ID would stay taken and block the re-enqueue that
	// serves as the retry for a failed attempt.
	taskID := executeTaskID(plan)
	ti, err := s.client.Enqueue(
		asynq.NewTask(tasks.TypePlanExecute, buf),
		asynq.TaskID(taskID),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(tasks.QUEUE_NAME),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// the interval is already pending or being handled
			return nil
		}
		return fmt.Errorf("failed to enqueue execute task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": ti.ID,
		"plan":    plan.ID,
	}).Info("Enqueued execute task")
	return nil
}

// executeTaskID is unique per (plan, interval): once the ledger bumps
// lastExecuted the next interval gets a fresh ID.
func executeTaskID(plan types.Plan) string {
	return "execute:" + plan.ID + ":" + strconv.FormatInt(plan.LastExecuted.Unix(), 10)
}
