package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/autosave-fi/autosave/contexthelper"
	"github.com/autosave-fi/autosave/internal/types"
	"github.com/autosave-fi/autosave/relay"
	"github.com/autosave-fi/autosave/storage"
)

// LedgerClient is the slice of the ledger API the worker needs: a live
// re-read before executing, and the execution call itself.
type LedgerClient interface {
	GetPlan(ctx context.Context, planID string) (types.Plan, error)
	Execute(ctx context.Context, planID string) (*relay.ExecuteResponse, error)
}

// WorkerService consumes execution tasks off the queue, settles them against
// the ledger and records the outcome in the relayer's local mirror.
type WorkerService struct {
	redis    storage.SchedulerStorage
	ledger   LedgerClient
	logger   *logrus.Logger
	sdClient *statsd.Client

	now func() time.Time
}

// NewWorker creates a new worker service
func NewWorker(redis storage.SchedulerStorage, ledger LedgerClient, sdClient *statsd.Client) (*WorkerService, error) {
	if redis == nil {
		return nil, fmt.Errorf("scheduler storage is nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger client is nil")
	}

	return &WorkerService{
		redis:    redis,
		ledger:   ledger,
		logger:   logrus.WithField("service", "worker").Logger,
		sdClient: sdClient,
		now:      time.Now,
	}, nil
}

func (s *WorkerService) incCounter(name string, tags []string) {
	if s.sdClient == nil {
		return
	}
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}

func (s *WorkerService) measureTime(name string, start time.Time, tags []string) {
	if s.sdClient == nil {
		return
	}
	if err := s.sdClient.Timing(name, time.Since(start), tags, 1); err != nil {
		s.logger.Errorf("fail to measure time metric, err: %v", err)
	}
}

// HandlePlanExecute settles one due plan. The handler is safe to re-deliver:
// the ledger's interval gate turns a duplicate into ErrTooSoon, which is
// swallowed after refreshing the local mirror.
//
// It never fails the task. A failed task is archived and its ID stays taken,
// which would block the re-enqueue of the same (plan, interval); instead every
// failure is logged and the task completes, so the next scheduler tick is the
// retry.
func (s *WorkerService) HandlePlanExecute(ctx context.Context, t *asynq.Task) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		s.logger.Warnf("context cancelled, leaving plan for the next tick: %v", err)
		return nil
	}
	defer s.measureTime("worker.plan.execute.latency", time.Now(), []string{})

	var event types.ExecutePlanEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		s.logger.Errorf("fail to unmarshal execute payload, dropping task: %v", err)
		s.incCounter("worker.plan.execute.malformed", []string{})
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"plan":   event.PlanID,
		"due_at": event.DueAt,
	}).Info("Executing plan")
	s.incCounter("worker.plan.execute", []string{})

	plan, err := s.ledger.GetPlan(ctx, event.PlanID)
	if err != nil {
		if errors.Is(err, types.ErrPlanNotFound) {
			s.logger.WithFields(logrus.Fields{"plan": event.PlanID}).Info("Plan no longer exists, dropping task")
			return nil
		}
		s.logger.Errorf("fail to re-read plan %s: %v", event.PlanID, err)
		s.incCounter("worker.plan.execute.error", []string{})
		return nil
	}

	now := s.now().UTC()
	if !plan.Active || !plan.Eligible(now) {
		// cache was ahead of the ledger, bring it back in line
		if err := s.redis.UpsertPlan(ctx, plan); err != nil {
			s.logger.Errorf("fail to update cached plan: %v", err)
		}
		s.incCounter("worker.plan.execute.stale", []string{})
		return nil
	}

	resp, err := s.ledger.Execute(ctx, event.PlanID)
	if err != nil {
		s.handleExecuteError(ctx, event.PlanID, err)
		return nil
	}

	if err := s.redis.UpsertPlan(ctx, resp.Plan); err != nil {
		s.logger.Errorf("fail to update cached plan: %v", err)
	}
	record := types.ExecutionRecord{
		ID:        uuid.New().String(),
		PlanID:    resp.Plan.ID,
		Timestamp: resp.Plan.LastExecuted,
		TxRef:     "height:" + strconv.FormatUint(resp.Height, 10),
		CostPaid:  resp.Fee,
	}
	if err := s.redis.AppendExecution(ctx, record); err != nil {
		s.logger.Errorf("fail to append execution record: %v", err)
	}

	s.logger.WithFields(logrus.Fields{
		"plan":   resp.Plan.ID,
		"amount": resp.AmountSaved,
		"yield":  resp.Yield,
		"fee":    resp.Fee,
		"height": resp.Height,
	}).Info("Plan execution settled")
	s.incCounter("worker.plan.execute.success", []string{})

	resultBytes, err := json.Marshal(resp)
	if err != nil {
		s.logger.Errorf("fail to marshal execution result: %v", err)
		return nil
	}
	if w := t.ResultWriter(); w != nil {
		if _, err := w.Write(resultBytes); err != nil {
			s.logger.Errorf("fail to write execution result: %v", err)
		}
	}
	return nil
}

func (s *WorkerService) handleExecuteError(ctx context.Context, planID string, err error) {
	switch {
	case errors.Is(err, types.ErrTooSoon),
		errors.Is(err, types.ErrPlanInactive),
		errors.Is(err, types.ErrPlanNotFound):
		// lost the race against another relayer or a cancellation
		s.logger.WithFields(logrus.Fields{"plan": planID}).Infof("Execution skipped: %v", err)
		s.incCounter("worker.plan.execute.skipped", []string{})
		if plan, readErr := s.ledger.GetPlan(ctx, planID); readErr == nil {
			if cacheErr := s.redis.UpsertPlan(ctx, plan); cacheErr != nil {
				s.logger.Errorf("fail to update cached plan: %v", cacheErr)
			}
		}
	case errors.Is(err, types.ErrTransferRejected),
		errors.Is(err, types.ErrTokenDisabled),
		errors.Is(err, types.ErrUnsupportedToken):
		// stays unexecutable until the owner tops up or the admin
		// re-enables the token, the next interval will try again
		s.logger.WithFields(logrus.Fields{"plan": planID}).Warnf("Execution rejected: %v", err)
		s.incCounter("worker.plan.execute.rejected", []string{})
	default:
		s.logger.Errorf("fail to execute plan %s: %v", planID, err)
		s.incCounter("worker.plan.execute.error", []string{})
	}
}
