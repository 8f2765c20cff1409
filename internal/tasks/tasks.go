package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types
const (
	TypeEscrowRelease = "escrow:release"
	TypeEscrowRefund  = "escrow:refund"
)

// EscrowPayload identifies the deal whose escrow should be settled.
type EscrowPayload struct {
	DealID uuid.UUID `json:"deal_id"`
}

// NewRedisConnOpt parses a redis URL into an asynq connection option.
func NewRedisConnOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return opt, nil
}

// Dispatcher enqueues settlement tasks. On-chain triggers run out of band so
// a slow lite server never blocks a transition.
type Dispatcher struct {
	client *asynq.Client
	log    *zap.Logger
}

func NewDispatcher(opt asynq.RedisConnOpt, log *zap.Logger) *Dispatcher {
	return &Dispatcher{client: asynq.NewClient(opt), log: log}
}

func (d *Dispatcher) Close() error {
	return d.client.Close()
}

func (d *Dispatcher) EnqueueRelease(ctx context.Context, dealID uuid.UUID) error {
	return d.enqueue(ctx, TypeEscrowRelease, dealID)
}

func (d *Dispatcher) EnqueueRefund(ctx context.Context, dealID uuid.UUID) error {
	return d.enqueue(ctx, TypeEscrowRefund, dealID)
}

func (d *Dispatcher) enqueue(ctx context.Context, taskType string, dealID uuid.UUID) error {
	payload, err := json.Marshal(EscrowPayload{DealID: dealID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskType, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Hour),
	)

	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			d.log.Debug("settlement task already queued",
				zap.String("type", taskType), zap.String("deal_id", dealID.String()))
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	d.log.Info("settlement task queued",
		zap.String("type", taskType),
		zap.String("deal_id", dealID.String()),
		zap.String("task_id", info.ID),
	)
	return nil
}

// ParseEscrowPayload decodes a settlement task payload.
func ParseEscrowPayload(t *asynq.Task) (EscrowPayload, error) {
	var p EscrowPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return p, nil
}
