package services

import (
	"context"
	"time"
)

// Gas ladder defaults for escrow trigger messages, in nanoTON. The first
// attempt carries TriggerValueNano; every retry adds TriggerStepNano until
// TriggerMaxNano is reached.
const (
	TriggerValueNano = 100_000_000
	TriggerStepNano  = 50_000_000
	TriggerMaxNano   = 200_000_000

	// TriggerSettleDelay is how long to wait after sending before checking
	// whether the contract processed the message.
	TriggerSettleDelay = 10 * time.Second
)

// GasRetryPolicy retries an on-chain trigger with increasing message value.
// A trigger that bounces for insufficient gas usually succeeds with more
// attached TON, so each attempt steps the value up to a hard cap.
type GasRetryPolicy struct {
	InitialNano int64
	StepNano    int64
	MaxNano     int64
	SettleDelay time.Duration

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultGasRetryPolicy() GasRetryPolicy {
	return GasRetryPolicy{
		InitialNano: TriggerValueNano,
		StepNano:    TriggerStepNano,
		MaxNano:     TriggerMaxNano,
		SettleDelay: TriggerSettleDelay,
	}
}

// Run sends the trigger via send, waits SettleDelay, and asks confirmed
// whether the contract processed it. On a negative answer it retries with
// the value bumped by StepNano, stopping once the value would exceed
// MaxNano. Returns true if any attempt was confirmed. Send errors are not
// fatal: the message may still have reached the chain, so the caller must
// treat an unconfirmed ladder as "sent, pending verification" rather than
// as a clean failure.
func (p GasRetryPolicy) Run(
	ctx context.Context,
	send func(ctx context.Context, valueNano int64) error,
	confirmed func(ctx context.Context) (bool, error),
) (bool, error) {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for value := p.InitialNano; value <= p.MaxNano; value += p.StepNano {
		if err := send(ctx, value); err != nil {
			lastErr = err
		}
		if err := sleep(ctx, p.SettleDelay); err != nil {
			return false, err
		}
		ok, err := confirmed(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
