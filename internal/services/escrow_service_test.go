package services

import (
	"context"
	"errors"
	"testing"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/ton"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChain struct {
	acc       *ton.AccountState
	accErr    error
	getter    int64
	getterErr error
}

func (f *fakeChain) GetAccountState(ctx context.Context, addr string) (*ton.AccountState, error) {
	return f.acc, f.accErr
}

func (f *fakeChain) RunGetMethodInt(ctx context.Context, addr, method string) (int64, error) {
	return f.getter, f.getterErr
}

func escrowWithChain(chain ChainAPI) *EscrowService {
	return &EscrowService{chain: chain, log: zap.NewNop()}
}

func strPtr(s string) *string { return &s }

func TestDealNonce(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	require.Equal(t, dealNonce(id), dealNonce(id))
	require.GreaterOrEqual(t, dealNonce(id), int64(0))
	require.NotEqual(t, dealNonce(id), dealNonce(uuid.MustParse("21111111-2222-3333-4444-555555555555")))

	// High bit set in the first byte must not produce a negative nonce.
	high := uuid.MustParse("ff111111-2222-3333-4444-555555555555")
	require.GreaterOrEqual(t, dealNonce(high), int64(0))
}

func TestPriceToNano(t *testing.T) {
	tests := []struct {
		price   string
		want    int64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"0.5", 500_000_000, false},
		{"12.345678901", 12_345_678_901, false},
		{"0", 0, false},
		{"1.0000000005", 1_000_000_000, false}, // sub-nano truncated
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := priceToNano(tt.price)
		if tt.wantErr {
			require.Error(t, err, tt.price)
			continue
		}
		require.NoError(t, err, tt.price)
		require.Equal(t, tt.want, got, tt.price)
	}
}

func TestDepositSatisfied(t *testing.T) {
	const expected = 100_000_000_000

	require.True(t, depositSatisfied(expected, expected))
	require.True(t, depositSatisfied(expected*91/100, expected))
	require.True(t, depositSatisfied(expected*90/100, expected))
	require.False(t, depositSatisfied(expected*89/100, expected))
	require.False(t, depositSatisfied(0, expected))
}

func TestDestroyed(t *testing.T) {
	require.True(t, destroyed(&ton.AccountState{Status: ton.AccountStatusNonExist}))
	require.True(t, destroyed(&ton.AccountState{Status: ton.AccountStatusUninit, Balance: 5}))
	require.True(t, destroyed(&ton.AccountState{Status: ton.AccountStatusFrozen, Balance: 0}))
	require.False(t, destroyed(&ton.AccountState{Status: ton.AccountStatusFrozen, Balance: 10}))
	require.False(t, destroyed(&ton.AccountState{Status: ton.AccountStatusActive, Balance: 0}))
}

func TestSettledStateFor(t *testing.T) {
	require.Equal(t, models.EscrowStateReleased, settledStateFor(models.EscrowStateReleaseSent))
	require.Equal(t, models.EscrowStateRefunded, settledStateFor(models.EscrowStateRefundSent))
}

func TestVerifyDepositSkipsNonInitStates(t *testing.T) {
	svc := escrowWithChain(&fakeChain{})
	escrow := &models.Escrow{OnChainState: models.EscrowStateFunded}

	funded, err := svc.VerifyDeposit(context.Background(), escrow)
	require.NoError(t, err)
	require.False(t, funded)
}

func TestVerifyDepositWaitsForDeployment(t *testing.T) {
	// A balance on an undeployed account is not a valid deposit yet.
	svc := escrowWithChain(&fakeChain{
		acc: &ton.AccountState{Status: ton.AccountStatusUninit, Balance: 5_000_000_000},
	})
	escrow := &models.Escrow{
		OnChainState:    models.EscrowStateInit,
		ContractAddress: strPtr("EQtest"),
		AmountNano:      5_000_000_000,
	}

	funded, err := svc.VerifyDeposit(context.Background(), escrow)
	require.NoError(t, err)
	require.False(t, funded)
}

func TestVerifyDepositInsufficientBalance(t *testing.T) {
	svc := escrowWithChain(&fakeChain{
		acc:    &ton.AccountState{Status: ton.AccountStatusActive, Balance: 4_000_000_000},
		getter: 0,
	})
	escrow := &models.Escrow{
		OnChainState:    models.EscrowStateInit,
		ContractAddress: strPtr("EQtest"),
		AmountNano:      5_000_000_000,
	}

	funded, err := svc.VerifyDeposit(context.Background(), escrow)
	require.NoError(t, err)
	require.False(t, funded)
}

func TestVerifyDepositChainErrorIsRetryable(t *testing.T) {
	svc := escrowWithChain(&fakeChain{accErr: errors.New("lite server timeout")})
	escrow := &models.Escrow{
		OnChainState:    models.EscrowStateInit,
		ContractAddress: strPtr("EQtest"),
	}

	_, err := svc.VerifyDeposit(context.Background(), escrow)
	require.ErrorIs(t, err, ErrChainUnavailable)
}

func TestVerifySettlement(t *testing.T) {
	tests := []struct {
		name      string
		sentState string
		chain     *fakeChain
		wantState string
		wantDone  bool
	}{
		{
			name:      "destroyed contract after release",
			sentState: models.EscrowStateReleaseSent,
			chain:     &fakeChain{acc: &ton.AccountState{Status: ton.AccountStatusNonExist}},
			wantState: models.EscrowStateReleased,
			wantDone:  true,
		},
		{
			name:      "destroyed contract after refund",
			sentState: models.EscrowStateRefundSent,
			chain:     &fakeChain{acc: &ton.AccountState{Status: ton.AccountStatusUninit}},
			wantState: models.EscrowStateRefunded,
			wantDone:  true,
		},
		{
			name:      "getter reports refunded",
			sentState: models.EscrowStateReleaseSent,
			chain:     &fakeChain{acc: &ton.AccountState{Status: ton.AccountStatusActive, Balance: 1}, getter: 3},
			wantState: models.EscrowStateRefunded,
			wantDone:  true,
		},
		{
			name:      "trigger rejected, still funded",
			sentState: models.EscrowStateReleaseSent,
			chain:     &fakeChain{acc: &ton.AccountState{Status: ton.AccountStatusActive, Balance: 1}, getter: 1},
			wantDone:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := escrowWithChain(tt.chain)
			escrow := &models.Escrow{
				OnChainState:    tt.sentState,
				ContractAddress: strPtr("EQtest"),
			}
			state, done, err := svc.VerifySettlement(context.Background(), escrow)
			require.NoError(t, err)
			require.Equal(t, tt.wantDone, done)
			if tt.wantDone {
				require.Equal(t, tt.wantState, state)
			}
		})
	}
}

func TestVerifySettlementIgnoresUnfundedEscrow(t *testing.T) {
	svc := escrowWithChain(&fakeChain{})
	escrow := &models.Escrow{OnChainState: models.EscrowStateInit}

	_, done, err := svc.VerifySettlement(context.Background(), escrow)
	require.NoError(t, err)
	require.False(t, done)
}

func TestVerifySettlementFundedEscrow(t *testing.T) {
	active := func(getter int64) *fakeChain {
		return &fakeChain{acc: &ton.AccountState{Status: ton.AccountStatusActive, Balance: 1}, getter: getter}
	}

	t.Run("settled by an outside trigger", func(t *testing.T) {
		svc := escrowWithChain(active(3))
		escrow := &models.Escrow{
			OnChainState:    models.EscrowStateFunded,
			ContractAddress: strPtr("EQtest"),
		}
		state, done, err := svc.VerifySettlement(context.Background(), escrow)
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, models.EscrowStateRefunded, state)
	})

	t.Run("still funded on chain", func(t *testing.T) {
		svc := escrowWithChain(active(1))
		escrow := &models.Escrow{
			OnChainState:    models.EscrowStateFunded,
			ContractAddress: strPtr("EQtest"),
		}
		_, done, err := svc.VerifySettlement(context.Background(), escrow)
		require.NoError(t, err)
		require.False(t, done)
	})

	t.Run("destroyed contract is left alone", func(t *testing.T) {
		svc := escrowWithChain(&fakeChain{acc: &ton.AccountState{Status: ton.AccountStatusNonExist}})
		escrow := &models.Escrow{
			OnChainState:    models.EscrowStateFunded,
			ContractAddress: strPtr("EQtest"),
		}
		_, done, err := svc.VerifySettlement(context.Background(), escrow)
		require.NoError(t, err)
		require.False(t, done)
	})
}
