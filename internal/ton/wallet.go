package ton

import (
	"context"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

// PlatformWallet holds the platform's signing key for escrow trigger
// messages. An unconfigured wallet disables release/refund but leaves the
// rest of the system operational.
type PlatformWallet struct {
	w   *wallet.Wallet
	log *zap.Logger
}

// NewPlatformWallet derives a V4R2 wallet from a space-separated mnemonic.
// An empty seed returns an unconfigured wallet, not an error.
func NewPlatformWallet(client *Client, seed string, log *zap.Logger) (*PlatformWallet, error) {
	if seed == "" {
		log.Warn("platform wallet mnemonic not configured")
		return &PlatformWallet{log: log}, nil
	}

	words := strings.Fields(seed)
	w, err := wallet.FromSeed(client.API(), words, wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("derive platform wallet: %w", err)
	}

	log.Info("platform wallet ready", zap.String("address", w.WalletAddress().String()))
	return &PlatformWallet{w: w, log: log}, nil
}

func (p *PlatformWallet) Configured() bool {
	return p.w != nil
}

func (p *PlatformWallet) Address() string {
	if p.w == nil {
		return ""
	}
	return p.w.WalletAddress().String()
}

// SendTrigger sends a signed opcode message to the escrow contract. Blocks
// until the external message is accepted by the lite server.
func (p *PlatformWallet) SendTrigger(ctx context.Context, to string, amountNano int64, opcode uint32) error {
	if p.w == nil {
		return fmt.Errorf("platform wallet not configured")
	}
	msg, err := TriggerMessage(to, amountNano, opcode)
	if err != nil {
		return err
	}
	if err := p.w.Send(ctx, msg, true); err != nil {
		return fmt.Errorf("send trigger to %s: %w", to, err)
	}
	return nil
}
