package ton

import (
	"context"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	tonapi "github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
)

// Account statuses as reported by GetAccountState.
const (
	AccountStatusActive   = "active"
	AccountStatusUninit   = "uninit"
	AccountStatusFrozen   = "frozen"
	AccountStatusNonExist = "nonexist"
)

// AccountState is a condensed view of an on-chain account.
type AccountState struct {
	Status  string
	Balance int64 // nanoTON
}

// Client wraps a lite-client connection pool behind the handful of calls the
// settlement layer needs.
type Client struct {
	api tonapi.APIClientWrapped
	log *zap.Logger
}

// Connect establishes a connection to the TON network.
// If LITE_SERVER_HOST + LITE_SERVER_KEY are set, connects to a specific lite
// server. Otherwise auto-discovers lite servers from the global TON config
// based on TON_NETWORK.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	pool := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := pool.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := tonapi.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = tonapi.ProofCheckPolicySecure
	}

	api := tonapi.NewAPIClient(pool, proofPolicy).WithRetry()
	return &Client{api: api, log: log}, nil
}

// API exposes the underlying wrapped client for wallet construction.
func (c *Client) API() tonapi.APIClientWrapped {
	return c.api
}

// GetAccountState fetches the status and balance of an account.
func (c *Client) GetAccountState(ctx context.Context, addrStr string) (*AccountState, error) {
	addr, err := address.ParseAddr(addrStr)
	if err != nil {
		return nil, fmt.Errorf("parse address %s: %w", addrStr, err)
	}

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get masterchain info: %w", err)
	}

	acc, err := c.api.GetAccount(ctx, block, addr)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addrStr, err)
	}

	if acc == nil || acc.State == nil {
		return &AccountState{Status: AccountStatusNonExist}, nil
	}

	st := &AccountState{Balance: acc.State.Balance.Nano().Int64()}
	switch acc.State.Status {
	case tlb.AccountStatusActive:
		st.Status = AccountStatusActive
	case tlb.AccountStatusFrozen:
		st.Status = AccountStatusFrozen
	case tlb.AccountStatusUninit:
		st.Status = AccountStatusUninit
	default:
		st.Status = AccountStatusNonExist
	}
	return st, nil
}

// RunGetMethodInt executes a get-method and returns its first stack entry as
// an integer.
func (c *Client) RunGetMethodInt(ctx context.Context, addrStr, method string) (int64, error) {
	addr, err := address.ParseAddr(addrStr)
	if err != nil {
		return 0, fmt.Errorf("parse address %s: %w", addrStr, err)
	}

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("get masterchain info: %w", err)
	}

	res, err := c.api.RunGetMethod(ctx, block, addr, method)
	if err != nil {
		return 0, fmt.Errorf("run %s on %s: %w", method, addrStr, err)
	}

	v, err := res.Int(0)
	if err != nil {
		return 0, fmt.Errorf("decode %s result: %w", method, err)
	}
	return v.Int64(), nil
}
