package ton

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Message opcodes of the compiled escrow contract.
const (
	ReleaseOpcode uint32 = 0x5642A0B8
	RefundOpcode  uint32 = 0xAD7C3ADD
)

// EscrowParams is the init-data tuple of one escrow contract instance. The
// same tuple always derives the same contract address.
type EscrowParams struct {
	DealNonce         int64
	AdvertiserAddress string
	OwnerAddress      string
	PlatformAddress   string
	AmountNano        int64
	FeePercent        int
}

// BuildEscrowStateInit assembles the contract state-init from the compiled
// code BOC and the init data. The data layout must match the contract's
// generated init exactly:
//
//	b0: uint(0,1) | int(dealNonce,257) | addr(advertiser) | addr(owner)
//	    ref -> b1: addr(platform) | int(amount,257) | int(feePercent,257)
func BuildEscrowStateInit(codeHex string, p EscrowParams) (*tlb.StateInit, error) {
	if codeHex == "" {
		return nil, fmt.Errorf("escrow contract code is not configured")
	}
	codeBytes, err := hex.DecodeString(codeHex)
	if err != nil {
		return nil, fmt.Errorf("decode escrow code hex: %w", err)
	}
	code, err := cell.FromBOC(codeBytes)
	if err != nil {
		return nil, fmt.Errorf("parse escrow code boc: %w", err)
	}

	advertiser, err := address.ParseAddr(p.AdvertiserAddress)
	if err != nil {
		return nil, fmt.Errorf("parse advertiser address: %w", err)
	}
	owner, err := address.ParseAddr(p.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("parse owner address: %w", err)
	}
	platform, err := address.ParseAddr(p.PlatformAddress)
	if err != nil {
		return nil, fmt.Errorf("parse platform address: %w", err)
	}

	b1 := cell.BeginCell().
		MustStoreAddr(platform).
		MustStoreBigInt(big.NewInt(p.AmountNano), 257).
		MustStoreBigInt(big.NewInt(int64(p.FeePercent)), 257).
		EndCell()

	data := cell.BeginCell().
		MustStoreUInt(0, 1).
		MustStoreBigInt(big.NewInt(p.DealNonce), 257).
		MustStoreAddr(advertiser).
		MustStoreAddr(owner).
		MustStoreRef(b1).
		EndCell()

	return &tlb.StateInit{Code: code, Data: data}, nil
}

// EscrowContractAddress derives the deterministic address the contract will
// have once deployed with the given init data. Computed fully off-chain so
// the advertiser can fund a not-yet-deployed contract in one step.
func EscrowContractAddress(codeHex string, p EscrowParams, testnet bool) (string, error) {
	si, err := BuildEscrowStateInit(codeHex, p)
	if err != nil {
		return "", err
	}
	siCell, err := tlb.ToCell(si)
	if err != nil {
		return "", fmt.Errorf("serialize state init: %w", err)
	}
	addr := address.NewAddress(0, 0, siCell.Hash())
	addr.SetTestnetOnly(testnet)
	return addr.String(), nil
}

// EscrowStateInitBOC returns the base64-encoded state-init BOC that the
// funding client attaches to the deposit transaction.
func EscrowStateInitBOC(codeHex string, p EscrowParams) (string, error) {
	si, err := BuildEscrowStateInit(codeHex, p)
	if err != nil {
		return "", err
	}
	siCell, err := tlb.ToCell(si)
	if err != nil {
		return "", fmt.Errorf("serialize state init: %w", err)
	}
	return base64.StdEncoding.EncodeToString(siCell.ToBOC()), nil
}

// OpcodeBody builds a message body carrying a bare 32-bit opcode.
func OpcodeBody(opcode uint32) *cell.Cell {
	return cell.BeginCell().MustStoreUInt(uint64(opcode), 32).EndCell()
}

// TriggerMessage builds a wallet message instructing the escrow contract to
// release or refund. The attached value covers gas and is returned to the
// platform by the contract.
func TriggerMessage(to string, amountNano int64, opcode uint32) (*wallet.Message, error) {
	addr, err := address.ParseAddr(to)
	if err != nil {
		return nil, fmt.Errorf("parse contract address: %w", err)
	}
	return wallet.SimpleMessage(addr, tlb.FromNanoTON(big.NewInt(amountNano)), OpcodeBody(opcode)), nil
}
