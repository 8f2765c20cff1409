package ton

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	testAdvertiser = "0:1111111111111111111111111111111111111111111111111111111111111111"
	testOwner      = "0:2222222222222222222222222222222222222222222222222222222222222222"
	testPlatform   = "0:3333333333333333333333333333333333333333333333333333333333333333"
)

func testCodeHex(t *testing.T) string {
	t.Helper()
	code := cell.BeginCell().MustStoreUInt(0xC0DE, 32).EndCell()
	return hex.EncodeToString(code.ToBOC())
}

func testParams(nonce int64) EscrowParams {
	return EscrowParams{
		DealNonce:         nonce,
		AdvertiserAddress: testAdvertiser,
		OwnerAddress:      testOwner,
		PlatformAddress:   testPlatform,
		AmountNano:        5_000_000_000,
		FeePercent:        10,
	}
}

func TestEscrowContractAddressDeterministic(t *testing.T) {
	codeHex := testCodeHex(t)

	a1, err := EscrowContractAddress(codeHex, testParams(42), true)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := EscrowContractAddress(codeHex, testParams(42), true)
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Errorf("same params derived different addresses: %s vs %s", a1, a2)
	}

	a3, err := EscrowContractAddress(codeHex, testParams(43), true)
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a3 {
		t.Error("different deal nonce derived the same address")
	}

	p := testParams(42)
	p.AmountNano = 6_000_000_000
	a4, err := EscrowContractAddress(codeHex, p, true)
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a4 {
		t.Error("different amount derived the same address")
	}
}

func TestEscrowStateInitBOC(t *testing.T) {
	codeHex := testCodeHex(t)

	b64, err := EscrowStateInitBOC(codeHex, testParams(7))
	if err != nil {
		t.Fatal(err)
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("state init is not valid base64: %v", err)
	}
	if _, err := cell.FromBOC(raw); err != nil {
		t.Fatalf("state init is not a valid boc: %v", err)
	}
}

func TestBuildEscrowStateInitErrors(t *testing.T) {
	if _, err := BuildEscrowStateInit("", testParams(1)); err == nil {
		t.Error("empty code hex should fail")
	}
	if _, err := BuildEscrowStateInit("zz", testParams(1)); err == nil {
		t.Error("bad code hex should fail")
	}
	p := testParams(1)
	p.OwnerAddress = "not-an-address"
	if _, err := BuildEscrowStateInit(testCodeHex(t), p); err == nil {
		t.Error("bad owner address should fail")
	}
}
