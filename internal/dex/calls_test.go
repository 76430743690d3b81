package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDecodePositions(t *testing.T) {
	parsed, err := NPMABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	data, err := parsed.Methods["positions"].Outputs.Pack(
		big.NewInt(0),
		common.Address{},
		token0,
		token1,
		big.NewInt(200),
		big.NewInt(-887200),
		big.NewInt(887200),
		big.NewInt(123456789),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("pack positions: %v", err)
	}

	details, err := DecodePositions(data)
	if err != nil {
		t.Fatalf("decode positions: %v", err)
	}
	if details.Token0 != token0 || details.Token1 != token1 {
		t.Fatalf("token mismatch: %+v", details)
	}
	if details.TickSpacing != 200 {
		t.Fatalf("tickSpacing = %d, want 200", details.TickSpacing)
	}
	if details.TickLower != -887200 || details.TickUpper != 887200 {
		t.Fatalf("tick bounds mismatch: %+v", details)
	}
	if details.Liquidity.Cmp(big.NewInt(123456789)) != 0 {
		t.Fatalf("liquidity = %s", details.Liquidity)
	}
}

func TestDecodeBalanceAndTokenID(t *testing.T) {
	parsed, err := NPMABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := parsed.Methods["balanceOf"].Outputs.Pack(big.NewInt(3))
	if err != nil {
		t.Fatalf("pack balanceOf: %v", err)
	}
	balance, err := DecodeBalanceOf(data)
	if err != nil {
		t.Fatalf("decode balanceOf: %v", err)
	}
	if balance.Int64() != 3 {
		t.Fatalf("balance = %s, want 3", balance)
	}

	data, err = parsed.Methods["tokenOfOwnerByIndex"].Outputs.Pack(big.NewInt(4217))
	if err != nil {
		t.Fatalf("pack tokenOfOwnerByIndex: %v", err)
	}
	id, err := DecodeTokenID(data)
	if err != nil {
		t.Fatalf("decode token id: %v", err)
	}
	if id.Int64() != 4217 {
		t.Fatalf("token id = %s, want 4217", id)
	}
}

func TestDecodeGetPool(t *testing.T) {
	parsed, err := FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	data, err := parsed.Methods["getPool"].Outputs.Pack(pool)
	if err != nil {
		t.Fatalf("pack getPool: %v", err)
	}
	got, ok, err := DecodeGetPool(data)
	if err != nil || !ok {
		t.Fatalf("decode getPool: ok=%v err=%v", ok, err)
	}
	if got != pool {
		t.Fatalf("pool = %s, want %s", got.Hex(), pool.Hex())
	}

	// Zero address means the pool does not exist: absence, not error.
	data, err = parsed.Methods["getPool"].Outputs.Pack(common.Address{})
	if err != nil {
		t.Fatalf("pack zero pool: %v", err)
	}
	_, ok, err = DecodeGetPool(data)
	if err != nil {
		t.Fatalf("decode zero pool: %v", err)
	}
	if ok {
		t.Fatalf("zero address reported as existing pool")
	}
}

func TestDecodeSlot0(t *testing.T) {
	parsed, err := CLPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	data, err := parsed.Methods["slot0"].Outputs.Pack(
		sqrtPrice,
		big.NewInt(-42),
		uint16(0),
		uint16(1),
		uint16(1),
		true,
	)
	if err != nil {
		t.Fatalf("pack slot0: %v", err)
	}

	gotPrice, tick, err := DecodeSlot0(data)
	if err != nil {
		t.Fatalf("decode slot0: %v", err)
	}
	if gotPrice.Cmp(sqrtPrice) != 0 {
		t.Fatalf("sqrtPrice = %s", gotPrice)
	}
	if tick != -42 {
		t.Fatalf("tick = %d, want -42", tick)
	}
}

func TestDecodeGaugeAbsence(t *testing.T) {
	parsed, err := CLPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := parsed.Methods["gauge"].Outputs.Pack(common.Address{})
	if err != nil {
		t.Fatalf("pack gauge: %v", err)
	}
	_, ok, err := DecodeGauge(data)
	if err != nil {
		t.Fatalf("decode gauge: %v", err)
	}
	if ok {
		t.Fatalf("zero gauge reported as present")
	}
}

func TestDecodeStakedValues(t *testing.T) {
	parsed, err := GaugeABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := parsed.Methods["stakedValues"].Outputs.Pack([]*big.Int{big.NewInt(7), big.NewInt(8)})
	if err != nil {
		t.Fatalf("pack stakedValues: %v", err)
	}
	ids, err := DecodeStakedValues(data)
	if err != nil {
		t.Fatalf("decode stakedValues: %v", err)
	}
	if len(ids) != 2 || ids[0].Int64() != 7 || ids[1].Int64() != 8 {
		t.Fatalf("staked ids = %v", ids)
	}
}

func TestDecodeAmountPair(t *testing.T) {
	parsed, err := HelperABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := parsed.Methods["principal"].Outputs.Pack(big.NewInt(111), big.NewInt(222))
	if err != nil {
		t.Fatalf("pack principal: %v", err)
	}
	amount0, amount1, err := DecodeAmountPair("principal", data)
	if err != nil {
		t.Fatalf("decode principal: %v", err)
	}
	if amount0.Int64() != 111 || amount1.Int64() != 222 {
		t.Fatalf("amounts = (%s, %s)", amount0, amount1)
	}
}

func TestDecodeSymbolString(t *testing.T) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := parsed.Methods["symbol"].Outputs.Pack("WETH")
	if err != nil {
		t.Fatalf("pack symbol: %v", err)
	}
	symbol, err := DecodeSymbol(data)
	if err != nil {
		t.Fatalf("decode symbol: %v", err)
	}
	if symbol != "WETH" {
		t.Fatalf("symbol = %q, want WETH", symbol)
	}
}

func TestDecodeSymbolBytes32Fallback(t *testing.T) {
	parsed, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	var raw [32]byte
	copy(raw[:], "MKR")
	data, err := parsed.Methods["symbol"].Outputs.Pack(raw)
	if err != nil {
		t.Fatalf("pack bytes32 symbol: %v", err)
	}
	symbol, err := DecodeSymbol(data)
	if err != nil {
		t.Fatalf("decode bytes32 symbol: %v", err)
	}
	if symbol != "MKR" {
		t.Fatalf("symbol = %q, want MKR", symbol)
	}
}

func TestDecodeDecimals(t *testing.T) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := parsed.Methods["decimals"].Outputs.Pack(uint8(6))
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}
	decimals, err := DecodeDecimals(data)
	if err != nil {
		t.Fatalf("decode decimals: %v", err)
	}
	if decimals != 6 {
		t.Fatalf("decimals = %d, want 6", decimals)
	}
}
