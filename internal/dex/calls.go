package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"positionscope/internal/chain"
)

// PositionDetails are the structural fields read from positions(tokenId).
type PositionDetails struct {
	Token0      common.Address
	Token1      common.Address
	TickSpacing int32
	TickLower   int32
	TickUpper   int32
	Liquidity   *big.Int
}

// BalanceOfCall builds the position-count read for an owner.
func BalanceOfCall(npm, owner common.Address) (chain.Call, error) {
	parsed, err := NPMABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("balanceOf", owner)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack balanceOf: %w", err)
	}
	return chain.Call{Target: npm, CallData: data}, nil
}

// DecodeBalanceOf decodes the owned-token count.
func DecodeBalanceOf(data []byte) (*big.Int, error) {
	parsed, err := NPMABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack("balanceOf", data)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return asBigInt(values[0])
}

// TokenOfOwnerByIndexCall builds the enumeration read for one index.
func TokenOfOwnerByIndexCall(npm, owner common.Address, index int64) (chain.Call, error) {
	parsed, err := NPMABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("tokenOfOwnerByIndex", owner, big.NewInt(index))
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack tokenOfOwnerByIndex: %w", err)
	}
	return chain.Call{Target: npm, CallData: data}, nil
}

// DecodeTokenID decodes a tokenOfOwnerByIndex result.
func DecodeTokenID(data []byte) (*big.Int, error) {
	parsed, err := NPMABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack("tokenOfOwnerByIndex", data)
	if err != nil {
		return nil, fmt.Errorf("unpack tokenOfOwnerByIndex: %w", err)
	}
	return asBigInt(values[0])
}

// PositionsCall builds the structural-details read for one token id.
func PositionsCall(npm common.Address, tokenID *big.Int) (chain.Call, error) {
	parsed, err := NPMABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("positions", tokenID)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack positions: %w", err)
	}
	return chain.Call{Target: npm, CallData: data}, nil
}

// DecodePositions decodes the positions(tokenId) struct.
func DecodePositions(data []byte) (PositionDetails, error) {
	parsed, err := NPMABI()
	if err != nil {
		return PositionDetails{}, err
	}
	values, err := parsed.Unpack("positions", data)
	if err != nil {
		return PositionDetails{}, fmt.Errorf("unpack positions: %w", err)
	}
	if len(values) < 8 {
		return PositionDetails{}, fmt.Errorf("positions return size %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return PositionDetails{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return PositionDetails{}, fmt.Errorf("token1: %w", err)
	}

	spacing, err := int24Value(values[4])
	if err != nil {
		return PositionDetails{}, fmt.Errorf("tick spacing: %w", err)
	}
	tickLower, err := int24Value(values[5])
	if err != nil {
		return PositionDetails{}, fmt.Errorf("tick lower: %w", err)
	}
	tickUpper, err := int24Value(values[6])
	if err != nil {
		return PositionDetails{}, fmt.Errorf("tick upper: %w", err)
	}

	liquidity, err := asBigInt(values[7])
	if err != nil {
		return PositionDetails{}, fmt.Errorf("liquidity: %w", err)
	}

	return PositionDetails{
		Token0:      token0,
		Token1:      token1,
		TickSpacing: spacing,
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Liquidity:   liquidity,
	}, nil
}

// GetPoolCall builds the factory lookup for a pool key.
func GetPoolCall(factory, token0, token1 common.Address, tickSpacing int32) (chain.Call, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("getPool", token0, token1, big.NewInt(int64(tickSpacing)))
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack getPool: %w", err)
	}
	return chain.Call{Target: factory, CallData: data}, nil
}

// DecodeGetPool decodes a factory lookup. The zero address means the pool
// does not exist and is reported as absence, not an error.
func DecodeGetPool(data []byte) (common.Address, bool, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, false, err
	}
	values, err := parsed.Unpack("getPool", data)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("unpack getPool: %w", err)
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, false, err
	}
	if pool == (common.Address{}) {
		return common.Address{}, false, nil
	}
	return pool, true, nil
}

// PoolViewCall builds a no-argument pool read (slot0, liquidity,
// stakedLiquidity, gauge).
func PoolViewCall(pool common.Address, method string) (chain.Call, error) {
	parsed, err := CLPoolABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack(method)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return chain.Call{Target: pool, CallData: data}, nil
}

// DecodeSlot0 decodes the pool's current sqrt price and tick.
func DecodeSlot0(data []byte) (*big.Int, int32, error) {
	parsed, err := CLPoolABI()
	if err != nil {
		return nil, 0, err
	}
	values, err := parsed.Unpack("slot0", data)
	if err != nil {
		return nil, 0, fmt.Errorf("unpack slot0: %w", err)
	}
	if len(values) < 2 {
		return nil, 0, fmt.Errorf("slot0 return size %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return nil, 0, fmt.Errorf("sqrtPriceX96: %w", err)
	}
	tick, err := int24Value(values[1])
	if err != nil {
		return nil, 0, fmt.Errorf("tick: %w", err)
	}
	return sqrtPrice, tick, nil
}

// DecodePoolUint decodes a single uint pool read (liquidity,
// stakedLiquidity).
func DecodePoolUint(method string, data []byte) (*big.Int, error) {
	parsed, err := CLPoolABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return asBigInt(values[0])
}

// DecodeGauge decodes the pool's gauge address. Not every pool has a
// gauge; the zero address is valid absence.
func DecodeGauge(data []byte) (common.Address, bool, error) {
	parsed, err := CLPoolABI()
	if err != nil {
		return common.Address{}, false, err
	}
	values, err := parsed.Unpack("gauge", data)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("unpack gauge: %w", err)
	}
	gauge, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, false, err
	}
	if gauge == (common.Address{}) {
		return common.Address{}, false, nil
	}
	return gauge, true, nil
}

// StakedValuesCall builds the staked-id list read for an owner.
func StakedValuesCall(gauge, owner common.Address) (chain.Call, error) {
	parsed, err := GaugeABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("stakedValues", owner)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack stakedValues: %w", err)
	}
	return chain.Call{Target: gauge, CallData: data}, nil
}

// DecodeStakedValues decodes the staked token-id list.
func DecodeStakedValues(data []byte) ([]*big.Int, error) {
	parsed, err := GaugeABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack("stakedValues", data)
	if err != nil {
		return nil, fmt.Errorf("unpack stakedValues: %w", err)
	}
	ids, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("stakedValues unexpected type %T", values[0])
	}
	return ids, nil
}

// GaugeViewCall builds a no-argument gauge read (rewardRate, rewardToken,
// periodFinish).
func GaugeViewCall(gauge common.Address, method string) (chain.Call, error) {
	parsed, err := GaugeABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack(method)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return chain.Call{Target: gauge, CallData: data}, nil
}

// DecodeGaugeUint decodes a single uint gauge read.
func DecodeGaugeUint(method string, data []byte) (*big.Int, error) {
	parsed, err := GaugeABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return asBigInt(values[0])
}

// DecodeRewardToken decodes the gauge's reward token address.
func DecodeRewardToken(data []byte) (common.Address, error) {
	parsed, err := GaugeABI()
	if err != nil {
		return common.Address{}, err
	}
	values, err := parsed.Unpack("rewardToken", data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack rewardToken: %w", err)
	}
	return asAddress(values[0])
}

// EarnedCall builds the accrued-reward read for (owner, tokenId).
func EarnedCall(gauge, owner common.Address, tokenID *big.Int) (chain.Call, error) {
	parsed, err := GaugeABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("earned", owner, tokenID)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack earned: %w", err)
	}
	return chain.Call{Target: gauge, CallData: data}, nil
}

// DecodeEarned decodes the accrued-but-unclaimed reward amount.
func DecodeEarned(data []byte) (*big.Int, error) {
	parsed, err := GaugeABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack("earned", data)
	if err != nil {
		return nil, fmt.Errorf("unpack earned: %w", err)
	}
	return asBigInt(values[0])
}

// PrincipalCall builds the exact token-amount read for a position at a
// given sqrt price.
func PrincipalCall(helper, npm common.Address, tokenID, sqrtRatioX96 *big.Int) (chain.Call, error) {
	parsed, err := HelperABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("principal", npm, tokenID, sqrtRatioX96)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack principal: %w", err)
	}
	return chain.Call{Target: helper, CallData: data}, nil
}

// FeesCall builds the exact unclaimed-fee read for a position.
func FeesCall(helper, npm common.Address, tokenID *big.Int) (chain.Call, error) {
	parsed, err := HelperABI()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack("fees", npm, tokenID)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack fees: %w", err)
	}
	return chain.Call{Target: helper, CallData: data}, nil
}

// DecodeAmountPair decodes a helper (amount0, amount1) result.
func DecodeAmountPair(method string, data []byte) (*big.Int, *big.Int, error) {
	parsed, err := HelperABI()
	if err != nil {
		return nil, nil, err
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("amount1: %w", err)
	}
	return amount0, amount1, nil
}

// ERC20Call builds a no-argument token metadata read.
func ERC20Call(token common.Address, method string) (chain.Call, error) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack(method)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return chain.Call{Target: token, CallData: data}, nil
}

// DecodeDecimals decodes an ERC-20 decimals read.
func DecodeDecimals(data []byte) (uint8, error) {
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return 0, err
	}
	values, err := parsed.Unpack("decimals", data)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	return asUint8(values[0])
}

// DecodeSymbol decodes an ERC-20 symbol, trying the string ABI first and
// the bytes32 variant for legacy tokens.
func DecodeSymbol(data []byte) (string, error) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return "", err
	}
	if values, err := stringABI.Unpack("symbol", data); err == nil {
		if symbol, ok := values[0].(string); ok {
			return symbol, nil
		}
	}

	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return "", err
	}
	values, err := bytes32ABI.Unpack("symbol", data)
	if err != nil {
		return "", fmt.Errorf("unpack symbol: %w", err)
	}
	symbol, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("symbol unexpected type %T", values[0])
	}
	return symbol, nil
}
