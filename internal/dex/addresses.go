package dex

import "github.com/ethereum/go-ethereum/common"

// Base mainnet deployment of the Slipstream CL contracts.
var (
	BaseNPM        = common.HexToAddress("0x827922686190790b37229fd06084350E74485b72")
	BaseCLFactory  = common.HexToAddress("0x5e7BB104d84c7CB9B682AaC2F3d509f5F406809A")
	BaseHelper     = common.HexToAddress("0x0AD09A66af0154a84e86F761313d02d0abB6edd5")
	BaseMulticall3 = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")
)

// BaseChainID is the Base mainnet chain id.
const BaseChainID = 8453
