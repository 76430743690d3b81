package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Call is one view-function invocation inside a batch.
type Call struct {
	Target   common.Address
	CallData []byte
}

// Result is the per-item outcome of a batched call. A failed item keeps
// Success false; the batch itself still succeeds.
type Result struct {
	Success    bool
	ReturnData []byte
}

// Batcher issues view calls in batches with per-item failure flags.
type Batcher interface {
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
}

const multicall3ABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "target", "type": "address"},
          {"internalType": "bool", "name": "allowFailure", "type": "bool"},
          {"internalType": "bytes", "name": "callData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Call3[]",
        "name": "calls",
        "type": "tuple[]"
      }
    ],
    "name": "aggregate3",
    "outputs": [
      {
        "components": [
          {"internalType": "bool", "name": "success", "type": "bool"},
          {"internalType": "bytes", "name": "returnData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Result[]",
        "name": "returnData",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	multicall3ABI     abi.ABI
	multicall3ABIOnce sync.Once
	multicall3ABIErr  error
)

// Multicall3ABI returns the parsed aggregate3 ABI.
func Multicall3ABI() (abi.ABI, error) {
	multicall3ABIOnce.Do(func() {
		multicall3ABI, multicall3ABIErr = abi.JSON(strings.NewReader(multicall3ABIJSON))
	})
	return multicall3ABI, multicall3ABIErr
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type call3Result struct {
	Success    bool
	ReturnData []byte
}

// MulticallConfig tunes batching and retry for the multicall batcher.
type MulticallConfig struct {
	Contract     common.Address
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Multicall batches view calls through the Multicall3 contract with
// allowFailure set, so one reverting item never aborts the batch.
type Multicall struct {
	client *Client
	cfg    MulticallConfig
	logger *zap.Logger
}

// NewMulticall builds a Multicall batcher on top of the chain client.
func NewMulticall(client *Client, cfg MulticallConfig, logger *zap.Logger) *Multicall {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Multicall{client: client, cfg: cfg, logger: logger}
}

// Aggregate executes the calls in contract-side batches and returns one
// result per call, in order.
func (m *Multicall) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	if m.client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}

	results := make([]Result, 0, len(calls))
	for start := 0; start < len(calls); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(calls) {
			end = len(calls)
		}

		chunk, err := m.aggregateChunk(ctx, calls[start:end])
		if err != nil {
			return nil, fmt.Errorf("multicall batch [%d:%d]: %w", start, end, err)
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (m *Multicall) aggregateChunk(ctx context.Context, calls []Call) ([]Result, error) {
	mcABI, err := Multicall3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall abi: %w", err)
	}

	packed := make([]call3, len(calls))
	for i, call := range calls {
		packed[i] = call3{Target: call.Target, AllowFailure: true, CallData: call.CallData}
	}

	data, err := mcABI.Pack("aggregate3", packed)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	contract := m.cfg.Contract
	msg := ethereum.CallMsg{To: &contract, Data: data}

	var resp []byte
	err = withRetry(ctx, m.cfg.MaxRetries, m.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		resp, err = m.client.CallContract(ctx, msg, nil)
		if err != nil {
			m.logger.Warn("multicall failed", zap.Int("calls", len(calls)), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}

	values, err := mcABI.Unpack("aggregate3", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("aggregate3 return size %d", len(values))
	}

	decoded := *abi.ConvertType(values[0], new([]call3Result)).(*[]call3Result)
	if len(decoded) != len(calls) {
		return nil, fmt.Errorf("aggregate3 result count %d for %d calls", len(decoded), len(calls))
	}

	results := make([]Result, len(decoded))
	for i, item := range decoded {
		results[i] = Result{Success: item.Success, ReturnData: item.ReturnData}
	}
	return results, nil
}
