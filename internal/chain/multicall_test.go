package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func TestMulticall3ABIParses(t *testing.T) {
	parsed, err := Multicall3ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	if _, ok := parsed.Methods["aggregate3"]; !ok {
		t.Fatalf("aggregate3 method missing")
	}
}

func TestAggregate3RoundTrip(t *testing.T) {
	parsed, err := Multicall3ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	calls := []call3{
		{
			Target:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
			AllowFailure: true,
			CallData:     []byte{0x01, 0x02, 0x03, 0x04},
		},
		{
			Target:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
			AllowFailure: true,
			CallData:     []byte{0xaa, 0xbb},
		},
	}
	if _, err := parsed.Pack("aggregate3", calls); err != nil {
		t.Fatalf("pack aggregate3: %v", err)
	}

	// Simulate the contract response and decode it the way Aggregate does.
	response := []call3Result{
		{Success: true, ReturnData: []byte{0xde, 0xad}},
		{Success: false, ReturnData: nil},
	}
	packed, err := parsed.Methods["aggregate3"].Outputs.Pack(response)
	if err != nil {
		t.Fatalf("pack response: %v", err)
	}

	values, err := parsed.Unpack("aggregate3", packed)
	if err != nil {
		t.Fatalf("unpack response: %v", err)
	}
	decoded := *abi.ConvertType(values[0], new([]call3Result)).(*[]call3Result)

	if len(decoded) != 2 {
		t.Fatalf("decoded = %d results, want 2", len(decoded))
	}
	if !decoded[0].Success || len(decoded[0].ReturnData) != 2 {
		t.Fatalf("first result = %+v", decoded[0])
	}
	if decoded[1].Success {
		t.Fatalf("second result reported success")
	}
}
