package rpcfetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"github.com/fortiblox/X1-Lens/internal/types"
)

// mockRPCServer creates a mock RPC server for testing.
func mockRPCServer(t *testing.T, handler func(method string, params []interface{}) (interface{}, error)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string        `json:"jsonrpc"`
			ID      int           `json:"id"`
			Method  string        `json:"method"`
			Params  []interface{} `json:"params"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		result, err := handler(req.Method, req.Params)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}

		if err != nil {
			resp["error"] = map[string]interface{}{
				"code":    -32000,
				"message": err.Error(),
			}
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func wireAccount(t *testing.T, owner types.Pubkey, data []byte, encoding Encoding) map[string]interface{} {
	t.Helper()
	encoded, err := EncodeAccountData(data, encoding)
	if err != nil {
		t.Fatalf("EncodeAccountData failed: %v", err)
	}
	return map[string]interface{}{
		"data":       encoded,
		"executable": false,
		"lamports":   2039280,
		"owner":      owner.String(),
		"rentEpoch":  uint64(18446744073709551615),
	}
}

func TestSimplePool(t *testing.T) {
	urls := []string{"http://localhost:8899", "http://localhost:8900"}
	pool := NewSimplePool(urls)

	// Test GetEndpoint returns endpoints
	ctx := context.Background()
	ep1, err := pool.GetEndpoint(ctx)
	if err != nil {
		t.Fatalf("GetEndpoint failed: %v", err)
	}
	if ep1.URL != urls[0] {
		t.Errorf("Expected first endpoint, got %s", ep1.URL)
	}

	ep2, err := pool.GetEndpoint(ctx)
	if err != nil {
		t.Fatalf("GetEndpoint failed: %v", err)
	}
	if ep2.URL != urls[1] {
		t.Errorf("Expected second endpoint, got %s", ep2.URL)
	}

	// Test round-robin
	ep3, err := pool.GetEndpoint(ctx)
	if err != nil {
		t.Fatalf("GetEndpoint failed: %v", err)
	}
	if ep3.URL != urls[0] {
		t.Errorf("Expected first endpoint again, got %s", ep3.URL)
	}

	// Test MarkUnhealthy
	pool.MarkUnhealthy(urls[0], ErrRequestTimeout)
	if pool.GetHealthyCount() != 1 {
		t.Errorf("Expected 1 healthy endpoint, got %d", pool.GetHealthyCount())
	}

	ep4, err := pool.GetEndpoint(ctx)
	if err != nil {
		t.Fatalf("GetEndpoint failed: %v", err)
	}
	if ep4.URL != urls[1] {
		t.Errorf("Expected healthy endpoint, got %s", ep4.URL)
	}

	// Test MarkHealthy
	pool.MarkHealthy(urls[0], 10*time.Millisecond)
	if pool.GetHealthyCount() != 2 {
		t.Errorf("Expected 2 healthy endpoints, got %d", pool.GetHealthyCount())
	}
}

func TestSimplePool_AllFailing(t *testing.T) {
	pool := NewSimplePool([]string{"http://a", "http://b", "http://c"})
	clock := time.Unix(1000, 0)
	pool.now = func() time.Time { return clock }

	for _, url := range []string{"http://b", "http://a", "http://c"} {
		pool.MarkUnhealthy(url, ErrRequestTimeout)
		clock = clock.Add(time.Second)
	}
	pool.MarkUnhealthy("http://b", ErrRateLimited)

	ep, err := pool.GetEndpoint(context.Background())
	if err != nil {
		t.Fatalf("GetEndpoint failed: %v", err)
	}
	if ep.URL != "http://a" {
		t.Errorf("Expected the endpoint that failed longest ago, got %s", ep.URL)
	}

	eps := pool.Endpoints()
	if eps[1].Failures != 2 || !errors.Is(eps[1].LastError, ErrRateLimited) {
		t.Errorf("Unexpected state for http://b: %+v", eps[1])
	}

	pool.MarkHealthy("http://b", time.Millisecond)
	if got := pool.Endpoints()[1]; !got.Healthy || got.Failures != 0 || got.LastError != nil {
		t.Errorf("Expected http://b to recover, got %+v", got)
	}
}

func TestSimplePool_Dedup(t *testing.T) {
	pool := NewSimplePool([]string{"http://a", " ", "http://a", "http://b"})
	got := pool.URLs()
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Errorf("Unexpected URLs: %v", got)
	}

	empty := NewSimplePool(nil)
	if _, err := empty.GetEndpoint(context.Background()); !errors.Is(err, ErrNoEndpoints) {
		t.Errorf("Expected ErrNoEndpoints, got %v", err)
	}
}

func TestRPCClient_GetSlot(t *testing.T) {
	expectedSlot := uint64(123456789)

	server := mockRPCServer(t, func(method string, params []interface{}) (interface{}, error) {
		if method != "getSlot" {
			t.Errorf("Unexpected method: %s", method)
		}
		return expectedSlot, nil
	})
	defer server.Close()

	pool := NewSimplePool([]string{server.URL})
	client := NewRPCClient(pool, 10*time.Second)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot failed: %v", err)
	}
	if slot != expectedSlot {
		t.Errorf("Expected slot %d, got %d", expectedSlot, slot)
	}
}

func TestRPCClient_GetAccountInfo(t *testing.T) {
	owner := types.MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	present := types.MustPubkeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}

	server := mockRPCServer(t, func(method string, params []interface{}) (interface{}, error) {
		if method != "getAccountInfo" {
			t.Errorf("Unexpected method: %s", method)
		}
		cfg := params[1].(map[string]interface{})
		if cfg["encoding"] != "base64" || cfg["commitment"] != "finalized" {
			t.Errorf("Unexpected config: %v", cfg)
		}
		if params[0] == present.String() {
			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value":   wireAccount(t, owner, data, EncodingBase64),
			}, nil
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value":   nil,
		}, nil
	})
	defer server.Close()

	client := NewRPCClient(NewSimplePool([]string{server.URL}), 10*time.Second, WithCommitment("finalized"))

	info, err := client.GetAccountInfo(context.Background(), present)
	if err != nil {
		t.Fatalf("GetAccountInfo failed: %v", err)
	}
	if info == nil {
		t.Fatal("Expected account, got nil")
	}
	if info.Owner != owner {
		t.Errorf("Expected owner %s, got %s", owner, info.Owner)
	}
	if string(info.Data) != string(data) {
		t.Errorf("Unexpected data: %v", info.Data)
	}
	if info.Lamports != 2039280 {
		t.Errorf("Unexpected lamports: %d", info.Lamports)
	}

	missing, err := client.GetAccountInfo(context.Background(), types.SystemProgramAddr)
	if err != nil {
		t.Fatalf("GetAccountInfo failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing account, got %+v", missing)
	}
}

func TestRPCClient_GetMultipleAccounts_Zstd(t *testing.T) {
	owner := types.MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	a := types.MustPubkeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	b := types.MustPubkeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i % 7)
	}

	server := mockRPCServer(t, func(method string, params []interface{}) (interface{}, error) {
		if method != "getMultipleAccounts" {
			t.Errorf("Unexpected method: %s", method)
		}
		keys := params[0].([]interface{})
		if len(keys) != 2 {
			t.Errorf("Expected 2 keys, got %d", len(keys))
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value":   []interface{}{wireAccount(t, owner, payload, EncodingBase64Zstd), nil},
		}, nil
	})
	defer server.Close()

	client := NewRPCClient(NewSimplePool([]string{server.URL}), 10*time.Second, WithEncoding(EncodingBase64Zstd))

	got, err := client.GetMultipleAccounts(context.Background(), []types.Pubkey{a, b})
	if err != nil {
		t.Fatalf("GetMultipleAccounts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(got))
	}
	if got[0] == nil || len(got[0].Data) != len(payload) || got[0].Data[13] != payload[13] {
		t.Errorf("Unexpected first account: %+v", got[0])
	}
	if got[1] != nil {
		t.Errorf("Expected nil second account")
	}

	_, err = client.GetMultipleAccounts(context.Background(), make([]types.Pubkey, MaxMultipleAccounts+1))
	if !errors.Is(err, ErrTooManyAccounts) {
		t.Errorf("Expected ErrTooManyAccounts, got %v", err)
	}
}

func TestRPCClient_GetProgramAccounts_Filters(t *testing.T) {
	program := types.MustPubkeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	account := types.MustPubkeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	disc := []byte{0xaa, 0xbb, 0xcc, 0xdd, 1, 2, 3, 4}

	server := mockRPCServer(t, func(method string, params []interface{}) (interface{}, error) {
		if method != "getProgramAccounts" {
			t.Errorf("Unexpected method: %s", method)
		}
		if params[0] != program.String() {
			t.Errorf("Unexpected program: %v", params[0])
		}
		cfg := params[1].(map[string]interface{})
		filters := cfg["filters"].([]interface{})
		memcmp := filters[0].(map[string]interface{})["memcmp"].(map[string]interface{})
		if memcmp["bytes"] != base58.Encode(disc) || memcmp["offset"].(float64) != 0 {
			t.Errorf("Unexpected memcmp: %v", memcmp)
		}
		slice := cfg["dataSlice"].(map[string]interface{})
		if slice["length"].(float64) != 0 {
			t.Errorf("Unexpected dataSlice: %v", slice)
		}
		return []interface{}{
			map[string]interface{}{
				"pubkey":  account.String(),
				"account": wireAccount(t, program, nil, EncodingBase64),
			},
		}, nil
	})
	defer server.Close()

	client := NewRPCClient(NewSimplePool([]string{server.URL}), 10*time.Second)

	got, err := client.GetProgramAccounts(context.Background(), program, ProgramAccountsOptions{
		Memcmp:    []MemcmpFilter{{Offset: 0, Bytes: disc}},
		DataSlice: &DataSlice{Offset: 0, Length: 0},
	})
	if err != nil {
		t.Fatalf("GetProgramAccounts failed: %v", err)
	}
	if len(got) != 1 || got[0].Pubkey != account {
		t.Fatalf("Unexpected result: %+v", got)
	}
	if len(got[0].Account.Data) != 0 {
		t.Errorf("Expected empty data slice")
	}
}

func TestRPCClient_Errors(t *testing.T) {
	var calls atomic.Int32
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()

	pool := NewSimplePool([]string{limited.URL})
	client := NewRPCClient(pool, 10*time.Second)

	_, err := client.GetSlot(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
	if !IsRetryable(err) {
		t.Errorf("Expected rate limit to be retryable")
	}
	if pool.GetHealthyCount() != 0 {
		t.Errorf("Expected endpoint to be marked unhealthy")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly one request, got %d", calls.Load())
	}

	server := mockRPCServer(t, func(method string, params []interface{}) (interface{}, error) {
		return nil, errors.New("scan aborted")
	})
	defer server.Close()

	client = NewRPCClient(NewSimplePool([]string{server.URL}), 10*time.Second)
	_, err = client.GetSlot(context.Background())
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32000 || rpcErr.Message != "scan aborted" {
		t.Errorf("Unexpected RPC error: %+v", rpcErr)
	}
}

func TestRPCClient_RateLimit(t *testing.T) {
	server := mockRPCServer(t, func(method string, params []interface{}) (interface{}, error) {
		return uint64(1), nil
	})
	defer server.Close()

	client := NewRPCClient(NewSimplePool([]string{server.URL}), 10*time.Second, WithRateLimit(1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := client.GetSlot(ctx); err != nil {
		t.Fatalf("First call should use the burst: %v", err)
	}
	if _, err := client.GetSlot(ctx); err == nil {
		t.Errorf("Expected second call to exceed the limiter within the deadline")
	}
}

func TestDecodeAccountData(t *testing.T) {
	data := []byte("anchor account payload")
	for _, enc := range []Encoding{EncodingBase58, EncodingBase64, EncodingBase64Zstd} {
		field, err := EncodeAccountData(data, enc)
		if err != nil {
			t.Fatalf("%s: encode failed: %v", enc, err)
		}
		got, err := decodeDataField(field)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", enc, err)
		}
		if string(got) != string(data) {
			t.Errorf("%s: round trip mismatch: %q", enc, got)
		}
	}

	if ParseEncoding("base64+zstd") != EncodingBase64Zstd || ParseEncoding("jsonParsed") != EncodingBase64 {
		t.Errorf("Unexpected ParseEncoding result")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimited, true},
		{&RPCError{Code: CodeInvalidParams, Message: "bad"}, false},
		{&RPCError{Code: CodeScanLimit, Message: "too big"}, false},
		{&RPCError{Code: -32005, Message: "node behind"}, true},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
