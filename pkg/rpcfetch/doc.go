// Package rpcfetch provides a JSON-RPC client for reading accounts from
// Solana and X1 validators.
//
// # Overview
//
// The client reads account state only. It never signs or submits
// transactions. Three methods cover every read X1-Lens needs:
//
//   - GetAccountInfo loads one account and returns nil for a missing account
//   - GetMultipleAccounts loads up to MaxMultipleAccounts accounts in one call
//   - GetProgramAccounts scans a program with memcmp and dataSize filters
//
// # Endpoint Pool
//
// Requests are spread over a Pool of endpoints. SimplePool rotates through
// its URLs and skips endpoints whose last request failed at the transport
// level. JSON-RPC errors are returned as *RPCError and do not affect endpoint
// health.
//
//	pool := rpcfetch.NewSimplePool([]string{
//	    "https://rpc.mainnet.x1.xyz",
//	    "https://api.mainnet-beta.solana.com",
//	})
//	client := rpcfetch.NewRPCClient(pool, 30*time.Second,
//	    rpcfetch.WithRateLimit(10, 5),
//	    rpcfetch.WithEncoding(rpcfetch.EncodingBase64Zstd),
//	)
//
// # Encodings
//
// Account data can be requested as base58, base64 or base64+zstd. The
// compressed form is inflated transparently.
//
// # Errors
//
// The client does not retry. IsRetryable reports whether a caller could
// reasonably try again; a 429 answer surfaces as ErrRateLimited.
package rpcfetch
