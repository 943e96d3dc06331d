package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/accounts"
	"github.com/fortiblox/X1-Lens/pkg/idl"
	"github.com/fortiblox/X1-Lens/pkg/idl/idltest"
	"github.com/fortiblox/X1-Lens/pkg/programcache"
	"github.com/fortiblox/X1-Lens/pkg/rpcfetch"
)

var (
	program = types.MustPubkeyFromBase58("GokivDYuQXPZCWRkwMhdH2h91KpDQXBEmpgBgs55bnpH")
	alice   = types.MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	bob     = types.MustPubkeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	carol   = types.MustPubkeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
)

// fakeChain is an in-memory ledger serving every read the tools make.
type fakeChain struct {
	mu       sync.Mutex
	order    []types.Pubkey
	accounts map[types.Pubkey]*rpcfetch.AccountInfo
}

func newFakeChain() *fakeChain {
	return &fakeChain{accounts: make(map[types.Pubkey]*rpcfetch.AccountInfo)}
}

func (f *fakeChain) put(addr types.Pubkey, info *rpcfetch.AccountInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[addr]; !ok {
		f.order = append(f.order, addr)
	}
	f.accounts[addr] = info
}

func (f *fakeChain) GetAccountInfo(_ context.Context, address types.Pubkey) (*rpcfetch.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[address], nil
}

func (f *fakeChain) GetMultipleAccounts(_ context.Context, addresses []types.Pubkey) ([]*rpcfetch.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*rpcfetch.AccountInfo, len(addresses))
	for i, a := range addresses {
		out[i] = f.accounts[a]
	}
	return out, nil
}

func (f *fakeChain) GetProgramAccounts(_ context.Context, owner types.Pubkey, opts rpcfetch.ProgramAccountsOptions) ([]rpcfetch.KeyedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rpcfetch.KeyedAccount
	for _, addr := range f.order {
		info := f.accounts[addr]
		if info.Owner != owner {
			continue
		}
		matched := true
		for _, m := range opts.Memcmp {
			end := int(m.Offset) + len(m.Bytes)
			if end > len(info.Data) || !bytes.Equal(info.Data[m.Offset:end], m.Bytes) {
				matched = false
			}
		}
		if matched {
			out = append(out, rpcfetch.KeyedAccount{Pubkey: addr, Account: &rpcfetch.AccountInfo{Owner: owner}})
		}
	}
	return out, nil
}

func (f *fakeChain) deploy(t *testing.T, id types.Pubkey, doc []byte) {
	t.Helper()
	f.put(id, &rpcfetch.AccountInfo{Owner: types.BPFLoaderUpgradeableAddr, Executable: true, Lamports: 1_141_440, Data: make([]byte, 36)})

	idlAddr, err := idl.Address(id)
	require.NoError(t, err)
	data, err := idl.EncodeIDLAccount(types.SystemProgramAddr, doc)
	require.NoError(t, err)
	f.put(idlAddr, &rpcfetch.AccountInfo{Owner: id, Data: data})
}

func walletAddr(i int) types.Pubkey {
	var p types.Pubkey
	p[0] = 0xB0
	p[31] = byte(i)
	return p
}

// seedWallets adds five SmartWallet accounts:
//
//	wallet 0: threshold 1, owners [alice],      authority alice
//	wallet 1: threshold 2, owners [alice, bob], authority bob
//	wallet 2: threshold 2, owners [bob, carol], authority alice
//	wallet 3: threshold 3, owners [carol],      authority carol
//	wallet 4: threshold 2, owners [alice, bob], authority alice
func seedWallets(f *fakeChain) {
	wallets := []idltest.SmartWallet{
		{Threshold: 1, Owners: []types.Pubkey{alice}, Authority: alice},
		{Threshold: 2, Owners: []types.Pubkey{alice, bob}, Authority: bob},
		{Threshold: 2, Owners: []types.Pubkey{bob, carol}, Authority: alice},
		{Threshold: 3, Owners: []types.Pubkey{carol}, Authority: carol},
		{Threshold: 2, Owners: []types.Pubkey{alice, bob}, Authority: alice},
	}
	for i, w := range wallets {
		w.Base = walletAddr(100 + i)
		f.put(walletAddr(i), &rpcfetch.AccountInfo{Lamports: 2_000_000, Owner: program, Data: w.Encode()})
	}
}

type fixture struct {
	chain *fakeChain
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chain := newFakeChain()
	chain.deploy(t, program, idltest.SmartWalletJSON)
	seedWallets(chain)

	logger := zaptest.NewLogger(t)
	cache, err := programcache.New(chain, programcache.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	gw := accounts.NewGateway(chain, cache, accounts.Options{Logger: logger})
	return &fixture{chain: chain, svc: New(chain, cache, gw, logger)}
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, st := range f.svc.Tools() {
		if st.Tool.Name != name {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := st.Handler(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res)
		return res
	}
	t.Fatalf("tool %s is not registered", name)
	return nil
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "first content is %T", res.Content[0])
	return tc.Text
}

// decode unmarshals the text result of a successful call into out.
func decode(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), out))
}

func TestTools_Registered(t *testing.T) {
	f := newFixture(t)

	var names []string
	for _, st := range f.svc.Tools() {
		names = append(names, st.Tool.Name)
		assert.NotEmpty(t, st.Tool.Description, st.Tool.Name)
		assert.NotNil(t, st.Handler, st.Tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		ToolCheckAccountExists,
		ToolDerivePDA,
		ToolFetchAccount,
		ToolFetchAllAccounts,
		ToolFilterAccounts,
		ToolGetAccountStructure,
		ToolListAccountTypes,
		ToolListInstructions,
		ToolRefreshProgramCache,
		ToolSearchByAddress,
	}, names)
}

func TestNewServer(t *testing.T) {
	f := newFixture(t)
	assert.NotNil(t, NewServer(f.svc, "test"))
}
