// Package accounts reads live program accounts and decodes them against the
// program's interface.
//
// Single reads go through getAccountInfo. Bulk reads list the addresses of one
// account type with a discriminator filtered getProgramAccounts call that
// returns no data, then load the accounts with getMultipleAccounts in
// bounded parallel batches. Records that fail to decode are skipped and
// counted rather than failing the scan.
package accounts

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/idl"
	"github.com/fortiblox/X1-Lens/pkg/programcache"
	"github.com/fortiblox/X1-Lens/pkg/rpcfetch"
	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

// Scan defaults.
const (
	DefaultBatchSize        = rpcfetch.MaxMultipleAccounts
	DefaultBatchConcurrency = 5
	DefaultMaxScanAccounts  = 2000
)

// Chain is the RPC surface the gateway reads through.
type Chain interface {
	GetAccountInfo(ctx context.Context, address types.Pubkey) (*rpcfetch.AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, addresses []types.Pubkey) ([]*rpcfetch.AccountInfo, error)
	GetProgramAccounts(ctx context.Context, program types.Pubkey, opts rpcfetch.ProgramAccountsOptions) ([]rpcfetch.KeyedAccount, error)
}

// HandleProvider resolves a program id to its parsed interface.
type HandleProvider interface {
	Get(ctx context.Context, program types.Pubkey) (*programcache.Handle, error)
}

// Record is one decoded account.
type Record struct {
	Address  types.Pubkey `json:"address"`
	Lamports uint64       `json:"lamports"`
	Owner    types.Pubkey `json:"owner"`
	Fields   idl.Struct   `json:"data"`

	// AccountType is the declared name of the type the record decoded as.
	AccountType string `json:"-"`
	StorageKey  string `json:"-"`

	// Matches lists the field paths that referenced the searched address.
	Matches []string `json:"matchedPaths,omitempty"`
}

// Page is the result of a bulk read.
type Page struct {
	AccountType string   `json:"accountType"`
	StorageKey  string   `json:"storageKey"`
	TotalFound  int      `json:"totalFound"`
	Records     []Record `json:"accounts"`
	HasMore     bool     `json:"hasMore"`

	// Skipped counts accounts that could not be loaded or decoded.
	Skipped int `json:"skipped,omitempty"`

	// Truncated is set when the program held more accounts of the type than
	// a scan is allowed to read.
	Truncated bool `json:"truncated,omitempty"`
}

// Options configures a Gateway.
type Options struct {
	BatchSize        int
	BatchConcurrency int
	MaxScanAccounts  int
	Logger           *zap.Logger
}

// Gateway fetches, filters and searches decoded accounts.
type Gateway struct {
	chain   Chain
	handles HandleProvider
	opts    Options
	logger  *zap.Logger
}

// NewGateway creates a gateway. Zero options take the package defaults.
func NewGateway(chain Chain, handles HandleProvider, opts Options) *Gateway {
	if opts.BatchSize <= 0 || opts.BatchSize > rpcfetch.MaxMultipleAccounts {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = DefaultBatchConcurrency
	}
	if opts.MaxScanAccounts <= 0 {
		opts.MaxScanAccounts = DefaultMaxScanAccounts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gateway{chain: chain, handles: handles, opts: opts, logger: opts.Logger}
}

// resolve loads the program handle and the schema of accountType.
func (g *Gateway) resolve(ctx context.Context, program types.Pubkey, accountType string) (*programcache.Handle, *idl.AccountSchema, error) {
	h, err := g.handles.Get(ctx, program)
	if err != nil {
		return nil, nil, err
	}
	schema, err := idl.ResolveAccount(h.IDL, accountType)
	if err != nil {
		return nil, nil, err
	}
	return h, schema, nil
}

// FetchOne reads and decodes the account at address as accountType.
func (g *Gateway) FetchOne(ctx context.Context, program types.Pubkey, accountType string, address types.Pubkey) (*Record, error) {
	h, schema, err := g.resolve(ctx, program, accountType)
	if err != nil {
		return nil, err
	}

	info, err := g.chain.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, toolerr.Upstream(err, "load account %s", address)
	}
	if info == nil {
		return nil, toolerr.New(toolerr.KindAccountNotFound, "no account exists at %s", address)
	}
	if info.Owner != program {
		return nil, toolerr.New(toolerr.KindDecode, "account %s is owned by %s, not %s", address, info.Owner, program).
			WithHint("Check that the address belongs to this program, or pass the owning program id")
	}

	fields, err := idl.DecodeAccount(h.IDL, schema, info.Data)
	if err != nil {
		return nil, toolerr.Wrap(err, toolerr.KindDecode, "account %s does not decode as %s", address, schema.Name)
	}
	return &Record{
		Address:     address,
		Lamports:    info.Lamports,
		Owner:       info.Owner,
		Fields:      fields,
		AccountType: schema.Name,
		StorageKey:  h.StorageKey(schema.Name),
	}, nil
}

// FetchAll returns up to limit accounts of accountType. TotalFound counts
// every account of the type, whether or not it was loaded. A negative limit
// counts as 0.
func (g *Gateway) FetchAll(ctx context.Context, program types.Pubkey, accountType string, limit int) (*Page, error) {
	limit = max(limit, 0)
	h, schema, err := g.resolve(ctx, program, accountType)
	if err != nil {
		return nil, err
	}

	addrs, err := g.listAddresses(ctx, program, schema)
	if err != nil {
		return nil, err
	}

	page := &Page{
		AccountType: schema.Name,
		StorageKey:  h.StorageKey(schema.Name),
		TotalFound:  len(addrs),
		HasMore:     len(addrs) > limit,
	}
	if len(addrs) > limit {
		addrs = addrs[:limit]
	}

	records, skipped, err := g.load(ctx, h, schema, addrs)
	if err != nil {
		return nil, err
	}
	page.Records = records
	page.Skipped = skipped
	return page, nil
}

// scan decodes every account of accountType, up to MaxScanAccounts, and keeps
// the records keep accepts in address listing order.
func (g *Gateway) scan(ctx context.Context, program types.Pubkey, accountType string, limit int, keep func(*Record) bool) (*Page, error) {
	h, schema, err := g.resolve(ctx, program, accountType)
	if err != nil {
		return nil, err
	}
	return g.scanSchema(ctx, h, schema, limit, keep)
}

func (g *Gateway) scanSchema(ctx context.Context, h *programcache.Handle, schema *idl.AccountSchema, limit int, keep func(*Record) bool) (*Page, error) {
	limit = max(limit, 0)
	addrs, err := g.listAddresses(ctx, h.ProgramID, schema)
	if err != nil {
		return nil, err
	}

	page := &Page{AccountType: schema.Name, StorageKey: h.StorageKey(schema.Name)}
	if len(addrs) > g.opts.MaxScanAccounts {
		g.logger.Info("scan truncated",
			zap.Stringer("program", h.ProgramID),
			zap.String("account_type", schema.Name),
			zap.Int("found", len(addrs)),
			zap.Int("max", g.opts.MaxScanAccounts),
		)
		addrs = addrs[:g.opts.MaxScanAccounts]
		page.Truncated = true
	}

	records, skipped, err := g.load(ctx, h, schema, addrs)
	if err != nil {
		return nil, err
	}
	page.Skipped = skipped

	matched := make([]Record, 0, limit)
	for i := range records {
		if !keep(&records[i]) {
			continue
		}
		page.TotalFound++
		if len(matched) < limit {
			matched = append(matched, records[i])
		}
	}
	page.Records = matched
	page.HasMore = page.TotalFound > limit
	return page, nil
}

// listAddresses returns the addresses of every account whose data starts with
// the discriminator of schema.
func (g *Gateway) listAddresses(ctx context.Context, program types.Pubkey, schema *idl.AccountSchema) ([]types.Pubkey, error) {
	keyed, err := g.chain.GetProgramAccounts(ctx, program, rpcfetch.ProgramAccountsOptions{
		Memcmp:    []rpcfetch.MemcmpFilter{{Offset: 0, Bytes: schema.Discriminator[:]}},
		DataSlice: &rpcfetch.DataSlice{Offset: 0, Length: 0},
	})
	if err != nil {
		return nil, toolerr.Upstream(err, "list %s accounts of %s", schema.Name, program)
	}

	addrs := make([]types.Pubkey, len(keyed))
	for i, k := range keyed {
		addrs[i] = k.Pubkey
	}
	return addrs, nil
}

// load fetches addrs in batches and decodes them. Results keep the order of
// addrs. A batch that fails is skipped; the load fails only when every batch
// failed.
func (g *Gateway) load(ctx context.Context, h *programcache.Handle, schema *idl.AccountSchema, addrs []types.Pubkey) ([]Record, int, error) {
	if len(addrs) == 0 {
		return []Record{}, 0, nil
	}

	infos := make([]*rpcfetch.AccountInfo, len(addrs))
	batches := (len(addrs) + g.opts.BatchSize - 1) / g.opts.BatchSize
	batchErrs := make([]error, batches)

	var eg errgroup.Group
	eg.SetLimit(g.opts.BatchConcurrency)
	for b := 0; b < batches; b++ {
		start := b * g.opts.BatchSize
		end := min(start+g.opts.BatchSize, len(addrs))
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				batchErrs[b] = err
				return nil
			}
			got, err := g.chain.GetMultipleAccounts(ctx, addrs[start:end])
			if err != nil {
				batchErrs[b] = err
				return nil
			}
			copy(infos[start:end], got)
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	var firstErr error
	for b, err := range batchErrs {
		if err == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
		g.logger.Warn("account batch failed",
			zap.String("account_type", schema.Name),
			zap.Int("batch", b),
			zap.Error(err),
		)
	}
	if failed == batches {
		return nil, 0, toolerr.Upstream(firstErr, "load %s accounts", schema.Name)
	}

	key := h.StorageKey(schema.Name)
	records := make([]Record, 0, len(addrs))
	skipped := 0
	for i, info := range infos {
		if info == nil {
			skipped++
			continue
		}
		fields, err := idl.DecodeAccount(h.IDL, schema, info.Data)
		if err != nil {
			g.logger.Debug("skipping undecodable account",
				zap.Stringer("address", addrs[i]),
				zap.String("account_type", schema.Name),
				zap.Error(err),
			)
			skipped++
			continue
		}
		records = append(records, Record{
			Address:     addrs[i],
			Lamports:    info.Lamports,
			Owner:       info.Owner,
			Fields:      fields,
			AccountType: schema.Name,
			StorageKey:  key,
		})
	}
	return records, skipped, nil
}
