// Package tools exposes X1-Lens as MCP tools for LLM agents.
//
// Two tool families report failures differently. The PDA family
// (derive_pda, check_account_exists) answers with a structured error object
// {success: false, error: {kind, category, message, hint}}. The program and
// account family answers with an error result whose text is the message
// followed by guidance. Neither returns a Go error to the transport.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/accounts"
	"github.com/fortiblox/X1-Lens/pkg/pda"
	"github.com/fortiblox/X1-Lens/pkg/programcache"
)

// Tool names.
const (
	ToolDerivePDA           = "derive_pda"
	ToolCheckAccountExists  = "check_account_exists"
	ToolListAccountTypes    = "list_account_types"
	ToolGetAccountStructure = "get_account_structure"
	ToolListInstructions    = "list_instructions"
	ToolFetchAccount        = "fetch_account"
	ToolFetchAllAccounts    = "fetch_all_accounts"
	ToolFilterAccounts      = "filter_accounts"
	ToolSearchByAddress     = "search_accounts_by_address"
	ToolRefreshProgramCache = "refresh_program_cache"
)

// Limits for bulk tools.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Programs resolves program ids to their interfaces.
type Programs interface {
	Get(ctx context.Context, program types.Pubkey) (*programcache.Handle, error)
	Refresh(ctx context.Context, program types.Pubkey) (*programcache.Handle, bool, error)
}

// Accounts reads decoded program accounts.
type Accounts interface {
	FetchOne(ctx context.Context, program types.Pubkey, accountType string, address types.Pubkey) (*accounts.Record, error)
	FetchAll(ctx context.Context, program types.Pubkey, accountType string, limit int) (*accounts.Page, error)
	FilterByFields(ctx context.Context, program types.Pubkey, accountType string, filters []accounts.Filter, limit int) (*accounts.Page, error)
	SearchByAddressReference(ctx context.Context, program types.Pubkey, accountType string, target types.Pubkey, limit int) (*accounts.Page, error)
}

// Service implements the tool handlers.
type Service struct {
	chain    pda.AccountGetter
	programs Programs
	accounts Accounts
	logger   *zap.Logger
}

// New creates a Service. chain answers existence checks.
func New(chain pda.AccountGetter, programs Programs, accts Accounts, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{chain: chain, programs: programs, accounts: accts, logger: logger}
}

// Tools returns every tool with its handler.
func (s *Service) Tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: derivePDATool, Handler: s.derivePDA},
		{Tool: checkAccountExistsTool, Handler: s.checkAccountExists},
		{Tool: listAccountTypesTool, Handler: s.listAccountTypes},
		{Tool: getAccountStructureTool, Handler: s.getAccountStructure},
		{Tool: listInstructionsTool, Handler: s.listInstructions},
		{Tool: fetchAccountTool, Handler: s.fetchAccount},
		{Tool: fetchAllAccountsTool, Handler: s.fetchAllAccounts},
		{Tool: filterAccountsTool, Handler: s.filterAccounts},
		{Tool: searchByAddressTool, Handler: s.searchByAddress},
		{Tool: refreshProgramCacheTool, Handler: s.refreshProgramCache},
	}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(s *Service, version string) *server.MCPServer {
	srv := server.NewMCPServer("x1-lens", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	srv.AddTools(s.Tools()...)
	return srv
}

const instructions = "X1-Lens derives program derived addresses and reads Anchor program accounts on Solana-compatible chains. " +
	"Start with list_account_types or list_instructions to learn a program's interface, " +
	"then use fetch_all_accounts, filter_accounts or search_accounts_by_address to read live accounts."
