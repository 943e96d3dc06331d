package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/accounts"
)

func limitOption() mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description("Maximum number of accounts to return (1-100, default 10)"),
		mcp.Min(1),
		mcp.Max(MaxLimit),
		mcp.DefaultNumber(DefaultLimit))
}

var fetchAccountTool = mcp.NewTool(ToolFetchAccount,
	mcp.WithDescription(
		"Fetch one account and decode it as the given account type. "+
			"Fails with a decode error when the data does not match the type."),
	mcp.WithString("programId", mcp.Required(), mcp.Description("Program id (base58)")),
	mcp.WithString("accountType", mcp.Required(), mcp.Description("Account type name, matched case-insensitively")),
	mcp.WithString("address", mcp.Required(), mcp.Description("Account address (base58)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var fetchAllAccountsTool = mcp.NewTool(ToolFetchAllAccounts,
	mcp.WithDescription(
		"Fetch and decode accounts of one type owned by the program. "+
			"totalFound counts every account of the type; hasMore is set when it exceeds the limit."),
	mcp.WithString("programId", mcp.Required(), mcp.Description("Program id (base58)")),
	mcp.WithString("accountType", mcp.Required(), mcp.Description("Account type name, matched case-insensitively")),
	limitOption(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var filterAccountsTool = mcp.NewTool(ToolFilterAccounts,
	mcp.WithDescription(
		"Return accounts of one type whose fields equal every given value. "+
			"Fields may be dotted paths into nested structs. Addresses compare as base58 and "+
			"integers as decimal strings or numbers. An empty filter list matches every account."),
	mcp.WithString("programId", mcp.Required(), mcp.Description("Program id (base58)")),
	mcp.WithString("accountType", mcp.Required(), mcp.Description("Account type name, matched case-insensitively")),
	mcp.WithArray("filters",
		mcp.Required(),
		mcp.Description("Field equality predicates, combined with AND"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field": map[string]any{"type": "string", "description": "Field name or dotted path, e.g. config.authority"},
				"value": map[string]any{"description": "Expected value"},
			},
			"required": []string{"field", "value"},
		})),
	limitOption(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var searchByAddressTool = mcp.NewTool(ToolSearchByAddress,
	mcp.WithDescription(
		"Find accounts of one type that reference an address anywhere in their data, "+
			"including nested structs, vectors and enum payloads. Each match lists the field paths."),
	mcp.WithString("programId", mcp.Required(), mcp.Description("Program id (base58)")),
	mcp.WithString("accountType", mcp.Required(), mcp.Description("Account type name, matched case-insensitively")),
	mcp.WithString("address", mcp.Required(), mcp.Description("Address to search for (base58)")),
	limitOption(),
	mcp.WithReadOnlyHintAnnotation(true),
)

type fetchAccountArgs struct {
	ProgramID   string `json:"programId" validate:"required"`
	AccountType string `json:"accountType" validate:"required"`
	Address     string `json:"address" validate:"required"`
}

type fetchAllArgs struct {
	ProgramID   string `json:"programId" validate:"required"`
	AccountType string `json:"accountType" validate:"required"`
	Limit       *int   `json:"limit" validate:"omitempty,min=1,max=100"`
}

type filterArgs struct {
	ProgramID   string            `json:"programId" validate:"required"`
	AccountType string            `json:"accountType" validate:"required"`
	Filters     []accounts.Filter `json:"filters" validate:"required,dive"`
	Limit       *int              `json:"limit" validate:"omitempty,min=1,max=100"`
}

type searchArgs struct {
	ProgramID   string `json:"programId" validate:"required"`
	AccountType string `json:"accountType" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Limit       *int   `json:"limit" validate:"omitempty,min=1,max=100"`
}

type recordOut struct {
	ProgramID   string `json:"programId"`
	AccountType string `json:"accountType"`
	StorageKey  string `json:"storageKey"`
	accounts.Record
}

type pageOut struct {
	ProgramID string `json:"programId"`
	Limit     int    `json:"limit"`
	*accounts.Page
}

func (s *Service) fetchAccount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args fetchAccountArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolFetchAccount, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolFetchAccount, err)
	}
	addr, err := parseAddress("address", args.Address)
	if err != nil {
		return s.textError(ToolFetchAccount, err)
	}

	rec, err := s.accounts.FetchOne(ctx, program, args.AccountType, addr)
	if err != nil {
		return s.textError(ToolFetchAccount, err)
	}
	return success(recordOut{
		ProgramID:   program.String(),
		AccountType: rec.AccountType,
		StorageKey:  rec.StorageKey,
		Record:      *rec,
	})
}

func (s *Service) fetchAllAccounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args fetchAllArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolFetchAllAccounts, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolFetchAllAccounts, err)
	}

	limit := limitOrDefault(args.Limit)
	page, err := s.accounts.FetchAll(ctx, program, args.AccountType, limit)
	if err != nil {
		return s.textError(ToolFetchAllAccounts, err)
	}
	return success(newPageOut(program, limit, page))
}

func (s *Service) filterAccounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args filterArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolFilterAccounts, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolFilterAccounts, err)
	}

	limit := limitOrDefault(args.Limit)
	page, err := s.accounts.FilterByFields(ctx, program, args.AccountType, args.Filters, limit)
	if err != nil {
		return s.textError(ToolFilterAccounts, err)
	}
	return success(newPageOut(program, limit, page))
}

func (s *Service) searchByAddress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolSearchByAddress, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolSearchByAddress, err)
	}
	target, err := parseAddress("address", args.Address)
	if err != nil {
		return s.textError(ToolSearchByAddress, err)
	}

	limit := limitOrDefault(args.Limit)
	page, err := s.accounts.SearchByAddressReference(ctx, program, args.AccountType, target, limit)
	if err != nil {
		return s.textError(ToolSearchByAddress, err)
	}
	return success(newPageOut(program, limit, page))
}

func newPageOut(program types.Pubkey, limit int, page *accounts.Page) pageOut {
	return pageOut{
		ProgramID: program.String(),
		Limit:     limit,
		Page:      page,
	}
}
