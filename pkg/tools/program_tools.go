package tools

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fortiblox/X1-Lens/pkg/idl"
)

var listAccountTypesTool = mcp.NewTool(ToolListAccountTypes,
	mcp.WithDescription(
		"List the account types an Anchor program defines in its on-chain IDL, "+
			"with their storage keys, discriminators and field counts."),
	mcp.WithString("programId",
		mcp.Required(),
		mcp.Description("Program id (base58)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getAccountStructureTool = mcp.NewTool(ToolGetAccountStructure,
	mcp.WithDescription(
		"Describe the layout of one account type: each field with its type and estimated size, "+
			"the 8-byte discriminator and the estimated total size. Names are matched case-insensitively."),
	mcp.WithString("programId",
		mcp.Required(),
		mcp.Description("Program id (base58)")),
	mcp.WithString("accountType",
		mcp.Required(),
		mcp.Description("Account type name as listed by list_account_types")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listInstructionsTool = mcp.NewTool(ToolListInstructions,
	mcp.WithDescription(
		"List a program's instructions with their arguments and the accounts each expects, "+
			"including writable and signer flags and PDA seed definitions."),
	mcp.WithString("programId",
		mcp.Required(),
		mcp.Description("Program id (base58)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var refreshProgramCacheTool = mcp.NewTool(ToolRefreshProgramCache,
	mcp.WithDescription(
		"Reload a program's IDL from chain, replacing the cached copy. Reports whether the IDL changed."),
	mcp.WithString("programId",
		mcp.Required(),
		mcp.Description("Program id (base58)")),
)

type programArgs struct {
	ProgramID string `json:"programId" validate:"required"`
}

type accountTypeArgs struct {
	ProgramID   string `json:"programId" validate:"required"`
	AccountType string `json:"accountType" validate:"required"`
}

type accountTypeOut struct {
	Name          string `json:"name"`
	StorageKey    string `json:"storageKey"`
	Discriminator string `json:"discriminator"`
	FieldCount    int    `json:"fieldCount"`
}

type listAccountTypesOut struct {
	ProgramID    string           `json:"programId"`
	ProgramName  string           `json:"programName"`
	Version      string           `json:"version,omitempty"`
	AccountTypes []accountTypeOut `json:"accountTypes"`
}

type fieldOut struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	EstimatedSize int      `json:"estimatedSize"`
	Docs          []string `json:"docs,omitempty"`
}

type discriminatorOut struct {
	Hex   string `json:"hex"`
	Bytes []int  `json:"bytes"`
}

type accountStructureOut struct {
	ProgramID     string           `json:"programId"`
	AccountType   string           `json:"accountType"`
	StorageKey    string           `json:"storageKey"`
	Discriminator discriminatorOut `json:"discriminator"`
	Fields        []fieldOut       `json:"fields"`
	EstimatedSize int              `json:"estimatedSize"`
	Docs          []string         `json:"docs,omitempty"`
}

type argOut struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type instructionAccountOut struct {
	Name     string                  `json:"name"`
	Writable bool                    `json:"writable"`
	Signer   bool                    `json:"signer"`
	Optional bool                    `json:"optional,omitempty"`
	Address  string                  `json:"address,omitempty"`
	PDA      *idl.PDA                `json:"pda,omitempty"`
	Accounts []instructionAccountOut `json:"accounts,omitempty"`
}

type instructionOut struct {
	Name          string                  `json:"name"`
	Discriminator string                  `json:"discriminator,omitempty"`
	Docs          []string                `json:"docs,omitempty"`
	Args          []argOut                `json:"args"`
	Accounts      []instructionAccountOut `json:"accounts"`
}

type listInstructionsOut struct {
	ProgramID    string           `json:"programId"`
	ProgramName  string           `json:"programName"`
	Instructions []instructionOut `json:"instructions"`
}

type refreshOut struct {
	ProgramID    string    `json:"programId"`
	ProgramName  string    `json:"programName"`
	Version      string    `json:"version,omitempty"`
	Fingerprint  string    `json:"fingerprint"`
	Changed      bool      `json:"changed"`
	AccountTypes int       `json:"accountTypes"`
	Instructions int       `json:"instructions"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

func (s *Service) listAccountTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args programArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolListAccountTypes, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolListAccountTypes, err)
	}
	h, err := s.programs.Get(ctx, program)
	if err != nil {
		return s.textError(ToolListAccountTypes, err)
	}

	out := listAccountTypesOut{
		ProgramID:    program.String(),
		ProgramName:  h.IDL.Name,
		Version:      h.IDL.Version,
		AccountTypes: make([]accountTypeOut, 0, len(h.IDL.Accounts)),
	}
	for _, name := range h.IDL.AccountNames() {
		schema, err := idl.ResolveAccount(h.IDL, name)
		if err != nil {
			return s.textError(ToolListAccountTypes, err)
		}
		out.AccountTypes = append(out.AccountTypes, accountTypeOut{
			Name:          schema.Name,
			StorageKey:    h.StorageKey(schema.Name),
			Discriminator: hex.EncodeToString(schema.Discriminator[:]),
			FieldCount:    len(schema.Fields),
		})
	}
	return success(out)
}

func (s *Service) getAccountStructure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args accountTypeArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolGetAccountStructure, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolGetAccountStructure, err)
	}
	h, err := s.programs.Get(ctx, program)
	if err != nil {
		return s.textError(ToolGetAccountStructure, err)
	}
	schema, err := idl.ResolveAccount(h.IDL, args.AccountType)
	if err != nil {
		return s.textError(ToolGetAccountStructure, err)
	}

	disc := make([]int, len(schema.Discriminator))
	for i, b := range schema.Discriminator {
		disc[i] = int(b)
	}
	out := accountStructureOut{
		ProgramID:     program.String(),
		AccountType:   schema.Name,
		StorageKey:    h.StorageKey(schema.Name),
		Discriminator: discriminatorOut{Hex: hex.EncodeToString(schema.Discriminator[:]), Bytes: disc},
		Fields:        make([]fieldOut, len(schema.Fields)),
		EstimatedSize: idl.EstimateAccountSize(schema.Fields),
		Docs:          schema.Docs,
	}
	for i, f := range schema.Fields {
		out.Fields[i] = fieldOut{
			Name:          f.Name,
			Type:          f.Type.String(),
			EstimatedSize: idl.EstimateSize(f.Type),
			Docs:          f.Docs,
		}
	}
	return success(out)
}

func (s *Service) listInstructions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args programArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolListInstructions, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolListInstructions, err)
	}
	h, err := s.programs.Get(ctx, program)
	if err != nil {
		return s.textError(ToolListInstructions, err)
	}

	out := listInstructionsOut{
		ProgramID:    program.String(),
		ProgramName:  h.IDL.Name,
		Instructions: make([]instructionOut, len(h.IDL.Instructions)),
	}
	for i, ix := range h.IDL.Instructions {
		args := make([]argOut, len(ix.Args))
		for j, a := range ix.Args {
			args[j] = argOut{Name: a.Name, Type: a.Type.String()}
		}
		out.Instructions[i] = instructionOut{
			Name:          ix.Name,
			Discriminator: hex.EncodeToString(ix.Discriminator),
			Docs:          ix.Docs,
			Args:          args,
			Accounts:      instructionAccounts(ix.Accounts),
		}
	}
	return success(out)
}

func instructionAccounts(in []idl.InstructionAccount) []instructionAccountOut {
	out := make([]instructionAccountOut, len(in))
	for i, a := range in {
		out[i] = instructionAccountOut{
			Name:     a.Name,
			Writable: a.Writable,
			Signer:   a.Signer,
			Optional: a.Optional,
			Address:  a.Address,
			PDA:      a.PDA,
		}
		if len(a.Accounts) > 0 {
			out[i].Accounts = instructionAccounts(a.Accounts)
		}
	}
	return out
}

func (s *Service) refreshProgramCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args programArgs
	if err := bind(req, &args); err != nil {
		return s.textError(ToolRefreshProgramCache, err)
	}
	program, err := parseAddress("programId", args.ProgramID)
	if err != nil {
		return s.textError(ToolRefreshProgramCache, err)
	}

	h, changed, err := s.programs.Refresh(ctx, program)
	if err != nil {
		return s.textError(ToolRefreshProgramCache, err)
	}
	return success(refreshOut{
		ProgramID:    program.String(),
		ProgramName:  h.IDL.Name,
		Version:      h.IDL.Version,
		Fingerprint:  h.Fingerprint,
		Changed:      changed,
		AccountTypes: len(h.IDL.Accounts),
		Instructions: len(h.IDL.Instructions),
		FetchedAt:    h.FetchedAt.UTC(),
	})
}
