package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fortiblox/X1-Lens/pkg/pda"
)

var derivePDATool = mcp.NewTool(ToolDerivePDA,
	mcp.WithDescription(
		"Derive a program derived address (PDA) and its bump from a program id and ordered seeds. "+
			"Seeds starting with 0x are hex bytes, valid base58 addresses are their 32 bytes, "+
			"anything else is UTF-8 text. Optionally checks whether an account exists at the result."),
	mcp.WithString("programId",
		mcp.Required(),
		mcp.Description("Program id (base58)")),
	mcp.WithArray("seeds",
		mcp.Required(),
		mcp.Description("Seeds in the order the program declares them, at most 15, each at most 32 bytes once encoded"),
		mcp.WithStringItems(),
		mcp.MinItems(1),
		mcp.MaxItems(pda.MaxSeeds-1)),
	mcp.WithBoolean("checkExistence",
		mcp.Description("Also look up the derived address on chain (default false)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var checkAccountExistsTool = mcp.NewTool(ToolCheckAccountExists,
	mcp.WithDescription(
		"Check whether an account exists at an address and report its lamports, data length and owner."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("Account address (base58)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

type derivePDAArgs struct {
	ProgramID      string   `json:"programId" validate:"required"`
	Seeds          []string `json:"seeds" validate:"required,min=1"`
	CheckExistence bool     `json:"checkExistence"`
}

type seedOut struct {
	Index          int          `json:"index"`
	OriginalValue  string       `json:"originalValue"`
	Classification pda.SeedKind `json:"classification"`
	Hex            string       `json:"hex"`
	Length         int          `json:"length"`
}

type existenceOut struct {
	Exists     bool    `json:"exists"`
	Lamports   uint64  `json:"lamports"`
	DataLength int     `json:"dataLength"`
	Owner      *string `json:"owner"`
}

type derivePDAOut struct {
	Success   bool          `json:"success"`
	ProgramID string        `json:"programId"`
	Address   string        `json:"address"`
	Bump      uint8         `json:"bump"`
	Seeds     []seedOut     `json:"seeds"`
	Account   *existenceOut `json:"account,omitempty"`
}

type checkAccountArgs struct {
	Address string `json:"address" validate:"required"`
}

type checkAccountOut struct {
	Success bool   `json:"success"`
	Address string `json:"address"`
	existenceOut
}

func (s *Service) derivePDA(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args derivePDAArgs
	if err := bind(req, &args); err != nil {
		return s.structuredError(ToolDerivePDA, err)
	}

	seeds, err := pda.ClassifySeeds(args.Seeds)
	if err != nil {
		return s.structuredError(ToolDerivePDA, err)
	}
	derived, err := pda.Derive(args.ProgramID, pda.SeedBytes(seeds))
	if err != nil {
		return s.structuredError(ToolDerivePDA, err)
	}

	out := derivePDAOut{
		Success:   true,
		ProgramID: args.ProgramID,
		Address:   derived.Address.String(),
		Bump:      derived.Bump,
		Seeds:     make([]seedOut, len(seeds)),
	}
	for i, seed := range seeds {
		out.Seeds[i] = seedOut{
			Index:          seed.Index,
			OriginalValue:  seed.Original,
			Classification: seed.Kind,
			Hex:            seed.Hex(),
			Length:         seed.Length,
		}
	}

	if args.CheckExistence {
		ex, err := pda.CheckExistence(ctx, s.chain, derived.Address)
		if err != nil {
			return s.structuredError(ToolDerivePDA, err)
		}
		acc := toExistenceOut(ex)
		out.Account = &acc
	}
	return success(out)
}

func (s *Service) checkAccountExists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args checkAccountArgs
	if err := bind(req, &args); err != nil {
		return s.structuredError(ToolCheckAccountExists, err)
	}
	addr, err := parseAddress("address", args.Address)
	if err != nil {
		return s.structuredError(ToolCheckAccountExists, err)
	}

	ex, err := pda.CheckExistence(ctx, s.chain, addr)
	if err != nil {
		return s.structuredError(ToolCheckAccountExists, err)
	}
	return success(checkAccountOut{Success: true, Address: addr.String(), existenceOut: toExistenceOut(ex)})
}

func toExistenceOut(ex pda.Existence) existenceOut {
	out := existenceOut{Exists: ex.Exists, Lamports: ex.Lamports, DataLength: ex.DataLength}
	if ex.Owner != nil {
		owner := ex.Owner.String()
		out.Owner = &owner
	}
	return out
}
