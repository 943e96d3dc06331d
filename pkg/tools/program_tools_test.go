package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/idl/idltest"
)

func TestListAccountTypes(t *testing.T) {
	f := newFixture(t)

	var out listAccountTypesOut
	decode(t, f.call(t, ToolListAccountTypes, map[string]any{"programId": program.String()}), &out)

	assert.Equal(t, program.String(), out.ProgramID)
	assert.Equal(t, "smart_wallet", out.ProgramName)
	assert.Equal(t, "0.11.1", out.Version)
	assert.Equal(t, []accountTypeOut{
		{Name: "SmartWallet", StorageKey: "smartWallet", Discriminator: "433bdcb3290a3cb1", FieldCount: 7},
		{Name: "SmartWalletConfig", StorageKey: "smartWalletConfig", Discriminator: "8ad303504164cf8e", FieldCount: 4},
		{Name: "TransactionRecord", StorageKey: "transactionRecord", Discriminator: "ce170561a19d196b", FieldCount: 0},
	}, out.AccountTypes)
}

func TestGetAccountStructure(t *testing.T) {
	f := newFixture(t)

	var out accountStructureOut
	decode(t, f.call(t, ToolGetAccountStructure, map[string]any{
		"programId":   program.String(),
		"accountType": "smartwalletconfig",
	}), &out)

	assert.Equal(t, "SmartWalletConfig", out.AccountType)
	assert.Equal(t, "smartWalletConfig", out.StorageKey)
	assert.Equal(t, "8ad303504164cf8e", out.Discriminator.Hex)
	assert.Equal(t, []int{138, 211, 3, 80, 65, 100, 207, 142}, out.Discriminator.Bytes)
	assert.Equal(t, []fieldOut{
		{Name: "authority", Type: "pubkey", EstimatedSize: 32},
		{Name: "fee_bps", Type: "u16", EstimatedSize: 2},
		{Name: "tag", Type: "[u8; 33]", EstimatedSize: 33},
		{Name: "max_amount", Type: "u128", EstimatedSize: 16},
	}, out.Fields)
	assert.Equal(t, 8+32+2+33+16, out.EstimatedSize)
}

func TestGetAccountStructure_Fallback(t *testing.T) {
	f := newFixture(t)

	var out accountStructureOut
	decode(t, f.call(t, ToolGetAccountStructure, map[string]any{
		"programId":   program.String(),
		"accountType": "SmartWallet",
	}), &out)

	names := make([]string, len(out.Fields))
	for i, fld := range out.Fields {
		names[i] = fld.Name
	}
	assert.Equal(t, []string{"base", "bump", "threshold", "owners", "config", "label", "status"}, names)
	assert.Equal(t, "Vec<pubkey>", out.Fields[3].Type)
	assert.Equal(t, "Option<string>", out.Fields[5].Type)
	assert.Equal(t, []string{"A multisig wallet controlled by a set of owners."}, out.Docs)
}

func TestGetAccountStructure_UnknownType(t *testing.T) {
	f := newFixture(t)

	res := f.call(t, ToolGetAccountStructure, map[string]any{
		"programId":   program.String(),
		"accountType": "Vault",
	})
	require.True(t, res.IsError)
	msg := text(t, res)
	assert.Contains(t, msg, `account type "Vault" not found`)
	assert.Contains(t, msg, "Available: SmartWallet, SmartWalletConfig, TransactionRecord")
}

func TestListInstructions(t *testing.T) {
	f := newFixture(t)

	var out listInstructionsOut
	decode(t, f.call(t, ToolListInstructions, map[string]any{"programId": program.String()}), &out)

	require.Len(t, out.Instructions, 2)
	create := out.Instructions[0]
	assert.Equal(t, "create_smart_wallet", create.Name)
	assert.Equal(t, "8127eb128444cb13", create.Discriminator)
	assert.Equal(t, []argOut{
		{Name: "bump", Type: "u8"},
		{Name: "max_owners", Type: "u8"},
		{Name: "owners", Type: "Vec<pubkey>"},
		{Name: "threshold", Type: "u64"},
	}, create.Args)

	require.Len(t, create.Accounts, 4)
	assert.True(t, create.Accounts[0].Signer)
	assert.False(t, create.Accounts[0].Writable)
	require.NotNil(t, create.Accounts[1].PDA)
	assert.Len(t, create.Accounts[1].PDA.Seeds, 2)
	assert.Equal(t, "const", create.Accounts[1].PDA.Seeds[0].Kind)
	assert.Equal(t, []byte("SmartWallet"), []byte(create.Accounts[1].PDA.Seeds[0].Value))
	assert.True(t, create.Accounts[2].Writable)
	assert.True(t, create.Accounts[2].Signer)
	assert.Equal(t, types.SystemProgramAddr.String(), create.Accounts[3].Address)

	assert.Equal(t, "SmartWalletConfig", out.Instructions[1].Args[0].Type)
}

func TestProgramTools_Errors(t *testing.T) {
	f := newFixture(t)
	undeployed := walletAddr(250)

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		message string
	}{
		{"missing program id", ToolListAccountTypes, map[string]any{}, "programId is required"},
		{"invalid program id", ToolListInstructions, map[string]any{"programId": "xyz"}, "not a valid base58 address"},
		{"no program", ToolListAccountTypes, map[string]any{"programId": undeployed.String()}, "no program is deployed"},
		{"wallet is not a program", ToolListInstructions, map[string]any{"programId": walletAddr(1).String()}, "no program is deployed"},
		{"missing account type", ToolGetAccountStructure, map[string]any{"programId": program.String()}, "accountType is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.call(t, tt.tool, tt.args)
			require.True(t, res.IsError)
			assert.Contains(t, text(t, res), tt.message)
		})
	}
}

func TestListAccountTypes_NoIDL(t *testing.T) {
	f := newFixture(t)
	bare := walletAddr(240)
	f.chain.put(bare, f.chain.accounts[program])

	res := f.call(t, ToolListAccountTypes, map[string]any{"programId": bare.String()})
	require.True(t, res.IsError)
	assert.NotEmpty(t, text(t, res))
}

func TestRefreshProgramCache(t *testing.T) {
	f := newFixture(t)

	// warm the cache
	var listed listAccountTypesOut
	decode(t, f.call(t, ToolListAccountTypes, map[string]any{"programId": program.String()}), &listed)

	var same refreshOut
	decode(t, f.call(t, ToolRefreshProgramCache, map[string]any{"programId": program.String()}), &same)
	assert.False(t, same.Changed)
	assert.Equal(t, "smart_wallet", same.ProgramName)
	assert.Equal(t, 3, same.AccountTypes)
	assert.Equal(t, 2, same.Instructions)
	assert.Len(t, same.Fingerprint, 64)

	// upgrade the program interface
	f.chain.deploy(t, program, idltest.EscrowLegacyJSON)

	var upgraded refreshOut
	decode(t, f.call(t, ToolRefreshProgramCache, map[string]any{"programId": program.String()}), &upgraded)
	assert.True(t, upgraded.Changed)
	assert.NotEqual(t, same.Fingerprint, upgraded.Fingerprint)
	assert.NotEqual(t, "smart_wallet", upgraded.ProgramName)

	// later reads see the new interface
	decode(t, f.call(t, ToolListAccountTypes, map[string]any{"programId": program.String()}), &listed)
	assert.Equal(t, upgraded.ProgramName, listed.ProgramName)
}
