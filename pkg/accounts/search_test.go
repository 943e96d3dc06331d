package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/idl"
)

func TestSearchByAddressReference(t *testing.T) {
	chain := newFakeChain()
	seedWallets(chain)
	g := newGateway(t, chain, Options{BatchSize: 3})
	ctx := context.Background()

	page, err := g.SearchByAddressReference(ctx, program, "SmartWallet", bob, 10)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{addr(1), addr(2), addr(4)}, addresses(page))
	assert.Equal(t, []string{"owners[1]", "config.authority"}, page.Records[0].Matches)
	assert.Equal(t, []string{"owners[0]"}, page.Records[1].Matches)

	page, err = g.SearchByAddressReference(ctx, program, "SmartWallet", carol, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalFound)
	assert.True(t, page.HasMore)
	assert.Equal(t, []types.Pubkey{addr(2)}, addresses(page))

	// base addresses are fields too
	page, err = g.SearchByAddressReference(ctx, program, "SmartWallet", addr(103), 10)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, []string{"base"}, page.Records[0].Matches)

	page, err = g.SearchByAddressReference(ctx, program, "SmartWallet", types.MustPubkeyFromBase58("Vote111111111111111111111111111111111111111"), 10)
	require.NoError(t, err)
	assert.Zero(t, page.TotalFound)
	assert.Empty(t, page.Records)
}

func TestFindReferences_EnumsAndBytes(t *testing.T) {
	target := carol
	fields := idl.Struct{
		{Name: "status", Value: idl.Enum{Variant: "Closed", Fields: []interface{}{idl.BigInt{}, target}}},
		{Name: "raw", Value: idl.Bytes(target[:])},
		{Name: "short", Value: idl.Bytes(target[:8])},
		{Name: "nested", Value: []interface{}{idl.Struct{{Name: "who", Value: target}}}},
	}

	assert.Equal(t, []string{"status.Closed[1]", "raw", "nested[0].who"}, FindReferences(fields, target))
}

func TestFindReferences_DepthCap(t *testing.T) {
	var v interface{} = carol
	for i := 0; i < MaxSearchDepth+10; i++ {
		v = []interface{}{v}
	}
	fields := idl.Struct{{Name: "deep", Value: v}}

	assert.Empty(t, FindReferences(fields, carol))
}
