package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"system program", "11111111111111111111111111111111", true},
		{"loader", "BPFLoader1111111111111111111111111111111111", true},
		{"token program", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", true},
		{"empty", "", false},
		{"too short", "1111", false},
		{"too long", strings.Repeat("1", 45), false},
		{"invalid alphabet", "0OIl" + strings.Repeat("1", 30), false},
		{"wrong decoded length", strings.Repeat("z", 44), false},
		{"plain text", "vault", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAddress(tt.input))
		})
	}
}

func TestAddressBytes(t *testing.T) {
	b, err := AddressBytes("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, PubkeySize), b)

	_, err = AddressBytes("not-an-address")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestPubkeyRoundTrip(t *testing.T) {
	p := MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	again, err := PubkeyFromBytes(p.Bytes())
	require.NoError(t, err)
	assert.Equal(t, p, again)
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", again.String())

	out, err := json.Marshal(map[string]Pubkey{"owner": p})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}`, string(out))

	var decoded map[string]Pubkey
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, p, decoded["owner"])
}

func TestPubkeyBytesIsCopy(t *testing.T) {
	p := SystemProgramAddr
	b := p.Bytes()
	b[0] = 9
	assert.Equal(t, Pubkey{}, p)
}

func TestIsLoader(t *testing.T) {
	assert.True(t, IsLoader(BPFLoaderUpgradeableAddr))
	assert.False(t, IsLoader(SystemProgramAddr))
	_, ok := NativeProgramName(MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"))
	assert.False(t, ok)

	name, ok := NativeProgramName(MustPubkeyFromBase58("ComputeBudget111111111111111111111111111111"))
	assert.True(t, ok)
	assert.Equal(t, "Compute Budget Program", name)
}
