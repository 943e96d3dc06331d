package types

import "fmt"

// Well-known addresses, identical on Solana and X1.
var (
	SystemProgramAddr        = MustPubkeyFromBase58("11111111111111111111111111111111")
	BPFLoaderAddr            = MustPubkeyFromBase58("BPFLoader1111111111111111111111111111111111")
	BPFLoader2Addr           = MustPubkeyFromBase58("BPFLoader2111111111111111111111111111111111")
	BPFLoaderUpgradeableAddr = MustPubkeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
	LoaderV4Addr             = MustPubkeyFromBase58("LoaderV411111111111111111111111111111111111")
	NativeLoaderAddr         = MustPubkeyFromBase58("NativeLoader1111111111111111111111111111111")
)

// loaders own every deployed program account.
var loaders = map[Pubkey]bool{
	BPFLoaderAddr:            true,
	BPFLoader2Addr:           true,
	BPFLoaderUpgradeableAddr: true,
	LoaderV4Addr:             true,
	NativeLoaderAddr:         true,
}

// builtins are programs compiled into the validator. None of them publish an
// Anchor IDL.
var builtins = map[Pubkey]string{
	SystemProgramAddr:        "System Program",
	BPFLoaderAddr:            "BPF Loader",
	BPFLoader2Addr:           "BPF Loader 2",
	BPFLoaderUpgradeableAddr: "BPF Upgradeable Loader",
	LoaderV4Addr:             "Loader v4",
	NativeLoaderAddr:         "Native Loader",
	MustPubkeyFromBase58("Vote111111111111111111111111111111111111111"): "Vote Program",
	MustPubkeyFromBase58("Stake11111111111111111111111111111111111111"): "Stake Program",
	MustPubkeyFromBase58("Config1111111111111111111111111111111111111"): "Config Program",
	MustPubkeyFromBase58("ComputeBudget111111111111111111111111111111"): "Compute Budget Program",
	MustPubkeyFromBase58("AddressLookupTab1e1111111111111111111111111"): "Address Lookup Table Program",
	MustPubkeyFromBase58("Ed25519SigVerify111111111111111111111111111"): "Ed25519 Program",
	MustPubkeyFromBase58("KeccakSecp256k11111111111111111111111111111"): "Secp256k1 Program",
}

// MustPubkeyFromBase58 parses a base58 pubkey or panics.
// Only use for compile-time constants.
func MustPubkeyFromBase58(s string) Pubkey {
	p, err := PubkeyFromBase58(s)
	if err != nil {
		panic(fmt.Sprintf("invalid pubkey constant %q: %v", s, err))
	}
	return p
}

// IsLoader reports whether p owns deployed program accounts.
func IsLoader(p Pubkey) bool {
	return loaders[p]
}

// NativeProgramName returns the name of a builtin program.
func NativeProgramName(p Pubkey) (string, bool) {
	name, ok := builtins[p]
	return name, ok
}
