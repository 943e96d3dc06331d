package idl

import "math"

// Placeholder sizes for values whose length is only known at runtime.
const (
	VariableSizeEstimate = 32
	DefaultSizeEstimate  = 8
)

// EstimateSize returns an advisory byte size for t. Variable-length values
// use a placeholder and anything not sized by the table counts as 8 bytes.
func EstimateSize(t TypeDesc) int {
	switch t.Kind {
	case KindPrimitive:
		return primitiveSize(t.Primitive)
	case KindOption:
		return EstimateSize(*t.Elem) + 1
	case KindCOption:
		return EstimateSize(*t.Elem) + 4
	case KindArray:
		if t.Len <= 0 {
			return 0
		}
		elem := EstimateSize(*t.Elem)
		if elem > math.MaxInt/t.Len {
			return math.MaxInt
		}
		return elem * t.Len
	default:
		return DefaultSizeEstimate
	}
}

func primitiveSize(name string) int {
	switch name {
	case Bool, U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	case U128, I128:
		return 16
	case U256, I256, Pubkey:
		return 32
	case String, BytesTy:
		return VariableSizeEstimate
	default:
		return DefaultSizeEstimate
	}
}

// EstimateAccountSize sums the discriminator and every field estimate.
func EstimateAccountSize(fields []Field) int {
	total := DiscriminatorSize
	for _, f := range fields {
		total += EstimateSize(f.Type)
	}
	return total
}
