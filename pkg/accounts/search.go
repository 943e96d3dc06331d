package accounts

import (
	"bytes"
	"context"
	"strconv"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/idl"
)

// MaxSearchDepth bounds how deep SearchByAddressReference walks a record.
const MaxSearchDepth = 32

// SearchByAddressReference returns the accounts of accountType that contain
// target anywhere in their decoded fields, nested structs, vectors and enum
// payloads included. Each record lists the paths where target was found.
func (g *Gateway) SearchByAddressReference(ctx context.Context, program types.Pubkey, accountType string, target types.Pubkey, limit int) (*Page, error) {
	return g.scan(ctx, program, accountType, limit, func(r *Record) bool {
		r.Matches = FindReferences(r.Fields, target)
		return len(r.Matches) > 0
	})
}

// FindReferences returns the dotted paths of every value in fields equal to
// target. Raw 32-byte arrays count as addresses.
func FindReferences(fields idl.Struct, target types.Pubkey) []string {
	var paths []string
	walk(fields, "", target, 0, &paths)
	return paths
}

func walk(v interface{}, path string, target types.Pubkey, depth int, paths *[]string) {
	if depth > MaxSearchDepth {
		return
	}

	switch val := v.(type) {
	case types.Pubkey:
		if val == target {
			*paths = append(*paths, path)
		}
	case idl.Bytes:
		if len(val) == types.PubkeySize && bytes.Equal(val, target[:]) {
			*paths = append(*paths, path)
		}
	case idl.Struct:
		for _, nv := range val {
			walk(nv.Value, join(path, nv.Name), target, depth+1, paths)
		}
	case []interface{}:
		for i, item := range val {
			walk(item, path+"["+strconv.Itoa(i)+"]", target, depth+1, paths)
		}
	case idl.Enum:
		walk(val.Fields, join(path, val.Variant), target, depth+1, paths)
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
