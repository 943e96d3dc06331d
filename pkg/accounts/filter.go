package accounts

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/idl"
	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

// Filter is an equality predicate on one decoded field. Field may be a dotted
// path into nested structs, such as "config.authority".
type Filter struct {
	Field string      `json:"field" validate:"required"`
	Value interface{} `json:"value"`
}

// FilterByFields returns the accounts of accountType whose fields equal every
// filter. No filters match every account.
func (g *Gateway) FilterByFields(ctx context.Context, program types.Pubkey, accountType string, filters []Filter, limit int) (*Page, error) {
	h, schema, err := g.resolve(ctx, program, accountType)
	if err != nil {
		return nil, err
	}
	if err := checkFilterFields(schema, filters); err != nil {
		return nil, err
	}

	return g.scanSchema(ctx, h, schema, limit, func(r *Record) bool {
		return MatchAll(r.Fields, filters)
	})
}

// checkFilterFields rejects filters whose top-level field the schema lacks.
func checkFilterFields(schema *idl.AccountSchema, filters []Filter) error {
	for _, f := range filters {
		head := strings.SplitN(f.Field, ".", 2)[0]
		found := false
		for _, field := range schema.Fields {
			if strings.EqualFold(field.Name, head) {
				found = true
				break
			}
		}
		if found {
			continue
		}

		names := make([]string, len(schema.Fields))
		for i, field := range schema.Fields {
			names[i] = field.Name
		}
		e := toolerr.InvalidInput("%s has no field %q", schema.Name, head).
			WithHint("Use get_account_structure to list the fields of this account type")
		e.Available = names
		return e
	}
	return nil
}

// MatchAll reports whether fields satisfies every filter. A missing field
// never matches.
func MatchAll(fields idl.Struct, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields.Lookup(f.Field)
		if !ok || !Equal(v, f.Value) {
			return false
		}
	}
	return true
}

// Equal compares a decoded value with a caller supplied one. Addresses compare
// by base58 text, integers and floats by decimal value, enums by variant name
// and byte strings by 0x-prefixed hex.
func Equal(decoded, want interface{}) bool {
	switch v := decoded.(type) {
	case nil:
		return want == nil
	case types.Pubkey:
		s, ok := want.(string)
		return ok && strings.TrimSpace(s) == v.String()
	case idl.BigInt:
		return v.Int != nil && decimalEqual(decimal.NewFromBigInt(v.Int, 0), want)
	case uint64:
		return decimalEqual(decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), want)
	case int64:
		return decimalEqual(decimal.NewFromInt(v), want)
	case float64:
		return decimalEqual(decimal.NewFromFloat(v), want)
	case bool:
		switch w := want.(type) {
		case bool:
			return v == w
		case string:
			b, err := strconv.ParseBool(w)
			return err == nil && b == v
		}
		return false
	case string:
		s, ok := want.(string)
		return ok && s == v
	case idl.Enum:
		s, ok := want.(string)
		return ok && strings.EqualFold(s, v.Variant)
	case idl.Bytes:
		s, ok := want.(string)
		if !ok {
			return false
		}
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		return err == nil && string(b) == string(v)
	default:
		return reflect.DeepEqual(decoded, want) || fmt.Sprint(decoded) == fmt.Sprint(want)
	}
}

func decimalEqual(got decimal.Decimal, want interface{}) bool {
	w, ok := toDecimal(want)
	return ok && got.Equal(w)
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
