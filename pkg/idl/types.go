// Package idl models Anchor interface descriptions (IDLs) and decodes
// account data against them.
//
// Both the legacy format (isMut/isSigner, "publicKey", defined: "Name") and
// the 0.30+ format (writable/signer, "pubkey", defined: {name}) parse into the
// same model. Field types are held in TypeDesc, a closed tagged union.
package idl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// IDL is a parsed program interface description. It is never mutated after
// parsing.
type IDL struct {
	Address      string        `json:"address,omitempty"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Spec         string        `json:"spec,omitempty"`
	Instructions []Instruction `json:"instructions"`
	Accounts     []AccountDef  `json:"accounts"`
	Types        []TypeDef     `json:"types"`
	Errors       []ErrorCode   `json:"errors,omitempty"`
}

// Instruction is a program entry point.
type Instruction struct {
	Name          string               `json:"name"`
	Docs          []string             `json:"docs,omitempty"`
	Discriminator Bytes                `json:"discriminator,omitempty"`
	Accounts      []InstructionAccount `json:"accounts"`
	Args          []Field              `json:"args"`
}

// InstructionAccount is an account an instruction expects. Composite account
// groups keep their members in Accounts.
type InstructionAccount struct {
	Name     string               `json:"name"`
	Docs     []string             `json:"docs,omitempty"`
	Writable bool                 `json:"writable"`
	Signer   bool                 `json:"signer"`
	Optional bool                 `json:"optional,omitempty"`
	Address  string               `json:"address,omitempty"`
	PDA      *PDA                 `json:"pda,omitempty"`
	Accounts []InstructionAccount `json:"accounts,omitempty"`
}

// PDA describes how an instruction account address is derived.
type PDA struct {
	Seeds   []PDASeed `json:"seeds"`
	Program *PDASeed  `json:"program,omitempty"`
}

// PDASeed is one seed of a PDA definition: a constant, an account path or an
// instruction argument path.
type PDASeed struct {
	Kind    string `json:"kind"`
	Value   Bytes  `json:"value,omitempty"`
	Path    string `json:"path,omitempty"`
	Account string `json:"account,omitempty"`
}

// AccountDef is an entry of the account table. Fields is the inline field
// list, empty for IDLs that keep layouts in the shared type table.
type AccountDef struct {
	Name          string   `json:"name"`
	Docs          []string `json:"docs,omitempty"`
	Discriminator Bytes    `json:"discriminator,omitempty"`
	Fields        []Field  `json:"fields,omitempty"`
}

// TypeDef is an entry of the shared type table.
type TypeDef struct {
	Name string   `json:"name"`
	Docs []string `json:"docs,omitempty"`
	Body TypeBody `json:"type"`
}

// Body kinds.
const (
	BodyStruct = "struct"
	BodyEnum   = "enum"
	BodyAlias  = "type"
)

// TypeBody is the definition of a shared type.
type TypeBody struct {
	Kind string `json:"kind"`

	// Fields holds named struct fields; Tuple holds unnamed ones.
	Fields   []Field    `json:"fields,omitempty"`
	Tuple    []TypeDesc `json:"tuple,omitempty"`
	Variants []Variant  `json:"variants,omitempty"`
	Alias    *TypeDesc  `json:"alias,omitempty"`
}

// Variant is an enum variant with optional named or tuple fields.
type Variant struct {
	Name   string     `json:"name"`
	Fields []Field    `json:"fields,omitempty"`
	Tuple  []TypeDesc `json:"tuple,omitempty"`
}

// Field is a named, typed value.
type Field struct {
	Name string   `json:"name"`
	Type TypeDesc `json:"type"`
	Docs []string `json:"docs,omitempty"`
}

// ErrorCode is a custom program error.
type ErrorCode struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg,omitempty"`
}

// Kind tags a TypeDesc.
type Kind int

// Type descriptor kinds.
const (
	KindPrimitive Kind = iota
	KindOption
	KindCOption
	KindVec
	KindArray
	KindDefined
)

// Primitive type names after normalization.
const (
	Bool    = "bool"
	U8      = "u8"
	I8      = "i8"
	U16     = "u16"
	I16     = "i16"
	U32     = "u32"
	I32     = "i32"
	F32     = "f32"
	U64     = "u64"
	I64     = "i64"
	F64     = "f64"
	U128    = "u128"
	I128    = "i128"
	U256    = "u256"
	I256    = "i256"
	Pubkey  = "pubkey"
	String  = "string"
	BytesTy = "bytes"
)

// TypeDesc describes a field type. Exactly one shape applies per Kind:
// Primitive for KindPrimitive, Elem for option/coption/vec, Elem and Len for
// arrays and Name for defined references.
type TypeDesc struct {
	Kind      Kind
	Primitive string
	Elem      *TypeDesc
	Len       int
	Name      string
}

// Prim returns a primitive descriptor.
func Prim(name string) TypeDesc {
	return TypeDesc{Kind: KindPrimitive, Primitive: normalizePrimitive(name)}
}

// OptionOf returns option<elem>.
func OptionOf(elem TypeDesc) TypeDesc { return TypeDesc{Kind: KindOption, Elem: &elem} }

// VecOf returns vec<elem>.
func VecOf(elem TypeDesc) TypeDesc { return TypeDesc{Kind: KindVec, Elem: &elem} }

// ArrayOf returns [elem; n].
func ArrayOf(elem TypeDesc, n int) TypeDesc { return TypeDesc{Kind: KindArray, Elem: &elem, Len: n} }

// DefinedRef returns a reference to a shared type.
func DefinedRef(name string) TypeDesc { return TypeDesc{Kind: KindDefined, Name: name} }

// String renders the descriptor in Rust-like notation.
func (t TypeDesc) String() string {
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive
	case KindOption:
		return "Option<" + t.Elem.String() + ">"
	case KindCOption:
		return "COption<" + t.Elem.String() + ">"
	case KindVec:
		return "Vec<" + t.Elem.String() + ">"
	case KindArray:
		return fmt.Sprintf("[%s; %d]", t.Elem.String(), t.Len)
	case KindDefined:
		return t.Name
	default:
		return "unknown"
	}
}

func normalizePrimitive(name string) string {
	switch name {
	case "publicKey", "PublicKey", "Pubkey":
		return Pubkey
	default:
		return name
	}
}

// MarshalJSON writes the descriptor in the 0.30+ IDL notation.
func (t TypeDesc) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case KindPrimitive:
		return json.Marshal(t.Primitive)
	case KindOption:
		return json.Marshal(map[string]*TypeDesc{"option": t.Elem})
	case KindCOption:
		return json.Marshal(map[string]*TypeDesc{"coption": t.Elem})
	case KindVec:
		return json.Marshal(map[string]*TypeDesc{"vec": t.Elem})
	case KindArray:
		return json.Marshal(map[string][]interface{}{"array": {t.Elem, t.Len}})
	case KindDefined:
		return json.Marshal(map[string]map[string]string{"defined": {"name": t.Name}})
	default:
		return nil, errors.Errorf("unknown type kind %d", t.Kind)
	}
}

// UnmarshalJSON accepts every descriptor notation used by Anchor IDLs.
func (t *TypeDesc) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = Prim(name)
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrapf(err, "type descriptor %s", truncate(data))
	}

	for _, wrapper := range []struct {
		key  string
		kind Kind
	}{{"option", KindOption}, {"coption", KindCOption}, {"vec", KindVec}} {
		raw, ok := obj[wrapper.key]
		if !ok {
			continue
		}
		var elem TypeDesc
		if err := json.Unmarshal(raw, &elem); err != nil {
			return errors.Wrap(err, wrapper.key)
		}
		*t = TypeDesc{Kind: wrapper.kind, Elem: &elem}
		return nil
	}

	if raw, ok := obj["array"]; ok {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) != 2 {
			return errors.Errorf("array descriptor %s: want [type, len]", truncate(raw))
		}
		var elem TypeDesc
		if err := json.Unmarshal(parts[0], &elem); err != nil {
			return errors.Wrap(err, "array element")
		}
		n, err := arrayLen(parts[1])
		if err != nil {
			return err
		}
		*t = TypeDesc{Kind: KindArray, Elem: &elem, Len: n}
		return nil
	}

	if raw, ok := obj["defined"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			var ref struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &ref); err != nil {
				return errors.Wrap(err, "defined")
			}
			name = ref.Name
		}
		*t = DefinedRef(name)
		return nil
	}

	if raw, ok := obj["generic"]; ok {
		var name string
		_ = json.Unmarshal(raw, &name)
		*t = Prim("generic:" + name)
		return nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	*t = Prim("unknown:" + strings.Join(keys, ","))
	return nil
}

// Bytes is a byte string written as a JSON array of numbers, the way IDLs
// store discriminators and constant seeds.
type Bytes []byte

// MarshalJSON writes b as an array of numbers.
func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON reads an array of numbers.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return errors.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

func truncate(data []byte) string {
	const max = 64
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

// arrayLen reads the length of an array descriptor. Generic lengths
// ({"generic": "N"}) cannot be sized and stay 0.
func arrayLen(raw json.RawMessage) (int, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		var generic struct {
			Generic *string `json:"generic"`
		}
		if gerr := json.Unmarshal(raw, &generic); gerr != nil || generic.Generic == nil {
			return 0, errors.Errorf("array length %s: want an integer", truncate(raw))
		}
		return 0, nil
	}
	if n < 0 || n > MaxArrayLen {
		return 0, errors.Errorf("array length %d out of range 0..%d", n, MaxArrayLen)
	}
	return int(n), nil
}
