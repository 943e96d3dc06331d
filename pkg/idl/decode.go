package idl

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/fortiblox/X1-Lens/internal/types"
)

// Decoder limits.
const (
	// MaxDecodeDepth bounds nesting of defined types while decoding.
	MaxDecodeDepth = 32

	// MaxArrayLen is the largest fixed array length accepted in an IDL, the
	// size limit of an account's data.
	MaxArrayLen = 10 << 20
)

// Decode errors.
var (
	ErrAccountTooShort       = errors.New("account data shorter than discriminator")
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")
	ErrUnknownType           = errors.New("unknown type")
	ErrTooDeep               = errors.New("type nesting too deep")
	ErrInvalidLength         = errors.New("length prefix exceeds remaining data")
)

// NamedValue is one decoded field.
type NamedValue struct {
	Name  string
	Value interface{}
}

// Struct is a decoded struct that keeps declaration order.
type Struct []NamedValue

// Get returns the value of a field, matching the exact name first and then
// ignoring case.
func (s Struct) Get(name string) (interface{}, bool) {
	for _, nv := range s {
		if nv.Name == name {
			return nv.Value, true
		}
	}
	for _, nv := range s {
		if strings.EqualFold(nv.Name, name) {
			return nv.Value, true
		}
	}
	return nil, false
}

// Lookup follows a dotted path such as "config.authority" through nested
// structs.
func (s Struct) Lookup(path string) (interface{}, bool) {
	var cur interface{} = s
	for _, part := range strings.Split(path, ".") {
		st, ok := cur.(Struct)
		if !ok {
			return nil, false
		}
		if cur, ok = st.Get(part); !ok {
			return nil, false
		}
	}
	return cur, true
}

// MarshalJSON writes s as an object with fields in declaration order.
func (s Struct) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nv := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(nv.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(nv.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", nv.Name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// BigInt is a decoded integer of 64 bits or more. It is written as a decimal
// string so that no precision is lost in JSON.
type BigInt struct {
	*big.Int
}

// MarshalJSON writes the decimal form as a JSON string.
func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(b.Int.String())
}

// Enum is a decoded enum value.
type Enum struct {
	Variant string      `json:"variant"`
	Fields  interface{} `json:"fields,omitempty"`
}

// DecodeAccount checks the discriminator and decodes data against schema.
// Trailing bytes after the last field are ignored.
func DecodeAccount(d *IDL, schema *AccountSchema, data []byte) (Struct, error) {
	if len(data) < DiscriminatorSize {
		return nil, errors.Wrapf(ErrAccountTooShort, "%d bytes", len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], schema.Discriminator[:]) {
		return nil, errors.Wrapf(ErrDiscriminatorMismatch, "account is not a %s", schema.Name)
	}

	x := &decoder{doc: d, dec: bin.NewBorshDecoder(data[DiscriminatorSize:])}
	out, err := x.fields(schema.Fields, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", schema.Name)
	}
	return out, nil
}

type decoder struct {
	doc *IDL
	dec *bin.Decoder
}

func (x *decoder) fields(fields []Field, depth int) (Struct, error) {
	out := make(Struct, 0, len(fields))
	for _, f := range fields {
		v, err := x.value(f.Type, depth)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		out = append(out, NamedValue{Name: f.Name, Value: v})
	}
	return out, nil
}

func (x *decoder) tuple(items []TypeDesc, depth int) ([]interface{}, error) {
	out := make([]interface{}, 0, len(items))
	for i, t := range items {
		v, err := x.value(t, depth)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}

func (x *decoder) value(t TypeDesc, depth int) (interface{}, error) {
	if depth > MaxDecodeDepth {
		return nil, ErrTooDeep
	}

	switch t.Kind {
	case KindPrimitive:
		return x.primitive(t.Primitive)

	case KindOption:
		tag, err := x.dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			return nil, nil
		}
		return x.value(*t.Elem, depth+1)

	case KindCOption:
		tag, err := x.dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			// COption keeps the slot even when empty.
			if isFixedSize(*t.Elem) {
				if _, err := x.dec.ReadNBytes(EstimateSize(*t.Elem)); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}
		return x.value(*t.Elem, depth+1)

	case KindVec:
		n, err := x.length()
		if err != nil {
			return nil, err
		}
		if isByte(*t.Elem) {
			b, err := x.dec.ReadNBytes(n)
			return Bytes(b), err
		}
		return x.repeat(*t.Elem, n, depth)

	case KindArray:
		if t.Len < 0 || t.Len > x.dec.Remaining() {
			return nil, errors.Wrapf(ErrInvalidLength, "array of %d > %d", t.Len, x.dec.Remaining())
		}
		if isByte(*t.Elem) {
			b, err := x.dec.ReadNBytes(t.Len)
			return Bytes(b), err
		}
		return x.repeat(*t.Elem, t.Len, depth)

	case KindDefined:
		return x.defined(t.Name, depth+1)

	default:
		return nil, errors.Wrapf(ErrUnknownType, "kind %d", t.Kind)
	}
}

func (x *decoder) repeat(elem TypeDesc, n, depth int) ([]interface{}, error) {
	// Every element takes at least one byte.
	if n < 0 || n > x.dec.Remaining() {
		return nil, errors.Wrapf(ErrInvalidLength, "%d elements > %d bytes", n, x.dec.Remaining())
	}
	out := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		v, err := x.value(elem, depth+1)
		if err != nil {
			return nil, errors.Wrapf(err, "index %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}

func (x *decoder) length() (int, error) {
	n, err := x.dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return 0, err
	}
	if int(n) > x.dec.Remaining() {
		return 0, errors.Wrapf(ErrInvalidLength, "%d > %d", n, x.dec.Remaining())
	}
	return int(n), nil
}

func (x *decoder) defined(name string, depth int) (interface{}, error) {
	td, ok := x.doc.FindType(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", name)
	}

	body := td.Body
	switch body.Kind {
	case BodyStruct, "":
		if len(body.Tuple) > 0 {
			return x.tuple(body.Tuple, depth)
		}
		return x.fields(body.Fields, depth)

	case BodyEnum:
		idx, err := x.dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(body.Variants) {
			return nil, errors.Errorf("%s: variant index %d out of range", name, idx)
		}
		v := body.Variants[idx]
		switch {
		case len(v.Fields) > 0:
			fields, err := x.fields(v.Fields, depth)
			return Enum{Variant: v.Name, Fields: fields}, err
		case len(v.Tuple) > 0:
			items, err := x.tuple(v.Tuple, depth)
			return Enum{Variant: v.Name, Fields: items}, err
		default:
			return Enum{Variant: v.Name}, nil
		}

	case BodyAlias:
		if body.Alias == nil {
			return nil, errors.Wrapf(ErrUnknownType, "alias %q has no target", name)
		}
		return x.value(*body.Alias, depth)

	default:
		return nil, errors.Wrapf(ErrUnknownType, "%s has kind %q", name, body.Kind)
	}
}

func (x *decoder) primitive(name string) (interface{}, error) {
	le := binary.LittleEndian
	dec := x.dec

	switch name {
	case Bool:
		return dec.ReadBool()
	case U8:
		v, err := dec.ReadUint8()
		return uint64(v), err
	case I8:
		v, err := dec.ReadInt8()
		return int64(v), err
	case U16:
		v, err := dec.ReadUint16(le)
		return uint64(v), err
	case I16:
		v, err := dec.ReadInt16(le)
		return int64(v), err
	case U32:
		v, err := dec.ReadUint32(le)
		return uint64(v), err
	case I32:
		v, err := dec.ReadInt32(le)
		return int64(v), err
	case F32:
		v, err := dec.ReadFloat32(le)
		return float64(v), err
	case F64:
		return dec.ReadFloat64(le)
	case U64:
		v, err := dec.ReadUint64(le)
		if err != nil {
			return nil, err
		}
		return BigInt{new(big.Int).SetUint64(v)}, nil
	case I64:
		v, err := dec.ReadInt64(le)
		if err != nil {
			return nil, err
		}
		return BigInt{big.NewInt(v)}, nil
	case U128:
		v, err := dec.ReadUint128(le)
		if err != nil {
			return nil, err
		}
		return BigInt{v.BigInt()}, nil
	case I128:
		v, err := dec.ReadInt128(le)
		if err != nil {
			return nil, err
		}
		return BigInt{v.BigInt()}, nil
	case U256, I256:
		b, err := dec.ReadNBytes(32)
		if err != nil {
			return nil, err
		}
		return BigInt{littleEndianInt(b, name == I256)}, nil
	case Pubkey:
		b, err := dec.ReadNBytes(types.PubkeySize)
		if err != nil {
			return nil, err
		}
		return types.PubkeyFromBytes(b)
	case String:
		n, err := x.length()
		if err != nil {
			return nil, err
		}
		b, err := dec.ReadNBytes(n)
		return string(b), err
	case BytesTy:
		n, err := x.length()
		if err != nil {
			return nil, err
		}
		b, err := dec.ReadNBytes(n)
		return Bytes(b), err
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", name)
	}
}

func isByte(t TypeDesc) bool {
	return t.Kind == KindPrimitive && t.Primitive == U8
}

// isFixedSize reports whether t always occupies EstimateSize(t) bytes.
func isFixedSize(t TypeDesc) bool {
	switch t.Kind {
	case KindPrimitive:
		switch t.Primitive {
		case Bool, U8, I8, U16, I16, U32, I32, F32, U64, I64, F64, U128, I128, U256, I256, Pubkey:
			return true
		}
		return false
	case KindArray:
		return isFixedSize(*t.Elem)
	default:
		return false
	}
}

func littleEndianInt(b []byte, signed bool) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	v := new(big.Int).SetBytes(be)
	if signed && len(b) > 0 && b[len(b)-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	return v
}
