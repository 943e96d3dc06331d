package idl

import (
	"crypto/sha256"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

// DiscriminatorSize is the length of the Anchor account discriminator.
const DiscriminatorSize = 8

// AccountSchema is an account type with its resolved field layout.
type AccountSchema struct {
	Name          string
	Discriminator [DiscriminatorSize]byte
	Fields        []Field
	Docs          []string
}

// ToStorageKey converts an account type name to the key Anchor clients use
// for it: the first character lower-cased, the rest unchanged.
func ToStorageKey(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

// AccountNames lists the account table in declaration order.
func (d *IDL) AccountNames() []string {
	names := make([]string, len(d.Accounts))
	for i, a := range d.Accounts {
		names[i] = a.Name
	}
	return names
}

// FindAccount looks up an account type by name. An exact match wins over a
// case-insensitive one.
func (d *IDL) FindAccount(name string) (*AccountDef, bool) {
	for i := range d.Accounts {
		if d.Accounts[i].Name == name {
			return &d.Accounts[i], true
		}
	}
	for i := range d.Accounts {
		if strings.EqualFold(d.Accounts[i].Name, name) {
			return &d.Accounts[i], true
		}
	}
	return nil, false
}

// FindType looks up a shared type by name, exact match first.
func (d *IDL) FindType(name string) (*TypeDef, bool) {
	for i := range d.Types {
		if d.Types[i].Name == name {
			return &d.Types[i], true
		}
	}
	for i := range d.Types {
		if strings.EqualFold(d.Types[i].Name, name) {
			return &d.Types[i], true
		}
	}
	return nil, false
}

// FindInstruction looks up an instruction by name, ignoring case.
func (d *IDL) FindInstruction(name string) (*Instruction, bool) {
	for i := range d.Instructions {
		if strings.EqualFold(d.Instructions[i].Name, name) {
			return &d.Instructions[i], true
		}
	}
	return nil, false
}

// ResolveFields returns the field layout of an account type. The inline field
// list is used when present, otherwise the same-named shared type. An account
// with neither yields an empty list.
func ResolveFields(d *IDL, name string) ([]Field, error) {
	acc, ok := d.FindAccount(name)
	if !ok {
		return nil, toolerr.AccountTypeNotFound(name, d.AccountNames())
	}
	return d.fieldsOf(acc), nil
}

func (d *IDL) fieldsOf(acc *AccountDef) []Field {
	if len(acc.Fields) > 0 {
		return acc.Fields
	}
	if td, ok := d.FindType(acc.Name); ok && len(td.Body.Fields) > 0 {
		return td.Body.Fields
	}
	return []Field{}
}

// ResolveAccount returns the full schema of an account type.
func ResolveAccount(d *IDL, name string) (*AccountSchema, error) {
	acc, ok := d.FindAccount(name)
	if !ok {
		return nil, toolerr.AccountTypeNotFound(name, d.AccountNames())
	}
	return &AccountSchema{
		Name:          acc.Name,
		Discriminator: AccountDiscriminator(acc),
		Fields:        d.fieldsOf(acc),
		Docs:          acc.Docs,
	}, nil
}

// AccountDiscriminator returns the declared discriminator, or
// sha256("account:<Name>")[:8] for IDLs that do not declare one.
func AccountDiscriminator(acc *AccountDef) [DiscriminatorSize]byte {
	var out [DiscriminatorSize]byte
	if len(acc.Discriminator) == DiscriminatorSize {
		copy(out[:], acc.Discriminator)
		return out
	}
	sum := sha256.Sum256([]byte("account:" + acc.Name))
	copy(out[:], sum[:DiscriminatorSize])
	return out
}

// StorageKeys maps each declared account type name to its storage key.
func (d *IDL) StorageKeys() map[string]string {
	keys := make(map[string]string, len(d.Accounts))
	for _, a := range d.Accounts {
		keys[a.Name] = ToStorageKey(a.Name)
	}
	return keys
}
