package idl

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrMalformedIDL is returned when an IDL document cannot be parsed.
var ErrMalformedIDL = errors.New("malformed IDL")

// wire forms accepted from both IDL generations

type rawIDL struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Metadata struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Spec    string `json:"spec"`
		Address string `json:"address"`
	} `json:"metadata"`
	Instructions []rawInstruction `json:"instructions"`
	Accounts     []rawAccount     `json:"accounts"`
	Types        []rawTypeDef     `json:"types"`
	Errors       []ErrorCode      `json:"errors"`
}

type rawInstruction struct {
	Name          string                  `json:"name"`
	Docs          []string                `json:"docs"`
	Discriminator Bytes                   `json:"discriminator"`
	Accounts      []rawInstructionAccount `json:"accounts"`
	Args          []Field                 `json:"args"`
}

type rawInstructionAccount struct {
	Name       string                  `json:"name"`
	Docs       []string                `json:"docs"`
	Writable   bool                    `json:"writable"`
	Signer     bool                    `json:"signer"`
	Optional   bool                    `json:"optional"`
	IsMut      bool                    `json:"isMut"`
	IsSigner   bool                    `json:"isSigner"`
	IsOptional bool                    `json:"isOptional"`
	Address    string                  `json:"address"`
	PDA        *rawPDA                 `json:"pda"`
	Accounts   []rawInstructionAccount `json:"accounts"`
}

type rawPDA struct {
	Seeds   []rawSeed `json:"seeds"`
	Program *rawSeed  `json:"program"`
}

type rawSeed struct {
	Kind    string          `json:"kind"`
	Value   json.RawMessage `json:"value"`
	Path    string          `json:"path"`
	Account string          `json:"account"`
}

type rawAccount struct {
	Name          string       `json:"name"`
	Docs          []string     `json:"docs"`
	Discriminator Bytes        `json:"discriminator"`
	Type          *rawTypeBody `json:"type"`
}

type rawTypeDef struct {
	Name string      `json:"name"`
	Docs []string    `json:"docs"`
	Type rawTypeBody `json:"type"`
}

type rawTypeBody struct {
	Kind     string          `json:"kind"`
	Fields   json.RawMessage `json:"fields"`
	Variants []rawVariant    `json:"variants"`
	Alias    *TypeDesc       `json:"alias"`
}

type rawVariant struct {
	Name   string          `json:"name"`
	Fields json.RawMessage `json:"fields"`
}

// Parse decodes an IDL document in either the legacy or the 0.30+ format.
func Parse(data []byte) (*IDL, error) {
	var raw rawIDL
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(ErrMalformedIDL, err.Error())
	}

	doc := &IDL{
		Address: firstNonEmpty(raw.Address, raw.Metadata.Address),
		Name:    firstNonEmpty(raw.Metadata.Name, raw.Name),
		Version: firstNonEmpty(raw.Metadata.Version, raw.Version),
		Spec:    raw.Metadata.Spec,
		Errors:  raw.Errors,
	}

	for _, ix := range raw.Instructions {
		doc.Instructions = append(doc.Instructions, Instruction{
			Name:          ix.Name,
			Docs:          ix.Docs,
			Discriminator: ix.Discriminator,
			Accounts:      convertInstructionAccounts(ix.Accounts),
			Args:          ix.Args,
		})
	}

	for _, acc := range raw.Accounts {
		def := AccountDef{
			Name:          acc.Name,
			Docs:          acc.Docs,
			Discriminator: acc.Discriminator,
		}
		if acc.Type != nil {
			fields, _, err := splitFields(acc.Type.Fields)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedIDL, "account %s: %v", acc.Name, err)
			}
			def.Fields = fields
		}
		doc.Accounts = append(doc.Accounts, def)
	}

	for _, td := range raw.Types {
		body, err := convertTypeBody(td.Type)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedIDL, "type %s: %v", td.Name, err)
		}
		doc.Types = append(doc.Types, TypeDef{Name: td.Name, Docs: td.Docs, Body: body})
	}

	return doc, nil
}

func convertTypeBody(raw rawTypeBody) (TypeBody, error) {
	body := TypeBody{Kind: raw.Kind, Alias: raw.Alias}

	fields, tuple, err := splitFields(raw.Fields)
	if err != nil {
		return body, err
	}
	body.Fields = fields
	body.Tuple = tuple

	for _, v := range raw.Variants {
		vf, vt, err := splitFields(v.Fields)
		if err != nil {
			return body, errors.Wrapf(err, "variant %s", v.Name)
		}
		body.Variants = append(body.Variants, Variant{Name: v.Name, Fields: vf, Tuple: vt})
	}
	return body, nil
}

// splitFields reads a field list that is either named ({name, type}) or a
// tuple of bare type descriptors.
func splitFields(raw json.RawMessage) ([]Field, []TypeDesc, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, nil
	}

	if isNamedField(items[0]) {
		fields := make([]Field, 0, len(items))
		for _, item := range items {
			var f Field
			if err := json.Unmarshal(item, &f); err != nil {
				return nil, nil, err
			}
			fields = append(fields, f)
		}
		return fields, nil, nil
	}

	tuple := make([]TypeDesc, 0, len(items))
	for _, item := range items {
		var t TypeDesc
		if err := json.Unmarshal(item, &t); err != nil {
			return nil, nil, err
		}
		tuple = append(tuple, t)
	}
	return nil, tuple, nil
}

func isNamedField(item json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(item, &probe); err != nil {
		return false
	}
	_, hasName := probe["name"]
	_, hasType := probe["type"]
	return hasName && hasType
}

func convertInstructionAccounts(raw []rawInstructionAccount) []InstructionAccount {
	if len(raw) == 0 {
		return nil
	}
	out := make([]InstructionAccount, 0, len(raw))
	for _, a := range raw {
		out = append(out, InstructionAccount{
			Name:     a.Name,
			Docs:     a.Docs,
			Writable: a.Writable || a.IsMut,
			Signer:   a.Signer || a.IsSigner,
			Optional: a.Optional || a.IsOptional,
			Address:  a.Address,
			PDA:      convertPDA(a.PDA),
			Accounts: convertInstructionAccounts(a.Accounts),
		})
	}
	return out
}

func convertPDA(raw *rawPDA) *PDA {
	if raw == nil {
		return nil
	}
	out := &PDA{}
	for _, s := range raw.Seeds {
		out.Seeds = append(out.Seeds, convertSeed(s))
	}
	if raw.Program != nil {
		seed := convertSeed(*raw.Program)
		out.Program = &seed
	}
	return out
}

// convertSeed accepts constant values written either as byte arrays or, in
// legacy IDLs, as plain strings.
func convertSeed(raw rawSeed) PDASeed {
	seed := PDASeed{Kind: raw.Kind, Path: raw.Path, Account: raw.Account}
	if len(raw.Value) == 0 {
		return seed
	}
	var b Bytes
	if err := json.Unmarshal(raw.Value, &b); err == nil {
		seed.Value = b
		return seed
	}
	var s string
	if err := json.Unmarshal(raw.Value, &s); err == nil {
		seed.Value = Bytes(s)
	}
	return seed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
