package tools

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report argument names as the caller spelled them
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes and validates the tool arguments into args.
func bind(req mcp.CallToolRequest, args interface{}) error {
	if err := req.BindArguments(args); err != nil {
		return toolerr.InvalidInput("arguments do not match the tool schema: %v", err)
	}
	if err := validate.Struct(args); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return toolerr.InvalidInput("invalid arguments: %v", err)
		}
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = describeFieldError(fe)
		}
		return toolerr.InvalidInput("invalid arguments: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	default:
		return field + " fails " + fe.Tag()
	}
}

// parseAddress parses a base58 argument, naming it in the error.
func parseAddress(field, s string) (types.Pubkey, error) {
	p, err := types.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return types.Pubkey{}, toolerr.InvalidInput("%s %q is not a valid base58 address", field, s).
			WithHint("Addresses are 32 to 44 base58 characters that decode to 32 bytes")
	}
	return p, nil
}

func limitOrDefault(limit *int) int {
	if limit == nil {
		return DefaultLimit
	}
	return *limit
}

// success returns v as structured content with an indented JSON copy as text.
func success(v interface{}) (*mcp.CallToolResult, error) {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultStructured(v, string(text)), nil
}

type errorBody struct {
	Kind      toolerr.Kind     `json:"kind"`
	Category  toolerr.Category `json:"category"`
	Message   string           `json:"message"`
	Hint      string           `json:"hint,omitempty"`
	Available []string         `json:"available,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// structuredError reports err the PDA family way.
func (s *Service) structuredError(tool string, err error) (*mcp.CallToolResult, error) {
	te := s.classify(tool, err)
	message := te.Message
	if cause := te.Unwrap(); cause != nil {
		message += ": " + cause.Error()
	}
	env := errorEnvelope{Error: errorBody{
		Kind:      te.Kind,
		Category:  te.Kind.Category(),
		Message:   message,
		Hint:      te.Hint,
		Available: te.Available,
	}}
	text, _ := json.MarshalIndent(env, "", "  ")
	res := mcp.NewToolResultStructured(env, string(text))
	res.IsError = true
	return res, nil
}

// textError reports err the program and account family way.
func (s *Service) textError(tool string, err error) (*mcp.CallToolResult, error) {
	te := s.classify(tool, err)
	return mcp.NewToolResultError(te.Describe()), nil
}

func (s *Service) classify(tool string, err error) *toolerr.Error {
	te := toolerr.From(err)
	fields := []zap.Field{zap.String("tool", tool), zap.String("kind", string(te.Kind)), zap.Error(err)}
	if te.Kind == toolerr.KindUpstream {
		s.logger.Warn("tool failed", fields...)
	} else {
		s.logger.Debug("tool failed", fields...)
	}
	return te
}
