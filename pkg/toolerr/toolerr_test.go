package toolerr

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindCategory(t *testing.T) {
	tests := map[Kind]Category{
		KindInvalidInput:        CategoryInvalidInput,
		KindProgramNotFound:     CategoryNotFound,
		KindInterfaceNotFound:   CategoryNotFound,
		KindAccountTypeNotFound: CategoryNotFound,
		KindAccountNotFound:     CategoryNotFound,
		KindDecode:              CategoryDecodeError,
		KindDerivationExhausted: CategoryDerivationExhausted,
		KindUpstream:            CategoryUpstreamFailure,
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.Category(), kind)
	}
}

func TestEveryKindHasHint(t *testing.T) {
	for _, kind := range []Kind{
		KindInvalidInput, KindProgramNotFound, KindInterfaceNotFound, KindAccountTypeNotFound,
		KindAccountNotFound, KindDecode, KindDerivationExhausted, KindUpstream,
	} {
		assert.NotEmpty(t, New(kind, "x").Hint, kind)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	sentinel := errors.New("boom")
	err := Wrap(errors.Wrap(sentinel, "layer"), KindDecode, "decode %s", "Vault")

	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "decode Vault")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	classified := InvalidInput("bad seed")
	wrapped := errors.Wrap(classified, "outer")
	assert.Same(t, classified, From(wrapped))

	assert.Equal(t, KindUpstream, From(errors.New("dial tcp")).Kind)
	assert.Equal(t, KindUpstream, From(context.DeadlineExceeded).Kind)
	assert.True(t, Is(wrapped, KindInvalidInput))
	assert.False(t, Is(nil, KindInvalidInput))
}

func TestDescribeListsAvailable(t *testing.T) {
	err := AccountTypeNotFound("Vault", []string{"Config", "UserState"})
	text := err.Describe()

	require.Contains(t, text, `account type "Vault" not found`)
	assert.Contains(t, text, "Config, UserState")
	assert.Contains(t, text, "list_account_types")
}
