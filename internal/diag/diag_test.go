package diag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/token"
)

func TestBagCollectsErrorsAndWarningsSeparately(t *testing.T) {
	b := &Bag{}
	pos := token.Position{Filename: "t.rtmc", Line: 3, Column: 1}

	b.Addf(StageParse, pos, "unexpected token %q", ";")
	b.Warnf(StageOptimize, pos, "division by zero folded to 0")

	require.True(t, b.HasErrors())
	require.Len(t, b.Errors(), 1)
	require.Len(t, b.Warnings(), 1)
	require.Len(t, b.All(), 2)
	require.Equal(t, StageParse, b.Errors()[0].Stage)
	require.Equal(t, StageOptimize, b.Warnings()[0].Stage)
}

func TestBagWithOnlyWarningsHasNoErrors(t *testing.T) {
	b := &Bag{}
	b.Warnf(StageSemantic, token.Position{}, "unused variable %q", "x")

	require.False(t, b.HasErrors())
	require.Nil(t, b.Err())
}

func TestBagAddCauseWrapsUnderlyingError(t *testing.T) {
	b := &Bag{}
	cause := errFixture("include file not found")

	b.AddCause(StageLex, token.Position{Filename: "a.rtmc", Line: 1}, cause, "failed to preprocess %s", "a.rtmc")

	require.True(t, b.HasErrors())
	require.ErrorIs(t, b.Errors()[0].Cause, cause)
}

func TestBagErrRendersAllErrorsMultiline(t *testing.T) {
	b := &Bag{}
	b.Addf(StageParse, token.Position{Filename: "t.rtmc", Line: 1, Column: 1}, "first problem")
	b.Addf(StageParse, token.Position{Filename: "t.rtmc", Line: 2, Column: 1}, "second problem")

	err := b.Err()
	require.Error(t, err)
	require.Contains(t, err.Error(), "first problem")
	require.Contains(t, err.Error(), "second problem")
}

func TestDiagnosticStringOmitsPositionWhenUnset(t *testing.T) {
	d := Diagnostic{Message: "no position here"}
	require.Equal(t, "no position here", d.String())

	d2 := Diagnostic{Pos: token.Position{Filename: "t.rtmc", Line: 5, Column: 2}, Message: "has position"}
	require.Contains(t, d2.String(), "has position")
	require.Contains(t, d2.String(), "t.rtmc")
}

type errFixture string

func (e errFixture) Error() string { return string(e) }
