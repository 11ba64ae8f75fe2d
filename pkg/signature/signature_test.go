package signature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/signature"
	"ptc-lisp/pkg/value"
)

func TestParsePrimitives(t *testing.T) {
	for _, src := range []string{":int", ":float", ":string", ":bool", ":any", ":keyword", ":map"} {
		_, err := signature.Parse(src)
		require.NoError(t, err, src)
	}
}

func TestParseCollectionsAndOptional(t *testing.T) {
	ty, err := signature.Parse(`[:int]`)
	require.NoError(t, err)
	assert.Equal(t, signature.KindSeq, ty.Kind)
	assert.Equal(t, signature.KindInt, ty.Elem.Kind)

	ty, err = signature.Parse(`#{:string}`)
	require.NoError(t, err)
	assert.Equal(t, signature.KindSet, ty.Kind)

	ty, err = signature.Parse(`:string?`)
	require.NoError(t, err)
	assert.True(t, ty.Optional)
}

func TestParseRecordWithOpenAndHiddenField(t *testing.T) {
	ty, err := signature.Parse(`{name :string, age :int, _internal :any, ...}`)
	require.NoError(t, err)
	require.Equal(t, signature.KindRecord, ty.Kind)
	assert.True(t, ty.Open)
	assert.Contains(t, ty.Fields, "_internal")
	assert.True(t, signature.IsHidden("_internal"))
	assert.False(t, signature.IsHidden("name"))
}

func TestParseFunc(t *testing.T) {
	ty, err := signature.Parse(`(a :int, b :string) -> :bool`)
	require.NoError(t, err)
	require.Equal(t, signature.KindFunc, ty.Kind)
	assert.Equal(t, []string{"a", "b"}, ty.ParamNames)
	assert.Equal(t, signature.KindBool, ty.Return.Kind)
}

func TestValidateRecordMissingField(t *testing.T) {
	ty, err := signature.Parse(`{name :string, age :int}`)
	require.NoError(t, err)
	m := value.MapOf(value.Keyword("name"), value.String("a"))
	err = signature.Validate(ty, value.Map(m), "ctx")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidationError, errs.KindOf(err))
}

func TestValidateRecordClosedRejectsExtra(t *testing.T) {
	ty, err := signature.Parse(`{name :string}`)
	require.NoError(t, err)
	m := value.MapOf(value.Keyword("name"), value.String("a"), value.Keyword("extra"), value.Int(1))
	err = signature.Validate(ty, value.Map(m), "ctx")
	require.Error(t, err)
}

func TestValidateRecordOpenAllowsExtra(t *testing.T) {
	ty, err := signature.Parse(`{name :string, ...}`)
	require.NoError(t, err)
	m := value.MapOf(value.Keyword("name"), value.String("a"), value.Keyword("extra"), value.Int(1))
	err = signature.Validate(ty, value.Map(m), "ctx")
	require.NoError(t, err)
}

func TestValidateOptionalFieldCanBeAbsent(t *testing.T) {
	ty, err := signature.Parse(`{name :string, nickname :string?}`)
	require.NoError(t, err)
	m := value.MapOf(value.Keyword("name"), value.String("a"))
	err = signature.Validate(ty, value.Map(m), "ctx")
	require.NoError(t, err)
}

func TestStripHiddenFirewall(t *testing.T) {
	inner := value.MapOf(value.Keyword("visible"), value.Int(1), value.Keyword("_secret"), value.Int(2))
	stripped := signature.StripHidden(value.Map(inner))
	_, hasSecret := stripped.Map.GetFlex(value.Keyword("_secret"))
	assert.False(t, hasSecret)
	_, hasVisible := stripped.Map.GetFlex(value.Keyword("visible"))
	assert.True(t, hasVisible)
}
