package fingerprint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Basic(t *testing.T) {
	// Variables, so the sum is rounded at run time rather than folded exactly.
	tenth, fifth := 0.1, 0.2
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"max uint64", uint64(math.MaxUint64), "18446744073709551615"},
		{"bool", true, "true"},
		{"integral float", 10.0, "10"},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"fraction", 0.25, "0.25"},
		{"shortest float", tenth + fifth, "0.30000000000000004"},
		{"large float", 1e21, "1e+21"},
		{"empty array", []any{}, "[]"},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"int slice", []int{3, 1}, "[3,1]"},
		{"empty object", map[string]any{}, "{}"},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"control chars", "a\nb\x01", `"a\nb\u0001"`},
		{"quote and backslash", `"\`, `"\"\\"`},
		{"line separator kept", "x\u2028y", "\"x\u2028y\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshal_SortedKeys(t *testing.T) {
	got, err := Marshal(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
		"beta":  []any{"x", 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":["x",1.5],"zebra":1}`, string(got))
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1F600 sorts before U+FF61 in UTF-16 but after it in UTF-8.
	got, err := Marshal(map[string]any{"\uff61": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(got))
}

func TestMarshal_NFC(t *testing.T) {
	composed, err := Marshal("caf\u00e9")
	require.NoError(t, err)
	decomposed, err := Marshal("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshal_Errors(t *testing.T) {
	for _, v := range []any{nil, math.NaN(), math.Inf(1), struct{}{}, map[string]any{"a": nil}, []any{math.Inf(-1)}} {
		_, err := Marshal(v)
		assert.Error(t, err, "%#v", v)
	}
}

func TestOf_Stable(t *testing.T) {
	a := map[string]any{"function": "RandomGenerator", "seed": uint64(42), "kwargs": map[string]any{"num_files": int64(100)}}
	b := map[string]any{"kwargs": map[string]any{"num_files": 100.0}, "seed": 42, "function": "RandomGenerator"}

	fa, err := Of(a)
	require.NoError(t, err)
	fb, err := Of(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)

	b["seed"] = 43
	fc, err := Of(b)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestOf_DomainSeparated(t *testing.T) {
	data, err := Marshal("x")
	require.NoError(t, err)
	fp, err := Of("x")
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainRunConfig, data), fp)
	assert.NotEqual(t, hashWithDomain("other/v1", data), fp)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0123456789ab", Short("0123456789abcdef"))
	assert.Equal(t, "abc", Short("abc"))
}
