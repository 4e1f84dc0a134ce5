package record

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"zeta":  "z",
		"alpha": "a",
		"mid":   map[string]any{"b": 1, "a": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","mid":{"a":2,"b":1},"zeta":"z"}`, string(out))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"html": "<b>&</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>&</b>"}`, string(out))
}

func TestMarshalCanonical_NumberLiteralsPreserved(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"price": json.Number("19.90"),
		"big":   json.Number("12345678901234567890"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"big":12345678901234567890,"price":19.90}`, string(out))
}

func TestMarshalCanonical_Scalars(t *testing.T) {
	out, err := MarshalCanonical([]any{nil, true, false, 1, int64(2), uint64(3), 1.5, "s"})
	require.NoError(t, err)
	assert.Equal(t, `[null,true,false,1,2,3,1.5,"s"]`, string(out))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"nan": math.NaN()})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"bad": json.Number("1e")})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 (surrogate pair D83D DE00) sorts before U+FF61 in UTF-16
	// but after it in UTF-8.
	out, err := MarshalCanonical(map[string]any{"｡": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"｡\":1}", string(out))
}

func TestEncodeFields_JSONRoundTripStable(t *testing.T) {
	original := `{"id":"1","price":19.90,"tags":["a","b"]}`
	fields, err := DecodeFields("a.json", original)
	require.NoError(t, err)

	encoded, err := EncodeFields("a.json", fields)
	require.NoError(t, err)
	assert.Equal(t, original, encoded)
}

func TestEncodeFields_YAML(t *testing.T) {
	encoded, err := EncodeFields("deal.yaml", map[string]any{
		"name":   "Big deal",
		"amount": json.Number("42"),
	})
	require.NoError(t, err)

	back, err := DecodeFields("deal.yaml", encoded)
	require.NoError(t, err)
	assert.Equal(t, "Big deal", back["name"])
	assert.Equal(t, 42, back["amount"])
}
