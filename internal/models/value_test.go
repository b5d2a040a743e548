package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSONKeepsKind(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		json string
	}{
		{"absent", Absent(), "null"},
		{"int", Int(1234), "1234"},
		{"whole float", Float(190), "190.0"},
		{"float", Float(-0.1394), "-0.1394"},
		{"text", Text("5.45-13.94%"), `"5.45-13.94%"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.json, string(data))

			var out Value
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, tt.in, out)
		})
	}
}

func TestRecord_JSONIsFlat(t *testing.T) {
	rec := NewRecord("AAPL", "Apple Inc")
	rec.Set("p_e", Float(30.5))
	rec.Set("employees", Int(164000))

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "AAPL", flat["ticker"])
	assert.Equal(t, "Apple Inc", flat["company_name"])
	assert.Equal(t, 30.5, flat["p_e"])

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "AAPL", back.Ticker)
	assert.Equal(t, []string{"employees", "p_e"}, back.Keys())
	assert.Equal(t, Int(164000), back.Get("employees"))
}

func TestValueOf(t *testing.T) {
	assert.Equal(t, Absent(), ValueOf(nil))
	assert.Equal(t, Int(3), ValueOf(int64(3)))
	assert.Equal(t, Float(1.5), ValueOf(1.5))
	assert.Equal(t, Text("x"), ValueOf([]byte("x")))
	assert.Equal(t, Int(1), ValueOf(true))
}

func TestRawCell(t *testing.T) {
	split := RawCell{Label: "volatility", Fragments: []string{"2.1%", "1.9%"}}
	assert.True(t, split.PreSplit())
	assert.Equal(t, "2.1% 1.9%", split.Joined())

	plain := RawCell{Label: "p_e", Text: "30.5"}
	assert.False(t, plain.PreSplit())
	assert.Equal(t, "30.5", plain.Joined())
}
