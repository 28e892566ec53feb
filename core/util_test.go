package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		raw    json.RawMessage
		want   string
		wantOk bool
	}{
		{name: "missing", raw: nil, want: `{}`, wantOk: true},
		{name: "null", raw: json.RawMessage("null"), want: `{}`, wantOk: true},
		{name: "padded null", raw: json.RawMessage(" null\n"), want: `{}`, wantOk: true},
		{name: "object", raw: json.RawMessage(`{"k": 1}`), want: `{"k": 1}`, wantOk: true},
		{name: "array", raw: json.RawMessage(`[1, 2]`)},
		{name: "string", raw: json.RawMessage(`"lol"`)},
		{name: "malformed", raw: json.RawMessage(`{"k"`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CleanJSONObject(tt.raw)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.JSONEq(t, tt.want, string(got))
			} else {
				assert.Nil(t, got)
			}
		})
	}
}
