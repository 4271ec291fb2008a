package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysValueUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want DaysValue
	}{
		{"number", `{"days": 30}`, "30"},
		{"negative", `{"days": -5}`, "-5"},
		{"string", `{"days": "12"}`, "12"},
		{"garbage string", `{"days": "abc"}`, "abc"},
		{"float", `{"days": 1.5}`, "1.5"},
		{"null", `{"days": null}`, ""},
		{"missing", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ExtendRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.want, req.Days)
		})
	}
}
