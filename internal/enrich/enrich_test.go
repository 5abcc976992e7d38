package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare object", raw: `{"name":"Mug"}`, want: `{"name":"Mug"}`},
		{name: "fenced", raw: "```json\n{\"name\": \"Mug\"}\n```", want: `{"name": "Mug"}`},
		{name: "prose around", raw: `Here it is: {"color":"blue","brand":{"name":"Acme"}} hope that helps`, want: `{"color":"blue","brand":{"name":"Acme"}}`},
		{name: "no braces", raw: "I cannot tell", wantErr: true},
		{name: "broken json", raw: `{"name": }`, wantErr: true},
		{name: "array only", raw: `["a"]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, StructurePrompt, Prompt("  "))
	assert.Contains(t, Prompt("vintage, small chip on rim"), "Seller notes:\nvintage, small chip on rim")
}
