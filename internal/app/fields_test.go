package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfshot/internal/domain"
)

func TestStructureEntries(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "Mug",
		"offers": {"price": 12.5, "availability": "InStock"},
		"audience": {"age": {"min": 3}},
		"tags": ["a", "b"]
	}`)

	entries := StructureEntries(raw)
	require.Len(t, entries, len(structureCoreFields)+3)

	assert.Equal(t, StructureEntry{Path: "name", Value: "Mug"}, entries[0])
	assert.Equal(t, StructureEntry{Path: "brand.name"}, entries[1])
	assert.Equal(t, StructureEntry{Path: "offers.price", Value: 12.5}, entries[8])

	extra := entries[len(structureCoreFields):]
	assert.Equal(t, "audience.age.min", extra[0].Path)
	assert.Equal(t, "offers.availability", extra[1].Path)
	assert.Equal(t, "tags", extra[2].Path)
	assert.Equal(t, []any{"a", "b"}, extra[2].Value)
}

func TestStructureEntriesEmpty(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`not json`), json.RawMessage(`[1,2]`)} {
		entries := StructureEntries(raw)
		assert.Len(t, entries, len(structureCoreFields))
	}
}

func TestSetJSONPath(t *testing.T) {
	doc := map[string]any{"weight": "heavy"}
	setJSONPath(doc, "weight.value", 2.0)
	setJSONPath(doc, "brand.name", "Acme")

	v, ok := getJSONPath(doc, "weight.value")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = getJSONPath(doc, "brand.name")
	assert.True(t, ok)
	assert.Equal(t, "Acme", v)

	_, ok = getJSONPath(doc, "brand.name.first")
	assert.False(t, ok)
}

func TestStructureKindAndBuffer(t *testing.T) {
	tests := []struct {
		value  any
		kind   EditKind
		buffer string
	}{
		{nil, KindText, ""},
		{"Mug", KindText, "Mug"},
		{12.5, KindNumber, "12.5"},
		{true, KindBool, "true"},
		{[]any{"a"}, KindJSON, "[\n  \"a\"\n]"},
		{map[string]any{"k": 1.0}, KindJSON, "{\n  \"k\": 1\n}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, structureKind(tt.value))
		assert.Equal(t, tt.buffer, structureBuffer(tt.value))
	}
}

func TestParseStructureValue(t *testing.T) {
	tests := []struct {
		name    string
		buffer  string
		kind    EditKind
		want    any
		wantErr string
	}{
		{name: "empty clears", buffer: "  \n", kind: KindNumber, want: nil},
		{name: "text kept verbatim", buffer: " Blue ", kind: KindText, want: " Blue "},
		{name: "number", buffer: "19.99", kind: KindNumber, want: 19.99},
		{name: "bad number", buffer: "cheap", kind: KindNumber, wantErr: "expected a number"},
		{name: "bool", buffer: "False", kind: KindBool, want: false},
		{name: "bad bool", buffer: "yes", kind: KindBool, wantErr: "expected true/false"},
		{name: "json", buffer: `{"a": [1]}`, kind: KindJSON, want: map[string]any{"a": []any{1.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStructureValue(tt.buffer, tt.kind)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func listingField(t *testing.T, label string) ListingField {
	t.Helper()
	for _, f := range ListingFields() {
		if f.Label == label {
			return f
		}
	}
	t.Fatalf("no listing field %q", label)
	return ListingField{}
}

func TestListingFields(t *testing.T) {
	var l domain.Listing

	require.NoError(t, listingField(t, "Title").set(&l, "  Blue Mug "))
	assert.Equal(t, "Blue Mug", l.Title)

	require.NoError(t, listingField(t, "Price").set(&l, "12.50"))
	require.NotNil(t, l.Price)
	assert.Equal(t, 12.5, *l.Price)
	assert.Equal(t, "12.5", listingField(t, "Price").Value(&l))
	assert.EqualError(t, listingField(t, "Price").set(&l, "abc"), "expected a number")

	require.NoError(t, listingField(t, "Condition ID").set(&l, "1000"))
	assert.Equal(t, 1000, *l.ConditionID)
	require.NoError(t, listingField(t, "Condition ID").set(&l, ""))
	assert.Nil(t, l.ConditionID)

	require.NoError(t, listingField(t, "Images").set(&l, "https://x/a.jpg, https://x/b.jpg\nhttps://x/c.jpg\n"))
	assert.Equal(t, []string{"https://x/a.jpg", "https://x/b.jpg", "https://x/c.jpg"}, l.Images)

	aspects := listingField(t, "Aspects")
	assert.Equal(t, KindAspects, aspects.Kind)
	require.NoError(t, aspects.set(&l, "Color: Blue, White\n\nBrand: Acme"))
	assert.Equal(t, map[string][]string{"Color": {"Blue", "White"}, "Brand": {"Acme"}}, l.Aspects)
	assert.Equal(t, "Brand: Acme\nColor: Blue, White", aspects.Value(&l))
	assert.EqualError(t, aspects.set(&l, "Color Blue"), "line 1: expected Name: value")

	require.NoError(t, aspects.set(&l, ""))
	assert.Nil(t, l.Aspects)
}
