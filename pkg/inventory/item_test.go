package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"name":"Tabula Rasa","typeLine":"Simple Robe"}`, "Tabula Rasa"},
		{`{"name":"","typeLine":"Chaos Orb"}`, "Chaos Orb"},
		{`{"typeLine":"Divine Orb"}`, "Divine Orb"},
		{`{}`, ""},
	}
	for _, tt := range tests {
		if got := MustParse(tt.raw).LookupName(); got != tt.want {
			t.Fatalf("%s: want %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{`{"stackSize":10}`, 10},
		{`{"stackSize":1}`, 1},
		{`{"stackSize":0}`, 1},
		{`{"stackSize":null}`, 1},
		{`{}`, 1},
	}
	for _, tt := range tests {
		if got := MustParse(tt.raw).Quantity(); got != tt.want {
			t.Fatalf("%s: want %d, got %d", tt.raw, tt.want, got)
		}
	}
}

func TestRoundTripKeepsUnknownFields(t *testing.T) {
	raw := `{"verified":false,"w":1,"h":1,"icon":"x.png","stackSize":3,"maxStackSize":20,"name":"","typeLine":"Chaos Orb","baseType":"Chaos Orb","identified":true,"frameType":5,"extended":{"category":"currency"}}`
	var items []Item
	require.NoError(t, json.Unmarshal([]byte("["+raw+"]"), &items))
	require.Len(t, items, 1)

	out, err := json.Marshal(items[0])
	require.NoError(t, err)
	require.JSONEq(t, raw, string(out))

	n, ok := items[0].StackSize()
	require.True(t, ok)
	require.Equal(t, int64(3), n)
	require.Equal(t, "Chaos Orb", items[0].LookupName())
}

func TestParseList(t *testing.T) {
	items, err := ParseList([]byte(`[{"typeLine":"Chaos Orb"},{"typeLine":"Divine Orb"}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = ParseList([]byte(`{"stash":{"id":"abc"},"items":[{"typeLine":"Chaos Orb"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = ParseList([]byte(`[1,2]`))
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = ParseList([]byte(`"nope"`))
	require.Error(t, err)
}
