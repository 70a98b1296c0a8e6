// Package inventory wraps raw stash items as returned by the game's stash API.
//
// Items are opaque JSON documents: they are stored and returned byte for byte,
// and only the handful of fields needed for pricing are read from them.
package inventory

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

var ErrInvalidItem = errors.New("item is not a JSON object")

// Item is a single raw stash item.
type Item struct {
	raw json.RawMessage
}

// Parse validates data as a JSON object and wraps a copy of it.
func Parse(data []byte) (Item, error) {
	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return Item{}, ErrInvalidItem
	}
	return Item{raw: append(json.RawMessage(nil), data...)}, nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Item {
	it, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return it
}

// ParseList accepts either a JSON array of items or a stash tab document of
// the form {"items": [...]}.
func ParseList(data []byte) ([]Item, error) {
	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidItem
	}
	doc := gjson.ParseBytes(data)
	if doc.IsObject() {
		doc = doc.Get("items")
	}
	if !doc.IsArray() {
		return nil, errors.New("expected an array of items or an object with an items array")
	}
	out := []Item{}
	for _, r := range doc.Array() {
		it, err := Parse([]byte(r.Raw))
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (i Item) Raw() json.RawMessage { return i.raw }

func (i Item) get(path string) gjson.Result {
	return gjson.GetBytes(i.raw, path)
}

func (i Item) Name() string     { return i.get("name").String() }
func (i Item) TypeLine() string { return i.get("typeLine").String() }

// StackSize returns the stack size and whether the item reported one.
func (i Item) StackSize() (int64, bool) {
	r := i.get("stackSize")
	if r.Type != gjson.Number {
		return 0, false
	}
	return r.Int(), true
}

// Quantity is the multiplier applied to the unit price: the stack size, but
// never less than one.
func (i Item) Quantity() int64 {
	n, ok := i.StackSize()
	if !ok || n < 1 {
		return 1
	}
	return n
}

// LookupName is the name an item is priced under: its name, or its type line
// for items without one (currency, gems, bases).
func (i Item) LookupName() string {
	if n := i.Name(); n != "" {
		return n
	}
	return i.TypeLine()
}

func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.raw) == 0 {
		return []byte("null"), nil
	}
	return i.raw, nil
}

func (i *Item) UnmarshalJSON(data []byte) error {
	it, err := Parse(data)
	if err != nil {
		return err
	}
	*i = it
	return nil
}
