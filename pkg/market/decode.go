package market

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrDecode is returned when an overview document is not what we expect.
var ErrDecode = errors.New("malformed overview document")

// decodeLines extracts the lines of an overview document.
//
// Currency overviews carry currencyTypeName and receive.value; lines without
// a receive side have no price and are skipped. Item overviews carry name,
// chaosValue and an optional links count.
func decodeLines(body string, kind Kind) ([]Line, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrDecode)
	}
	lines := gjson.Get(body, "lines")
	if !lines.IsArray() {
		return nil, fmt.Errorf("%w: missing lines array", ErrDecode)
	}

	out := make([]Line, 0, len(lines.Array()))
	for _, l := range lines.Array() {
		switch kind {
		case KindCurrency:
			name := l.Get("currencyTypeName")
			if name.Type != gjson.String {
				return nil, fmt.Errorf("%w: currency line without currencyTypeName", ErrDecode)
			}
			receive := l.Get("receive")
			if !receive.Exists() || receive.Type == gjson.Null {
				continue
			}
			value := receive.Get("value")
			if value.Type != gjson.Number {
				return nil, fmt.Errorf("%w: %s: receive.value is not a number", ErrDecode, name.String())
			}
			out = append(out, Line{Name: name.String(), UnitPrice: value.Float()})
		case KindItem:
			name := l.Get("name")
			if name.Type != gjson.String {
				return nil, fmt.Errorf("%w: item line without name", ErrDecode)
			}
			value := l.Get("chaosValue")
			if value.Type != gjson.Number {
				return nil, fmt.Errorf("%w: %s: chaosValue is not a number", ErrDecode, name.String())
			}
			line := Line{Name: name.String(), UnitPrice: value.Float()}
			if links := l.Get("links"); links.Type == gjson.Number {
				n := int(links.Int())
				line.Links = &n
			}
			out = append(out, line)
		default:
			return nil, fmt.Errorf("%w: unknown category kind %d", ErrDecode, kind)
		}
	}
	return out, nil
}
