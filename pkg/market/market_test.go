package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestDecodeLines(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    Kind
		want    []Line
		wantErr bool
	}{
		{
			name: "currency skips lines without receive",
			body: `{"lines":[
				{"currencyTypeName":"Divine Orb","receive":{"value":150.5}},
				{"currencyTypeName":"Orb of Nothing"},
				{"currencyTypeName":"Exalted Orb","receive":null}
			]}`,
			kind: KindCurrency,
			want: []Line{{Name: "Divine Orb", UnitPrice: 150.5}},
		},
		{
			name: "item with and without links",
			body: `{"lines":[
				{"name":"Tabula Rasa","chaosValue":12,"links":6},
				{"name":"Kaom's Heart","chaosValue":40.25}
			]}`,
			kind: KindItem,
			want: []Line{
				{Name: "Tabula Rasa", UnitPrice: 12, Links: intPtr(6)},
				{Name: "Kaom's Heart", UnitPrice: 40.25},
			},
		},
		{
			name: "empty lines",
			body: `{"lines":[]}`,
			kind: KindItem,
			want: []Line{},
		},
		{name: "invalid json", body: `{"lines":[`, kind: KindItem, wantErr: true},
		{name: "missing lines", body: `{"currencyDetails":[]}`, kind: KindCurrency, wantErr: true},
		{name: "price not a number", body: `{"lines":[{"name":"X","chaosValue":"1"}]}`, kind: KindItem, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeLines(tt.body, tt.kind)
			if tt.wantErr {
				if !errors.Is(err, ErrDecode) {
					t.Fatalf("expected ErrDecode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected lines.\nwant: %#v\ngot:  %#v", tt.want, got)
			}
		})
	}
}

func TestFullyLinked(t *testing.T) {
	tests := []struct {
		links *int
		want  bool
	}{
		{nil, false},
		{intPtr(5), false},
		{intPtr(6), true},
		{intPtr(0), false},
	}
	for _, tt := range tests {
		if got := (Line{Links: tt.links}).FullyLinked(); got != tt.want {
			t.Fatalf("links=%v: want %t, got %t", tt.links, tt.want, got)
		}
	}
}

func TestBuildTargetsOrder(t *testing.T) {
	got := BuildTargets([]string{"Standard", "Hardcore"}, []string{"Currency"}, []string{"Oil", "Scarab"})
	want := []Target{
		{League: "Standard", Category: Category{Name: "Currency", Kind: KindCurrency}},
		{League: "Standard", Category: Category{Name: "Oil", Kind: KindItem}},
		{League: "Standard", Category: Category{Name: "Scarab", Kind: KindItem}},
		{League: "Hardcore", Category: Category{Name: "Currency", Kind: KindCurrency}},
		{League: "Hardcore", Category: Category{Name: "Oil", Kind: KindItem}},
		{League: "Hardcore", Category: Category{Name: "Scarab", Kind: KindItem}},
	}
	require.Equal(t, want, got)
}

func TestClientFetchLines(t *testing.T) {
	var gotPaths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path+"?"+r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/currencyoverview":
			w.Write([]byte(`{"lines":[{"currencyTypeName":"Divine Orb","receive":{"value":150}}]}`))
		case "/itemoverview":
			w.Write([]byte(`{"lines":[{"name":"Headhunter","chaosValue":9000}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL + "/", RetryMax: -1})
	require.NoError(t, err)

	ctx := context.Background()
	cur, err := c.FetchLines(ctx, "Standard", Category{Name: "Currency", Kind: KindCurrency})
	require.NoError(t, err)
	require.Equal(t, []Line{{Name: "Divine Orb", UnitPrice: 150}}, cur)

	items, err := c.FetchLines(ctx, "Hardcore Ancestor", Category{Name: "UniqueBelt", Kind: KindItem})
	require.NoError(t, err)
	require.Equal(t, []Line{{Name: "Headhunter", UnitPrice: 9000}}, items)

	require.Equal(t, []string{
		"/currencyoverview?league=Standard&type=Currency",
		"/itemoverview?league=Hardcore+Ancestor&type=UniqueBelt",
	}, gotPaths)
}

func TestClientFetchLinesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, RetryMax: -1})
	require.NoError(t, err)
	_, err = c.FetchLines(context.Background(), "Standard", Category{Name: "Currency", Kind: KindCurrency})
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 404")
}

func TestClientFetchLinesDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, RetryMax: -1})
	require.NoError(t, err)
	_, err = c.FetchLines(context.Background(), "Standard", Category{Name: "Oil", Kind: KindItem})
	require.ErrorIs(t, err, ErrDecode)
}
