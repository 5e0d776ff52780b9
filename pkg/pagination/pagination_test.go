package pagination

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"zero value", Params{}, Params{Page: 1, PerPage: DefaultPerPage}},
		{"negative page", Params{Page: -3, PerPage: 10}, Params{Page: 1, PerPage: 10}},
		{"oversized page", Params{Page: 2, PerPage: 500}, Params{Page: 2, PerPage: MaxPerPage}},
		{"in range", Params{Page: 4, PerPage: 25}, Params{Page: 4, PerPage: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestParams_Window(t *testing.T) {
	p := Params{Page: 3, PerPage: 12}
	assert.Equal(t, 12, p.Limit())
	assert.Equal(t, 24, p.Offset())
	assert.Equal(t, 0, DefaultParams().Offset())
}

func TestNewResult(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		params  Params
		pages   int
		hasNext bool
		hasPrev bool
	}{
		{"first of several", 45, Params{Page: 1, PerPage: 20}, 3, true, false},
		{"middle", 45, Params{Page: 2, PerPage: 20}, 3, true, true},
		{"last partial", 45, Params{Page: 3, PerPage: 20}, 3, false, true},
		{"exact division", 40, Params{Page: 2, PerPage: 20}, 2, false, true},
		{"empty", 0, DefaultParams(), 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResult([]string{"x"}, tt.total, tt.params)
			assert.Equal(t, tt.pages, res.TotalPages)
			assert.Equal(t, tt.hasNext, res.HasNext)
			assert.Equal(t, tt.hasPrev, res.HasPrev)
			assert.Equal(t, tt.total, res.TotalCount)
		})
	}
}

func TestNewResult_NilDataEncodesAsArray(t *testing.T) {
	res := NewResult[int](nil, 0, DefaultParams())

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":[]`)
}
