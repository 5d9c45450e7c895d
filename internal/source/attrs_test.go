package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttrs_String(t *testing.T) {
	a := Attrs{
		"name":   "  Core  ",
		"num":    float64(1700000000),
		"frac":   1.5,
		"flag":   true,
		"nested": map[string]any{"x": 1},
	}

	assert.Equal(t, "Core", a.String("name"))
	assert.Equal(t, "1700000000", a.String("num"))
	assert.Equal(t, "1.5", a.String("frac"))
	assert.Equal(t, "true", a.String("flag"))
	assert.Equal(t, "", a.String("nested"))
	assert.Equal(t, "", a.String("missing"))
	assert.Equal(t, "Core", a.First("studio_name", "name"))
}

func TestAttrs_Timestamp(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   time.Time
		wantOK bool
	}{
		{name: "string seconds", value: "1700000000", want: time.Unix(1700000000, 0).UTC(), wantOK: true},
		{name: "number seconds", value: float64(1700000000), want: time.Unix(1700000000, 0).UTC(), wantOK: true},
		{name: "fractional", value: "1700000000.25", want: time.UnixMilli(1700000000250).UTC(), wantOK: true},
		{name: "garbage", value: "yesterday", wantOK: false},
		{name: "empty", value: "", wantOK: false},
		{name: "absent", value: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Attrs{"created_date": tt.value}.Timestamp("created_date")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestAttrs_KeysAndBool(t *testing.T) {
	a := Attrs{
		"entries":   map[string]any{"e2": true, "e1": true},
		"completed": "true",
		"approved":  false,
	}

	assert.Equal(t, []string{"e1", "e2"}, a.Keys("entries"))
	assert.Nil(t, a.Keys("missing"))
	assert.True(t, a.Bool("completed"))
	assert.False(t, a.Bool("approved"))
	assert.False(t, a.Bool("missing"))
}
