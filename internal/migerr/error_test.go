package migerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"message only", New(KindFatal, "", "Invalid JSON structure"), "Invalid JSON structure"},
		{"op and message", New(KindPrecondition, "cleanup", "mappings file not found"), "cleanup: mappings file not found"},
		{"wrapped", Wrap(KindRow, "insert student", errors.New("duplicate key")), "insert student: duplicate key"},
		{"message and internal", &Error{Kind: KindFatal, Op: "load", Message: "read file", Internal: errors.New("eof")}, "load: read file: eof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(KindRow, "op", nil))
	assert.NoError(t, Fatal("op", nil))
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	inner := Transient("download", errors.New("503"))
	outer := fmt.Errorf("item 4: %w", inner)

	assert.Equal(t, KindTransient, KindOf(outer))
	assert.True(t, Is(outer, KindTransient))
	assert.False(t, Is(outer, KindFatal))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestAborts(t *testing.T) {
	assert.True(t, Aborts(Fatalf("load", "missing %s", "studios")))
	assert.True(t, Aborts(Precondition("images", "no ledger")))
	assert.False(t, Aborts(Wrap(KindRow, "insert", errors.New("x"))))
	assert.False(t, Aborts(nil))
}
