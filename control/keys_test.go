package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKey(t *testing.T) {
	tests := []struct {
		name    string
		android int32
		linux   uint16
	}{
		{"a", 29, 30},
		{"A", 29, 30},
		{"z", 54, 44},
		{"0", 7, 11},
		{"7", 14, 8},
		{"!", 8, 2},
		{"?", 76, 53},
		{" ", 62, 57},
		{"CTRL", 113, 29},
		{"ctrl", 113, 29},
		{"WIN", 117, 125},
		{"META", 117, 125},
		{"SHIFT", 59, 42},
		{"ALT", 57, 56},
		{"KEY_ENTER", 66, 28},
		{"enter", 66, 28},
		{"F11", 141, 87},
		{"KEY_BACK", 4, 158},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := LookupKey(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.android, k.Android)
			assert.Equal(t, tt.linux, k.Linux)
		})
	}
}

func TestLookupKey_Unsupported(t *testing.T) {
	for _, name := range []string{"", "é", "KEY_NOPE"} {
		_, err := LookupKey(name)
		assert.ErrorIs(t, err, ErrUnsupportedKey, name)
	}
}

func TestRequiresShift(t *testing.T) {
	for _, c := range "ABZ~!@#$%^&*()_+{}|:\"<>?" {
		assert.True(t, RequiresShift(c), string(c))
	}
	for _, c := range "abz019`-=[]\\;',./ " {
		assert.False(t, RequiresShift(c), string(c))
	}
}

func TestKeyNames_Sorted(t *testing.T) {
	names := KeyNames()
	assert.Contains(t, names, "KEY_A")
	assert.IsNonDecreasing(t, names)
}
