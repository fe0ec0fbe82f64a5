package perw

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantLayout(t *testing.T) {
	l, ok := PE32.Layout()
	require.True(t, ok)
	assert.Equal(t, uint16(0xE0), l.OptionalHeaderSize())

	l, ok = PE32Plus.Layout()
	require.True(t, ok)
	assert.Equal(t, uint16(0xF0), l.OptionalHeaderSize())

	_, ok = Variant(0x107).Layout()
	assert.False(t, ok)
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "PE32", PE32.String())
	assert.Equal(t, "PE32+", PE32Plus.String())
	assert.Equal(t, "unknown(0x107)", Variant(0x107).String())
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    Variant
		wantErr bool
	}{
		{"PE32", PE32, false},
		{"pe32+", PE32Plus, false},
		{" PE32PLUS ", PE32Plus, false},
		{"PE64", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrUnknownOptionalHeaderFormat), "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestLocateOffsets(t *testing.T) {
	o := locate(0x100)
	assert.Equal(t, Offsets{
		Signature:     0x100,
		FileHeader:    0x104,
		Standard:      0x118,
		Windows:       0x118 + 28,
		DataDirectory: 0x118 + 28 + 68,
	}, o)

	l, _ := PE32Plus.Layout()
	o = o.resolve(l)
	assert.Equal(t, int64(0x118+24), o.Windows)
	assert.Equal(t, int64(0x118+24+88), o.DataDirectory)
}
