package perw

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAgreesWithDebugPE(t *testing.T) {
	for _, v := range []Variant{PE32, PE32Plus} {
		t.Run(v.String(), func(t *testing.T) {
			want := fullHeaders(t, v)
			// debug/pe reads the section and symbol tables, which the
			// encoder does not emit.
			want.File.NumberOfSections = 0
			want.File.PointerToSymbolTable = 0
			want.File.NumberOfSymbols = 0
			data, err := Encode(want)
			require.NoError(t, err)
			h, err := decodeBytes(data)
			require.NoError(t, err)

			mismatches, err := Verify(h, bytes.NewReader(data))
			require.NoError(t, err)
			assert.Empty(t, mismatches)
		})
	}
}

func TestVerifyMingwImages(t *testing.T) {
	tests := []struct {
		file     string
		variant  Variant
		machine  string
		sections uint16
		entryVA  uint64
	}{
		{"gcc-386-mingw-exec", PE32, "I386", 15, 0x401160},
		{"gcc-amd64-mingw-exec", PE32Plus, "AMD64", 17, 0x4014E0},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", tt.file))
			require.NoError(t, err)

			h, err := decodeBytes(data)
			require.NoError(t, err)
			assert.Equal(t, tt.variant, h.Variant())
			assert.Equal(t, tt.machine, h.File.MachineName())
			assert.Equal(t, tt.sections, h.File.NumberOfSections)
			assert.Equal(t, tt.entryVA, h.EntryPointVA())
			assert.Empty(t, h.Warnings)

			mismatches, err := Verify(h, bytes.NewReader(data))
			require.NoError(t, err)
			assert.Empty(t, mismatches)
		})
	}
}

func TestVerifyReportsMismatch(t *testing.T) {
	data := encodeTemplate(t, PE32Plus, nil)
	h, err := decodeBytes(data)
	require.NoError(t, err)

	h.File.NumberOfSymbols = 7
	h.Windows.SizeOfStackCommit = 0x2000

	mismatches, err := Verify(h, bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, mismatches, 2)
	assert.Equal(t, Mismatch{Field: "NumberOfSymbols", Ours: 7, Std: 0}, mismatches[0])
	assert.Equal(t, "SizeOfStackCommit", mismatches[1].Field)
	assert.Equal(t, "SizeOfStackCommit: decoded 0x2000, debug/pe 0x1000", mismatches[1].String())
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := Verify(&Headers{}, bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
