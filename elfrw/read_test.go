package elfrw

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyRejectsNonELF(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("MZ"),
		[]byte("!<arch>\n"),
		{0x7f, 'E', 'L', 'F'},
	} {
		info, ok := Identify(data)
		assert.False(t, ok)
		assert.Nil(t, info)
	}
}

func TestIdentifyTestBinary(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("test binary is not ELF on " + runtime.GOOS)
	}
	exe, err := os.Executable()
	require.NoError(t, err)
	data, err := os.ReadFile(exe)
	require.NoError(t, err)

	info, ok := Identify(data)
	require.True(t, ok)
	assert.True(t, info.IsExecutableOrShared())
	assert.NotZero(t, info.Sections)
	assert.NotZero(t, info.Segments)
	assert.Equal(t, runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64", info.Is64Bit)
}
