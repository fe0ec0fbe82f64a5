package perw

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTemplateAndDecodeFile(t *testing.T) {
	dir := t.TempDir()

	for _, v := range []Variant{PE32, PE32Plus} {
		path := filepath.Join(dir, v.String()+".bin")
		require.NoError(t, WriteTemplate(path, v))

		h, err := DecodeFile(path, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, v, h.Variant())
		assert.Equal(t, int64(DefaultSignatureOffset), h.SignatureOffset)
	}
}

func TestOpenImage(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	img, err := OpenImage(empty)
	require.NoError(t, err)
	assert.Empty(t, img.Bytes())
	_, err = img.Decode(zerolog.Nop())
	assert.True(t, errors.Is(err, ErrFormat))
	assert.NoError(t, img.Close())

	_, err = OpenImage(dir)
	assert.Error(t, err)

	_, err = OpenImage(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}
