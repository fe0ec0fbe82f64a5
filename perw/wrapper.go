package perw

import (
	"bytes"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Wrapper functions handle file opening, decoding and closing for callers
// that start from a path.

// Image is a read-only mapping of one file on disk.
type Image struct {
	Path string
	data mmap.MMap
}

// OpenImage maps path read-only. Empty files cannot be mapped and are
// returned with no data, which the decoder reports as truncated.
func OpenImage(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New("not a regular file")
	}
	img := &Image{Path: path}
	if info.Size() == 0 {
		return img, nil
	}
	img.data, err = mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "mmap")
	}
	return img, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (i *Image) Bytes() []byte {
	return i.data
}

func (i *Image) Reader() *bytes.Reader {
	return bytes.NewReader(i.data)
}

func (i *Image) Close() error {
	if i.data == nil {
		return nil
	}
	err := i.data.Unmap()
	i.data = nil
	return err
}

// Decode decodes the mapped file.
func (i *Image) Decode(log zerolog.Logger) (*Headers, error) {
	return NewDecoder(i.Reader(), log.With().Str("file", i.Path).Logger()).Decode()
}

// DecodeFile maps, decodes and unmaps path.
func DecodeFile(path string, log zerolog.Logger) (*Headers, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	defer func(img *Image) {
		_ = img.Close()
	}(img)

	return img.Decode(log)
}

// WriteTemplate writes a minimal header image for v to path.
func WriteTemplate(path string, v Variant) error {
	h, err := Template(v)
	if err != nil {
		return err
	}
	data, err := Encode(h)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
