package perw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrFormat means the input is not a readable PE image: the signature
	// is missing or a fixed-size record was cut short.
	ErrFormat = errors.New("not a PE file")
	// ErrUnknownOptionalHeaderFormat means the optional header magic is
	// neither PE32 nor PE32+.
	ErrUnknownOptionalHeaderFormat = errors.New("unknown optional header format")
	// ErrArchive marks an ar archive (import or static library).
	ErrArchive = errors.WithMessage(ErrFormat, "ar archive")
)

var archiveMagic = []byte("!<arch>\n")

var wireOptions = &struc.Options{Order: binary.LittleEndian}

// Decoder reads the header region of one image. Reads happen at
// non-decreasing offsets and each decoder is used for a single run.
type Decoder struct {
	r   io.ReadSeeker
	log zerolog.Logger
}

func NewDecoder(r io.ReadSeeker, log zerolog.Logger) *Decoder {
	return &Decoder{r: r, log: log}
}

// Decode decodes r without logging.
func Decode(r io.ReadSeeker) (*Headers, error) {
	return NewDecoder(r, zerolog.Nop()).Decode()
}

// Decode runs the full header decode. Once the signature matches, the
// returned Headers is non-nil and holds every record decoded so far, even
// on error. Before that it is nil.
func (d *Decoder) Decode() (*Headers, error) {
	if err := d.checkArchive(); err != nil {
		return nil, err
	}

	ptr, err := d.readAt(PEOffsetLocation, 2)
	if err != nil {
		return nil, errors.WithMessage(err, "signature pointer")
	}
	offsets := locate(binary.LittleEndian.Uint16(ptr))

	sig, err := d.readAt(offsets.Signature, 2)
	if err != nil {
		return nil, errors.WithMessage(err, "signature")
	}
	if sig[0] != 'P' || sig[1] != 'E' {
		return nil, errors.Wrapf(ErrFormat, "no PE signature at 0x%X", offsets.Signature)
	}

	h := &Headers{SignatureOffset: offsets.Signature, Offsets: offsets}
	d.log.Debug().
		Int64("signature", offsets.Signature).
		Int64("coff", offsets.FileHeader).
		Int64("standard", offsets.Standard).
		Msg("located PE signature")

	if h.File, err = d.readFileHeader(offsets.FileHeader); err != nil {
		return h, err
	}
	if h.PureCOFF() {
		d.log.Debug().Msg("no optional header, pure COFF")
		return h, nil
	}

	std, layout, err := d.readStandard(offsets.Standard)
	if err != nil {
		return h, err
	}
	h.Standard = std
	h.Offsets = offsets.resolve(layout)
	d.log.Debug().
		Stringer("variant", layout.Variant).
		Int64("windows", h.Offsets.Windows).
		Int64("directories", h.Offsets.DataDirectory).
		Msg("resolved optional header variant")

	if h.Windows, err = d.readWindows(h.Offsets.Windows, layout); err != nil {
		return h, err
	}

	if h.Directories, err = d.readDirectories(h.Offsets.DataDirectory); err != nil {
		return h, err
	}
	if n := h.Windows.NumberOfRvaAndSizes; n != NumDirectories {
		msg := fmt.Sprintf("image declares %d data directories, read %d", n, NumDirectories)
		h.Warnings = append(h.Warnings, msg)
		d.log.Warn().Uint32("declared", n).Msg("data directory count mismatch")
	}

	return h, nil
}

func (d *Decoder) checkArchive() error {
	head := make([]byte, len(archiveMagic))
	if _, err := d.r.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek")
	}
	n, err := io.ReadFull(d.r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errors.Wrap(err, "read archive magic")
	}
	if n == len(head) && bytes.Equal(head, archiveMagic) {
		return ErrArchive
	}
	return nil
}

// readAt seeks to off and reads exactly size bytes. A short read is a
// format error.
func (d *Decoder) readAt(off int64, size int) ([]byte, error) {
	if _, err := d.r.Seek(off, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "seek to 0x%X", off)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrFormat, "truncated: need %d bytes at 0x%X", size, off)
		}
		return nil, errors.Wrapf(err, "read %d bytes at 0x%X", size, off)
	}
	return buf, nil
}

// readRecord reads size bytes at off and unpacks them into v.
func (d *Decoder) readRecord(off int64, size int, v any, what string) error {
	buf, err := d.readAt(off, size)
	if err != nil {
		return errors.WithMessage(err, what)
	}
	if err := struc.UnpackWithOptions(bytes.NewReader(buf), v, wireOptions); err != nil {
		return errors.Wrap(err, what)
	}
	return nil
}

func (d *Decoder) readFileHeader(off int64) (*FileHeader, error) {
	fh := new(FileHeader)
	if err := d.readRecord(off, fileHeaderSize, fh, "COFF file header"); err != nil {
		return nil, err
	}
	return fh, nil
}

func (d *Decoder) readStandard(off int64) (*OptionalHeaderStd, Layout, error) {
	var core stdCore
	if err := d.readRecord(off, stdCoreSize, &core, "optional header standard fields"); err != nil {
		return nil, Layout{}, err
	}

	layout, ok := Variant(core.Magic).Layout()
	if !ok {
		return nil, Layout{}, errors.Wrapf(ErrUnknownOptionalHeaderFormat, "magic 0x%X", core.Magic)
	}

	std := &OptionalHeaderStd{
		Magic:                   core.Magic,
		MajorLinkerVersion:      core.MajorLinkerVersion,
		MinorLinkerVersion:      core.MinorLinkerVersion,
		SizeOfCode:              core.SizeOfCode,
		SizeOfInitializedData:   core.SizeOfInitializedData,
		SizeOfUninitializedData: core.SizeOfUninitializedData,
		AddressOfEntryPoint:     core.AddressOfEntryPoint,
		BaseOfCode:              core.BaseOfCode,
	}
	if layout.StdSize > stdCoreSize {
		var bod baseOfData
		if err := d.readRecord(off+stdCoreSize, layout.StdSize-stdCoreSize, &bod, "base of data"); err != nil {
			return nil, Layout{}, err
		}
		std.BaseOfData = bod.BaseOfData
	}
	return std, layout, nil
}

func (d *Decoder) readWindows(off int64, l Layout) (*OptionalHeaderWindows, error) {
	const what = "optional header Windows fields"
	w := new(OptionalHeaderWindows)
	if l.WordSize == 4 {
		var narrow windows32
		if err := d.readRecord(off, l.WindowsSize, &narrow, what); err != nil {
			return nil, err
		}
		*w = OptionalHeaderWindows(narrow)
		return w, nil
	}
	if err := d.readRecord(off, l.WindowsSize, w, what); err != nil {
		return nil, err
	}
	return w, nil
}

func (d *Decoder) readDirectories(off int64) (*DataDirectories, error) {
	buf, err := d.readAt(off, directoryTable)
	if err != nil {
		return nil, errors.WithMessage(err, "data directories")
	}
	dirs := new(DataDirectories)
	r := bytes.NewReader(buf)
	for i := range dirs {
		if err := struc.UnpackWithOptions(r, &dirs[i], wireOptions); err != nil {
			return nil, errors.Wrapf(err, "data directory %d", i)
		}
	}
	return dirs, nil
}
