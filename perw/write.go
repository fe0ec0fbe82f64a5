package perw

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// DefaultSignatureOffset is where Template places the PE signature, right
// after a 64-byte DOS header and a 64-byte stub.
const DefaultSignatureOffset = 0x80

// Encode serialises h into a header image laid out at the offsets the
// decoder computes. The signature offset is taken from h.SignatureOffset.
// Records that are nil end the image, mirroring what Decode produces.
func Encode(h *Headers) ([]byte, error) {
	if h == nil || h.File == nil {
		return nil, errors.New("encode: no file header")
	}
	if h.SignatureOffset < PEOffsetLocation+2 || h.SignatureOffset > 0xFFFF {
		return nil, errors.Errorf("encode: signature offset 0x%X out of range", h.SignatureOffset)
	}

	offsets := locate(uint16(h.SignatureOffset))
	img := &imageWriter{}
	img.writeAt(0, []byte{'M', 'Z'})
	ptr := make([]byte, 4)
	binary.LittleEndian.PutUint32(ptr, uint32(offsets.Signature))
	img.writeAt(PEOffsetLocation, ptr)
	img.writeAt(offsets.Signature, []byte{'P', 'E', 0, 0})

	if err := img.pack(offsets.FileHeader, h.File); err != nil {
		return nil, errors.Wrap(err, "encode COFF file header")
	}
	if h.Standard == nil {
		return img.Bytes(), nil
	}

	layout, ok := h.Standard.Variant().Layout()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOptionalHeaderFormat, "encode magic 0x%X", h.Standard.Magic)
	}
	offsets = offsets.resolve(layout)

	core := stdCore{
		Magic:                   h.Standard.Magic,
		MajorLinkerVersion:      h.Standard.MajorLinkerVersion,
		MinorLinkerVersion:      h.Standard.MinorLinkerVersion,
		SizeOfCode:              h.Standard.SizeOfCode,
		SizeOfInitializedData:   h.Standard.SizeOfInitializedData,
		SizeOfUninitializedData: h.Standard.SizeOfUninitializedData,
		AddressOfEntryPoint:     h.Standard.AddressOfEntryPoint,
		BaseOfCode:              h.Standard.BaseOfCode,
	}
	if err := img.pack(offsets.Standard, &core); err != nil {
		return nil, errors.Wrap(err, "encode standard fields")
	}
	if layout.StdSize > stdCoreSize {
		if err := img.pack(offsets.Standard+stdCoreSize, &baseOfData{h.Standard.BaseOfData}); err != nil {
			return nil, errors.Wrap(err, "encode base of data")
		}
	}

	if h.Windows == nil {
		return img.Bytes(), nil
	}
	if err := img.pack(offsets.Windows, windowsWire(layout, h.Windows)); err != nil {
		return nil, errors.Wrap(err, "encode Windows fields")
	}

	if h.Directories == nil {
		return img.Bytes(), nil
	}
	for i := range h.Directories {
		if err := img.pack(offsets.DataDirectory+int64(i*directorySize), &h.Directories[i]); err != nil {
			return nil, errors.Wrapf(err, "encode data directory %d", i)
		}
	}
	return img.Bytes(), nil
}

// WriteImage encodes h and writes it to w.
func WriteImage(w io.Writer, h *Headers) error {
	data, err := Encode(h)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Template returns a minimal, self-consistent header set for v: an
// executable console image with no sections and the full directory table.
func Template(v Variant) (*Headers, error) {
	layout, ok := v.Layout()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOptionalHeaderFormat, "template magic 0x%X", uint16(v))
	}

	file := &FileHeader{
		Machine:              0x14c,
		SizeOfOptionalHeader: layout.OptionalHeaderSize(),
		Characteristics:      0x0002 | 0x0100,
	}
	win := &OptionalHeaderWindows{
		ImageBase:                   0x400000,
		SectionAlignment:            0x1000,
		FileAlignment:               0x200,
		MajorOperatingSystemVersion: 6,
		MajorSubsystemVersion:       6,
		SizeOfImage:                 0x1000,
		SizeOfHeaders:               0x200,
		Subsystem:                   3,
		DllCharacteristics:          0x0040 | 0x0100 | 0x8000,
		SizeOfStackReserve:          0x100000,
		SizeOfStackCommit:           0x1000,
		SizeOfHeapReserve:           0x100000,
		SizeOfHeapCommit:            0x1000,
		NumberOfRvaAndSizes:         NumDirectories,
	}
	if v == PE32Plus {
		file.Machine = 0x8664
		file.Characteristics = 0x0002 | 0x0020
		win.ImageBase = 0x140000000
		win.DllCharacteristics |= 0x0020
	}

	return &Headers{
		SignatureOffset: DefaultSignatureOffset,
		Offsets:         locate(DefaultSignatureOffset).resolve(layout),
		File:            file,
		Standard: &OptionalHeaderStd{
			Magic:              uint16(v),
			MajorLinkerVersion: 14,
			BaseOfCode:         0x1000,
		},
		Windows:     win,
		Directories: new(DataDirectories),
	}, nil
}

// imageWriter is a sparse byte image that grows as records are placed.
type imageWriter struct {
	buf []byte
}

func (w *imageWriter) writeAt(off int64, p []byte) {
	end := int(off) + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[off:], p)
}

func (w *imageWriter) pack(off int64, v any) error {
	var b bytes.Buffer
	if err := struc.PackWithOptions(&b, v, wireOptions); err != nil {
		return err
	}
	w.writeAt(off, b.Bytes())
	return nil
}

func (w *imageWriter) Bytes() []byte {
	return w.buf
}
