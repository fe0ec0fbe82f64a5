package perw

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// PEOffsetLocation holds the 2-byte file offset of the PE signature.
	PEOffsetLocation = 60

	signatureSize  = 4
	fileHeaderSize = 20
	stdCoreSize    = 24
	directorySize  = 8
	NumDirectories = 16
	directoryTable = NumDirectories * directorySize
)

// Variant is the optional header magic number.
type Variant uint16

const (
	PE32     Variant = 0x10B
	PE32Plus Variant = 0x20B
)

func (v Variant) String() string {
	switch v {
	case PE32:
		return "PE32"
	case PE32Plus:
		return "PE32+"
	default:
		return fmt.Sprintf("unknown(0x%X)", uint16(v))
	}
}

// Layout carries the on-disk sizes that differ between PE32 and PE32+.
type Layout struct {
	Variant Variant
	// StdSize is the size of the standard fields including BaseOfData.
	StdSize int
	// WindowsSize is the size of the Windows-specific fields.
	WindowsSize int
	// WordSize is the width of ImageBase and the stack/heap sizes.
	WordSize int
}

var layouts = map[Variant]Layout{
	PE32:     {Variant: PE32, StdSize: 28, WindowsSize: 68, WordSize: 4},
	PE32Plus: {Variant: PE32Plus, StdSize: 24, WindowsSize: 88, WordSize: 8},
}

// Layout returns the layout for v. ok is false for unknown magic values.
func (v Variant) Layout() (l Layout, ok bool) {
	l, ok = layouts[v]
	return l, ok
}

// OptionalHeaderSize is the SizeOfOptionalHeader value of an image with the
// full 16-entry directory table.
func (l Layout) OptionalHeaderSize() uint16 {
	return uint16(l.StdSize + l.WindowsSize + directoryTable)
}

// Offsets are the absolute file offsets of each header block.
type Offsets struct {
	Signature     int64
	FileHeader    int64
	Standard      int64
	Windows       int64
	DataDirectory int64
}

// locate derives the offsets from the signature pointer. Windows and
// DataDirectory assume PE32 until resolve is called.
func locate(sig uint16) Offsets {
	o := Offsets{Signature: int64(sig)}
	o.FileHeader = o.Signature + signatureSize
	o.Standard = o.FileHeader + fileHeaderSize
	return o.resolve(layouts[PE32])
}

func (o Offsets) resolve(l Layout) Offsets {
	o.Windows = o.Standard + int64(l.StdSize)
	o.DataDirectory = o.Windows + int64(l.WindowsSize)
	return o
}

// Wire layouts. The std core is shared; BaseOfData is read separately for
// PE32. windows32 narrows the word-sized fields and converts directly to
// OptionalHeaderWindows, since struct conversion ignores tags.

type stdCore struct {
	Magic                   uint16 `struc:"uint16,little"`
	MajorLinkerVersion      uint8  `struc:"uint8"`
	MinorLinkerVersion      uint8  `struc:"uint8"`
	SizeOfCode              uint32 `struc:"uint32,little"`
	SizeOfInitializedData   uint32 `struc:"uint32,little"`
	SizeOfUninitializedData uint32 `struc:"uint32,little"`
	AddressOfEntryPoint     uint32 `struc:"uint32,little"`
	BaseOfCode              uint32 `struc:"uint32,little"`
}

type baseOfData struct {
	BaseOfData uint32 `struc:"uint32,little"`
}

type windows32 struct {
	ImageBase                   uint64 `struc:"uint32,little"`
	SectionAlignment            uint32 `struc:"uint32,little"`
	FileAlignment               uint32 `struc:"uint32,little"`
	MajorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MinorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MajorImageVersion           uint16 `struc:"uint16,little"`
	MinorImageVersion           uint16 `struc:"uint16,little"`
	MajorSubsystemVersion       uint16 `struc:"uint16,little"`
	MinorSubsystemVersion       uint16 `struc:"uint16,little"`
	Win32VersionValue           uint32 `struc:"uint32,little"`
	SizeOfImage                 uint32 `struc:"uint32,little"`
	SizeOfHeaders               uint32 `struc:"uint32,little"`
	CheckSum                    uint32 `struc:"uint32,little"`
	Subsystem                   uint16 `struc:"uint16,little"`
	DllCharacteristics          uint16 `struc:"uint16,little"`
	SizeOfStackReserve          uint64 `struc:"uint32,little"`
	SizeOfStackCommit           uint64 `struc:"uint32,little"`
	SizeOfHeapReserve           uint64 `struc:"uint32,little"`
	SizeOfHeapCommit            uint64 `struc:"uint32,little"`
	LoaderFlags                 uint32 `struc:"uint32,little"`
	NumberOfRvaAndSizes         uint32 `struc:"uint32,little"`
}

// windowsWire returns the struc value used for the Windows fields of l.
func windowsWire(l Layout, w *OptionalHeaderWindows) any {
	if l.WordSize == 4 {
		narrow := windows32(*w)
		return &narrow
	}
	return w
}

// ParseVariant accepts "PE32" or "PE32+" (case-insensitive).
func ParseVariant(s string) (Variant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PE32":
		return PE32, nil
	case "PE32+", "PE32PLUS":
		return PE32Plus, nil
	}
	return 0, errors.Wrapf(ErrUnknownOptionalHeaderFormat, "variant %q", s)
}
