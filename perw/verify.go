package perw

import (
	"debug/pe"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Mismatch is one field whose decoded value differs from debug/pe's.
type Mismatch struct {
	Field string
	Ours  uint64
	Std   uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: decoded 0x%X, debug/pe 0x%X", m.Field, m.Ours, m.Std)
}

// Verify re-parses r with debug/pe and compares every field present in h.
// An error means debug/pe could not parse the image at all.
func Verify(h *Headers, r io.ReaderAt) ([]Mismatch, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "debug/pe")
	}
	defer func() {
		_ = f.Close()
	}()

	var c comparer
	if h.File != nil {
		fh := f.FileHeader
		c.cmp("Machine", h.File.Machine, fh.Machine)
		c.cmp("NumberOfSections", h.File.NumberOfSections, fh.NumberOfSections)
		c.cmp("TimeDateStamp", h.File.TimeDateStamp, fh.TimeDateStamp)
		c.cmp("PointerToSymbolTable", h.File.PointerToSymbolTable, fh.PointerToSymbolTable)
		c.cmp("NumberOfSymbols", h.File.NumberOfSymbols, fh.NumberOfSymbols)
		c.cmp("SizeOfOptionalHeader", h.File.SizeOfOptionalHeader, fh.SizeOfOptionalHeader)
		c.cmp("Characteristics", h.File.Characteristics, fh.Characteristics)
	}

	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		c.standard(h.Standard, oh.Magic, oh.MajorLinkerVersion, oh.MinorLinkerVersion,
			oh.SizeOfCode, oh.SizeOfInitializedData, oh.SizeOfUninitializedData,
			oh.AddressOfEntryPoint, oh.BaseOfCode)
		if h.Standard != nil {
			c.cmp("BaseOfData", h.Standard.BaseOfData, oh.BaseOfData)
		}
		c.windows(h.Windows, OptionalHeaderWindows{
			ImageBase:                   uint64(oh.ImageBase),
			SectionAlignment:            oh.SectionAlignment,
			FileAlignment:               oh.FileAlignment,
			MajorOperatingSystemVersion: oh.MajorOperatingSystemVersion,
			MinorOperatingSystemVersion: oh.MinorOperatingSystemVersion,
			MajorImageVersion:           oh.MajorImageVersion,
			MinorImageVersion:           oh.MinorImageVersion,
			MajorSubsystemVersion:       oh.MajorSubsystemVersion,
			MinorSubsystemVersion:       oh.MinorSubsystemVersion,
			Win32VersionValue:           oh.Win32VersionValue,
			SizeOfImage:                 oh.SizeOfImage,
			SizeOfHeaders:               oh.SizeOfHeaders,
			CheckSum:                    oh.CheckSum,
			Subsystem:                   oh.Subsystem,
			DllCharacteristics:          oh.DllCharacteristics,
			SizeOfStackReserve:          uint64(oh.SizeOfStackReserve),
			SizeOfStackCommit:           uint64(oh.SizeOfStackCommit),
			SizeOfHeapReserve:           uint64(oh.SizeOfHeapReserve),
			SizeOfHeapCommit:            uint64(oh.SizeOfHeapCommit),
			LoaderFlags:                 oh.LoaderFlags,
			NumberOfRvaAndSizes:         oh.NumberOfRvaAndSizes,
		})
		c.directories(h.Directories, oh.DataDirectory, oh.NumberOfRvaAndSizes)
	case *pe.OptionalHeader64:
		c.standard(h.Standard, oh.Magic, oh.MajorLinkerVersion, oh.MinorLinkerVersion,
			oh.SizeOfCode, oh.SizeOfInitializedData, oh.SizeOfUninitializedData,
			oh.AddressOfEntryPoint, oh.BaseOfCode)
		c.windows(h.Windows, OptionalHeaderWindows{
			ImageBase:                   oh.ImageBase,
			SectionAlignment:            oh.SectionAlignment,
			FileAlignment:               oh.FileAlignment,
			MajorOperatingSystemVersion: oh.MajorOperatingSystemVersion,
			MinorOperatingSystemVersion: oh.MinorOperatingSystemVersion,
			MajorImageVersion:           oh.MajorImageVersion,
			MinorImageVersion:           oh.MinorImageVersion,
			MajorSubsystemVersion:       oh.MajorSubsystemVersion,
			MinorSubsystemVersion:       oh.MinorSubsystemVersion,
			Win32VersionValue:           oh.Win32VersionValue,
			SizeOfImage:                 oh.SizeOfImage,
			SizeOfHeaders:               oh.SizeOfHeaders,
			CheckSum:                    oh.CheckSum,
			Subsystem:                   oh.Subsystem,
			DllCharacteristics:          oh.DllCharacteristics,
			SizeOfStackReserve:          oh.SizeOfStackReserve,
			SizeOfStackCommit:           oh.SizeOfStackCommit,
			SizeOfHeapReserve:           oh.SizeOfHeapReserve,
			SizeOfHeapCommit:            oh.SizeOfHeapCommit,
			LoaderFlags:                 oh.LoaderFlags,
			NumberOfRvaAndSizes:         oh.NumberOfRvaAndSizes,
		})
		c.directories(h.Directories, oh.DataDirectory, oh.NumberOfRvaAndSizes)
	}

	return c.out, nil
}

type comparer struct {
	out []Mismatch
}

func (c *comparer) cmp(field string, ours, std any) {
	a, b := toUint64(ours), toUint64(std)
	if a != b {
		c.out = append(c.out, Mismatch{Field: field, Ours: a, Std: b})
	}
}

func (c *comparer) standard(s *OptionalHeaderStd, magic uint16, major, minor uint8,
	code, initData, uninitData, entry, baseOfCode uint32) {
	if s == nil {
		return
	}
	c.cmp("Magic", s.Magic, magic)
	c.cmp("MajorLinkerVersion", s.MajorLinkerVersion, major)
	c.cmp("MinorLinkerVersion", s.MinorLinkerVersion, minor)
	c.cmp("SizeOfCode", s.SizeOfCode, code)
	c.cmp("SizeOfInitializedData", s.SizeOfInitializedData, initData)
	c.cmp("SizeOfUninitializedData", s.SizeOfUninitializedData, uninitData)
	c.cmp("AddressOfEntryPoint", s.AddressOfEntryPoint, entry)
	c.cmp("BaseOfCode", s.BaseOfCode, baseOfCode)
}

func (c *comparer) windows(w *OptionalHeaderWindows, std OptionalHeaderWindows) {
	if w == nil {
		return
	}
	c.cmp("ImageBase", w.ImageBase, std.ImageBase)
	c.cmp("SectionAlignment", w.SectionAlignment, std.SectionAlignment)
	c.cmp("FileAlignment", w.FileAlignment, std.FileAlignment)
	c.cmp("MajorOperatingSystemVersion", w.MajorOperatingSystemVersion, std.MajorOperatingSystemVersion)
	c.cmp("MinorOperatingSystemVersion", w.MinorOperatingSystemVersion, std.MinorOperatingSystemVersion)
	c.cmp("MajorImageVersion", w.MajorImageVersion, std.MajorImageVersion)
	c.cmp("MinorImageVersion", w.MinorImageVersion, std.MinorImageVersion)
	c.cmp("MajorSubsystemVersion", w.MajorSubsystemVersion, std.MajorSubsystemVersion)
	c.cmp("MinorSubsystemVersion", w.MinorSubsystemVersion, std.MinorSubsystemVersion)
	c.cmp("Win32VersionValue", w.Win32VersionValue, std.Win32VersionValue)
	c.cmp("SizeOfImage", w.SizeOfImage, std.SizeOfImage)
	c.cmp("SizeOfHeaders", w.SizeOfHeaders, std.SizeOfHeaders)
	c.cmp("CheckSum", w.CheckSum, std.CheckSum)
	c.cmp("Subsystem", w.Subsystem, std.Subsystem)
	c.cmp("DllCharacteristics", w.DllCharacteristics, std.DllCharacteristics)
	c.cmp("SizeOfStackReserve", w.SizeOfStackReserve, std.SizeOfStackReserve)
	c.cmp("SizeOfStackCommit", w.SizeOfStackCommit, std.SizeOfStackCommit)
	c.cmp("SizeOfHeapReserve", w.SizeOfHeapReserve, std.SizeOfHeapReserve)
	c.cmp("SizeOfHeapCommit", w.SizeOfHeapCommit, std.SizeOfHeapCommit)
	c.cmp("LoaderFlags", w.LoaderFlags, std.LoaderFlags)
	c.cmp("NumberOfRvaAndSizes", w.NumberOfRvaAndSizes, std.NumberOfRvaAndSizes)
}

// directories compares only the entries debug/pe actually read.
func (c *comparer) directories(d *DataDirectories, std [16]pe.DataDirectory, declared uint32) {
	if d == nil {
		return
	}
	n := int(declared)
	if n > NumDirectories {
		n = NumDirectories
	}
	for i := 0; i < n; i++ {
		c.cmp(DirectoryNames[i]+" RVA", d[i].VirtualAddress, std[i].VirtualAddress)
		c.cmp(DirectoryNames[i]+" size", d[i].Size, std[i].Size)
	}
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	default:
		panic(fmt.Sprintf("toUint64: unsupported type %T", v))
	}
}
