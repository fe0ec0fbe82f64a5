package perw

import "time"

// FileHeader is the 20-byte COFF file header that follows the PE signature.
type FileHeader struct {
	Machine              uint16 `struc:"uint16,little"`
	NumberOfSections     uint16 `struc:"uint16,little"`
	TimeDateStamp        uint32 `struc:"uint32,little"`
	PointerToSymbolTable uint32 `struc:"uint32,little"`
	NumberOfSymbols      uint32 `struc:"uint32,little"`
	SizeOfOptionalHeader uint16 `struc:"uint16,little"`
	Characteristics      uint16 `struc:"uint16,little"`
}

// MachineName returns the target machine name or NoMatchingEntry.
func (h *FileHeader) MachineName() string {
	return MachineName(h.Machine)
}

// Timestamp converts TimeDateStamp (seconds since the Unix epoch) to UTC.
func (h *FileHeader) Timestamp() time.Time {
	return time.Unix(int64(h.TimeDateStamp), 0).UTC()
}

func (h *FileHeader) CharacteristicNames() []string {
	return DescribeFlags(FileCharacteristics, h.Characteristics)
}

// OptionalHeaderStd holds the standard fields of the optional header.
// BaseOfData only exists on disk for PE32 images.
type OptionalHeaderStd struct {
	Magic                   uint16
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	BaseOfData              uint32
}

func (s *OptionalHeaderStd) Variant() Variant {
	return Variant(s.Magic)
}

// HasBaseOfData reports whether BaseOfData was read from the image.
func (s *OptionalHeaderStd) HasBaseOfData() bool {
	return s.Variant() == PE32
}

// OptionalHeaderWindows holds the Windows-specific optional header fields.
// ImageBase and the stack/heap sizes are widened to 64 bits for both
// variants; the on-disk widths come from the variant's wire layout.
type OptionalHeaderWindows struct {
	ImageBase                   uint64 `struc:"uint64,little"`
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
	SizeOfStackReserve          uint64 `struc:"uint64,little"`
	SizeOfStackCommit           uint64 `struc:"uint64,little"`
	SizeOfHeapReserve           uint64 `struc:"uint64,little"`
	SizeOfHeapCommit            uint64 `struc:"uint64,little"`
	LoaderFlags                 uint32 `struc:"uint32,little"`
	NumberOfRvaAndSizes         uint32 `struc:"uint32,little"`
}

func (w *OptionalHeaderWindows) SubsystemName() string {
	return SubsystemName(w.Subsystem)
}

func (w *OptionalHeaderWindows) DllCharacteristicNames() []string {
	return DescribeFlags(DLLCharacteristics, w.DllCharacteristics)
}

type DataDirectory struct {
	VirtualAddress uint32 `struc:"uint32,little"`
	Size           uint32 `struc:"uint32,little"`
}

// DataDirectories is the fixed 16-entry directory table, indexed by the
// Dir* constants.
type DataDirectories [NumDirectories]DataDirectory

// Managed reports whether the image carries a CLR runtime header.
func (d *DataDirectories) Managed() bool {
	return d[DirCLRRuntimeHeader].Size > 0
}

// Headers is the result of one decode run. Records after the first
// failing or terminal stage are nil.
type Headers struct {
	SignatureOffset int64
	Offsets         Offsets

	File        *FileHeader
	Standard    *OptionalHeaderStd
	Windows     *OptionalHeaderWindows
	Directories *DataDirectories

	Warnings []string
}

// PureCOFF reports an object file without an optional header.
func (h *Headers) PureCOFF() bool {
	return h.File != nil && h.File.SizeOfOptionalHeader == 0
}

func (h *Headers) Variant() Variant {
	if h.Standard == nil {
		return 0
	}
	return h.Standard.Variant()
}

func (h *Headers) Managed() bool {
	return h.Directories != nil && h.Directories.Managed()
}

// EntryPointVA is ImageBase plus the entry point RVA, or zero when the
// Windows fields were not decoded.
func (h *Headers) EntryPointVA() uint64 {
	if h.Standard == nil || h.Windows == nil {
		return 0
	}
	return h.Windows.ImageBase + uint64(h.Standard.AddressOfEntryPoint)
}
