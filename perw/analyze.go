package perw

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const timeLayout = "Mon Jan _2 15:04:05 2006"

// Dump renders every decoded record of h. Sections that were not decoded
// are skipped; a pure COFF file ends after the file header. A nil h means
// no PE signature was found.
func Dump(w io.Writer, h *Headers) {
	p := &printer{w: w}
	if h == nil {
		p.line("Error: not a PE file")
		return
	}
	if h.File == nil {
		return
	}

	p.printFileHeader(h.File)
	if h.PureCOFF() {
		p.line("COFF file")
		return
	}
	if h.Standard != nil {
		p.printStandard(h)
	}
	if h.Windows != nil {
		p.printWindows(h.Windows)
	}
	if h.Directories != nil {
		p.printDirectories(h.Directories)
	}
	for _, warn := range h.Warnings {
		p.line("Warning: " + warn)
	}
	p.line("")
}

type printer struct {
	w io.Writer
}

func (p *printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

func (p *printer) hex(v uint64, label string) {
	_, _ = fmt.Fprintf(p.w, "%10X %s\n", v, label)
}

func (p *printer) str(v, label string) {
	_, _ = fmt.Fprintf(p.w, "%10s %s\n", v, label)
}

func (p *printer) version(major, minor uint16, label string) {
	p.str(fmt.Sprintf("%d.%02d", major, minor), label)
}

func (p *printer) flags(names []string) {
	for _, n := range names {
		_, _ = fmt.Fprintf(p.w, "             %s\n", n)
	}
}

func (p *printer) printFileHeader(fh *FileHeader) {
	p.line("COFF FILE HEADER")
	p.hex(uint64(fh.Machine), fmt.Sprintf("machine (%s)", fh.MachineName()))
	p.hex(uint64(fh.NumberOfSections), "number of sections")
	p.hex(uint64(fh.TimeDateStamp), "time date stamp: "+fh.Timestamp().Format(timeLayout))
	p.hex(uint64(fh.PointerToSymbolTable), "file pointer to symbol table")
	p.hex(uint64(fh.NumberOfSymbols), "number of symbols")
	p.hex(uint64(fh.SizeOfOptionalHeader), "size of optional header")
	p.hex(uint64(fh.Characteristics), "characteristics")
	p.flags(fh.CharacteristicNames())
}

func (p *printer) printStandard(h *Headers) {
	s := h.Standard
	p.line("")
	p.line("OPTIONAL STANDARD HEADER")
	p.hex(uint64(s.Magic), fmt.Sprintf("magic # (%s)", s.Variant()))
	p.version(uint16(s.MajorLinkerVersion), uint16(s.MinorLinkerVersion), "linker version")
	p.hex(uint64(s.SizeOfCode), "size of code")
	p.hex(uint64(s.SizeOfInitializedData), "size of initialized data")
	p.hex(uint64(s.SizeOfUninitializedData), "size of uninitialized data")
	if h.Windows != nil {
		p.hex(uint64(s.AddressOfEntryPoint), fmt.Sprintf("entry point (%08X)", h.EntryPointVA()))
	} else {
		p.hex(uint64(s.AddressOfEntryPoint), "entry point")
	}
	p.hex(uint64(s.BaseOfCode), "base of code")
	if s.HasBaseOfData() {
		p.hex(uint64(s.BaseOfData), "base of data")
	}
}

func (p *printer) printWindows(w *OptionalHeaderWindows) {
	p.line("")
	p.line("OPTIONAL WINDOWS HEADER")
	p.hex(w.ImageBase, "image base")
	p.hex(uint64(w.SectionAlignment), "section alignment")
	p.hex(uint64(w.FileAlignment), "file alignment")
	p.version(w.MajorOperatingSystemVersion, w.MinorOperatingSystemVersion, "operating system version")
	p.version(w.MajorImageVersion, w.MinorImageVersion, "image version")
	p.version(w.MajorSubsystemVersion, w.MinorSubsystemVersion, "subsystem version")
	p.hex(uint64(w.Win32VersionValue), "Win32 version")
	p.hex(uint64(w.SizeOfImage), "size of image")
	p.hex(uint64(w.SizeOfHeaders), "size of headers")
	p.hex(uint64(w.CheckSum), "checksum")
	p.hex(uint64(w.Subsystem), "subsystem ("+w.SubsystemName()+")")
	p.hex(uint64(w.DllCharacteristics), "DLL characteristics")
	p.flags(w.DllCharacteristicNames())
	p.hex(w.SizeOfStackReserve, "size of stack reserve")
	p.hex(w.SizeOfStackCommit, "size of stack commit")
	p.hex(w.SizeOfHeapReserve, "size of heap reserve")
	p.hex(w.SizeOfHeapCommit, "size of heap commit")
	p.hex(uint64(w.LoaderFlags), "loader flags")
	p.hex(uint64(w.NumberOfRvaAndSizes), "number of directories")
}

func (p *printer) printDirectories(d *DataDirectories) {
	p.line("")
	p.line("OPTIONAL DATA DIRECTORIES")
	for i, dir := range d {
		_, _ = fmt.Fprintf(p.w, "%10X [%8X] RVA [size] of %s\n", dir.VirtualAddress, dir.Size, DirectoryNames[i])
	}
}

// Summary classifies one input file.
type Summary struct {
	Archive bool
	PE      bool
	COFF    bool
	Managed bool
	ELF     bool
}

// Summarize derives the summary flags from a decode result. PE is set as
// soon as the signature matched. ELF is left to the caller.
func Summarize(h *Headers, err error) Summary {
	s := Summary{Archive: errors.Is(err, ErrArchive)}
	if h != nil {
		s.PE = true
		s.COFF = h.PureCOFF()
		s.Managed = h.Managed()
	}
	return s
}

func WriteSummary(w io.Writer, s Summary) {
	var b strings.Builder
	b.WriteString("SUMMARY\n")
	fmt.Fprintf(&b, "Archive: %s\n", yesNo(s.Archive))
	fmt.Fprintf(&b, "PE: %s\n", yesNo(s.PE))
	fmt.Fprintf(&b, "COFF: %s\n", yesNo(s.COFF))
	fmt.Fprintf(&b, "Managed: %s\n", yesNo(s.Managed))
	if s.ELF {
		b.WriteString("ELF: TRUE\n")
	}
	_, _ = io.WriteString(w, b.String())
}

func yesNo(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
