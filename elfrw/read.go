package elfrw

import (
	"bytes"

	"github.com/yalue/elf_reader"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// elf32HeaderSize is the smallest complete ELF header.
const elf32HeaderSize = 52

// Info describes an ELF image well enough to name it in a summary. The
// file is never decoded beyond its header.
type Info struct {
	Is64Bit  bool
	Type     uint16
	Sections uint16
	Segments uint16
}

// IsExecutableOrShared reports ET_EXEC or ET_DYN.
func (i *Info) IsExecutableOrShared() bool {
	return i.Type == 2 || i.Type == 3
}

// Identify returns ELF header facts for data, or ok=false when data is not
// a parseable ELF image.
func Identify(data []byte) (info *Info, ok bool) {
	if len(data) < elf32HeaderSize || !bytes.HasPrefix(data, elfMagic) {
		return nil, false
	}
	elfFile, err := elf_reader.ParseELFFile(data)
	if err != nil {
		return nil, false
	}
	return &Info{
		Is64Bit:  data[4] == 2,
		Type:     uint16(elfFile.GetFileType()),
		Sections: elfFile.GetSectionCount(),
		Segments: elfFile.GetSegmentCount(),
	}, true
}
