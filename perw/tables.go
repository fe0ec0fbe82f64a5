package perw

import "debug/pe"

const (
	// NoMatchingEntry is returned for machine types missing from the table.
	NoMatchingEntry = "No matching entry"
	// UnregisteredSubsystem is returned for unknown subsystem values.
	UnregisteredSubsystem = "Unregistered value"
)

var machineNames = map[uint16]string{
	pe.IMAGE_FILE_MACHINE_UNKNOWN:   "UNKNOWN",
	pe.IMAGE_FILE_MACHINE_AM33:      "AM33",
	pe.IMAGE_FILE_MACHINE_AMD64:     "AMD64",
	pe.IMAGE_FILE_MACHINE_ARM:       "ARM",
	pe.IMAGE_FILE_MACHINE_ARMNT:     "ARMNT",
	pe.IMAGE_FILE_MACHINE_ARM64:     "ARM64",
	pe.IMAGE_FILE_MACHINE_EBC:       "EBC",
	pe.IMAGE_FILE_MACHINE_I386:      "I386",
	pe.IMAGE_FILE_MACHINE_IA64:      "IA64",
	pe.IMAGE_FILE_MACHINE_M32R:      "M32R",
	pe.IMAGE_FILE_MACHINE_MIPS16:    "MIPS16",
	pe.IMAGE_FILE_MACHINE_MIPSFPU:   "MIPSFPU",
	pe.IMAGE_FILE_MACHINE_MIPSFPU16: "MIPSFPU16",
	pe.IMAGE_FILE_MACHINE_POWERPC:   "POWERPC",
	pe.IMAGE_FILE_MACHINE_POWERPCFP: "POWERPCFP",
	pe.IMAGE_FILE_MACHINE_R4000:     "R4000",
	pe.IMAGE_FILE_MACHINE_SH3:       "SH3",
	pe.IMAGE_FILE_MACHINE_SH3DSP:    "SH3DSP",
	pe.IMAGE_FILE_MACHINE_SH4:       "SH4",
	pe.IMAGE_FILE_MACHINE_SH5:       "SH5",
	pe.IMAGE_FILE_MACHINE_THUMB:     "THUMB",
	pe.IMAGE_FILE_MACHINE_WCEMIPSV2: "WCEMIPSV2",
}

// MachineName maps a COFF machine value to its name.
func MachineName(machine uint16) string {
	if name, ok := machineNames[machine]; ok {
		return name
	}
	return NoMatchingEntry
}

// MachineTypes returns every machine value with a table entry.
func MachineTypes() []uint16 {
	codes := make([]uint16, 0, len(machineNames))
	for code := range machineNames {
		codes = append(codes, code)
	}
	return codes
}

// Flag is one bit of a characteristics bitfield.
type Flag struct {
	Mask        uint16
	Description string
}

// FileCharacteristics covers all 16 bits of the COFF characteristics field,
// in ascending bit order.
var FileCharacteristics = []Flag{
	{pe.IMAGE_FILE_RELOCS_STRIPPED, "Relocations stripped"},
	{pe.IMAGE_FILE_EXECUTABLE_IMAGE, "Executable"},
	{pe.IMAGE_FILE_LINE_NUMS_STRIPPED, "Line numbers stripped"},
	{pe.IMAGE_FILE_LOCAL_SYMS_STRIPPED, "Symbols stripped"},
	{pe.IMAGE_FILE_AGGRESIVE_WS_TRIM, "AGGRESSIVE_WS_TRIM"},
	{pe.IMAGE_FILE_LARGE_ADDRESS_AWARE, "Application can handle large (>2GB) addresses"},
	{0x0040, "Reserved for future use"},
	{pe.IMAGE_FILE_BYTES_REVERSED_LO, "BYTES_REVERSED_LO"},
	{pe.IMAGE_FILE_32BIT_MACHINE, "32 bit word machine"},
	{pe.IMAGE_FILE_DEBUG_STRIPPED, "DEBUG_STRIPPED"},
	{pe.IMAGE_FILE_REMOVABLE_RUN_FROM_SWAP, "REMOVABLE_RUN_FROM_SWAP"},
	{pe.IMAGE_FILE_NET_RUN_FROM_SWAP, "NET_RUN_FROM_SWAP"},
	{pe.IMAGE_FILE_SYSTEM, "SYSTEM"},
	{pe.IMAGE_FILE_DLL, "DLL"},
	{pe.IMAGE_FILE_UP_SYSTEM_ONLY, "UP_SYSTEM_ONLY"},
	{pe.IMAGE_FILE_BYTES_REVERSED_HI, "BYTES_REVERSED_HI"},
}

// DLLCharacteristics includes the reserved bits so that malformed images
// still show them.
var DLLCharacteristics = []Flag{
	{0x0001, "Reserved, must be zero (0x01)"},
	{0x0002, "Reserved, must be zero (0x02)"},
	{0x0004, "Reserved, must be zero (0x04)"},
	{0x0008, "Reserved, must be zero (0x08)"},
	{0x0010, "Reserved, must be zero (0x10)"},
	{pe.IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA, "High entropy virtual addresses"},
	{pe.IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE, "Dynamic base"},
	{pe.IMAGE_DLLCHARACTERISTICS_FORCE_INTEGRITY, "Code integrity checks are enforced"},
	{pe.IMAGE_DLLCHARACTERISTICS_NX_COMPAT, "NX compatible"},
	{pe.IMAGE_DLLCHARACTERISTICS_NO_ISOLATION, "Isolation aware, but do not isolate the image"},
	{pe.IMAGE_DLLCHARACTERISTICS_NO_SEH, "No structured exception handler"},
	{pe.IMAGE_DLLCHARACTERISTICS_NO_BIND, "Do not bind the image"},
	{pe.IMAGE_DLLCHARACTERISTICS_APPCONTAINER, "Reserved, must be zero (0x1000)"},
	{pe.IMAGE_DLLCHARACTERISTICS_WDM_DRIVER, "A WDM driver"},
	{pe.IMAGE_DLLCHARACTERISTICS_GUARD_CF, "Control Flow Guard"},
	{pe.IMAGE_DLLCHARACTERISTICS_TERMINAL_SERVER_AWARE, "Terminal Server Aware"},
}

// DescribeFlags returns the description of every table entry whose mask is
// set in value, in table order.
func DescribeFlags(table []Flag, value uint16) []string {
	var out []string
	for _, f := range table {
		if value&f.Mask != 0 {
			out = append(out, f.Description)
		}
	}
	return out
}

var subsystemNames = map[uint16]string{
	pe.IMAGE_SUBSYSTEM_UNKNOWN:                  "An unknown subsystem",
	pe.IMAGE_SUBSYSTEM_NATIVE:                   "Device drivers and native Windows processes",
	pe.IMAGE_SUBSYSTEM_WINDOWS_GUI:              "The Windows graphical user interface (GUI) subsystem",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CUI:              "Windows CUI",
	pe.IMAGE_SUBSYSTEM_POSIX_CUI:                "The Posix character subsystem",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           "Windows CE",
	pe.IMAGE_SUBSYSTEM_EFI_APPLICATION:          "An Extensible Firmware Interface (EFI) application",
	pe.IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  "An EFI driver with boot services",
	pe.IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       "An EFI driver with run-time services",
	pe.IMAGE_SUBSYSTEM_EFI_ROM:                  "An EFI ROM image",
	pe.IMAGE_SUBSYSTEM_XBOX:                     "XBOX",
	pe.IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: "Windows boot application",
}

func SubsystemName(subsystem uint16) string {
	if name, ok := subsystemNames[subsystem]; ok {
		return name
	}
	return UnregisteredSubsystem
}

// Data directory indexes.
const (
	DirExport = iota
	DirImport
	DirResource
	DirException
	DirCertificate
	DirBaseRelocation
	DirDebug
	DirArchitecture
	DirGlobalPtr
	DirTLS
	DirLoadConfig
	DirBoundImport
	DirIAT
	DirDelayImportDescriptor
	DirCLRRuntimeHeader
	DirReserved
)

// DirectoryNames are the display names of the 16 directories, by index.
var DirectoryNames = [NumDirectories]string{
	DirExport:                "Export Directory",
	DirImport:                "Import Directory",
	DirResource:              "Resource Directory",
	DirException:             "Exception Directory",
	DirCertificate:           "Certificates Directory",
	DirBaseRelocation:        "Base Relocation Directory",
	DirDebug:                 "Debug Directory",
	DirArchitecture:          "Architecture Directory",
	DirGlobalPtr:             "Global Pointer Directory",
	DirTLS:                   "Thread Storage Directory",
	DirLoadConfig:            "Load Configuration Directory",
	DirBoundImport:           "Bound Import Directory",
	DirIAT:                   "Import Address Table Directory",
	DirDelayImportDescriptor: "Delay Import Directory",
	DirCLRRuntimeHeader:      "COM Descriptor Directory",
	DirReserved:              "Reserved Directory",
}
