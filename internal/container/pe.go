package container

import (
	"encoding/binary"
	"fmt"

	"github.com/xyproto/gbilc/internal/compilerr"
)

// dosHeader is the MS-DOS stub header every PE image begins with.
type dosHeader struct {
	Magic    uint16 // "MZ"
	PEOffset uint32 // offset of the PE signature, at byte 0x3c
}

// coffHeader is the COFF file header immediately following the PE
// signature.
type coffHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// dataDirectory is one entry of the optional header's data directory
// array. Index 14 (comDescriptor) locates the CLI/COR20 header for a
// managed image.
type dataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

const comDescriptorDirectory = 14

// sectionHeader is one row of the section table, used to translate RVAs
// (virtual addresses) into file offsets.
type sectionHeader struct {
	Name             [8]byte
	VirtualSize      uint32
	VirtualAddress   uint32
	SizeOfRawData    uint32
	PointerToRawData uint32
}

// peImage holds just enough of a parsed PE container to find the CLR
// header: the section table (for RVA resolution) and the COM descriptor
// data directory.
type peImage struct {
	sections      []sectionHeader
	comDescriptor dataDirectory
}

func u16(b []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(b) {
		return 0, fmt.Errorf("read past end of file at offset 0x%x", off)
	}
	return binary.LittleEndian.Uint16(b[off:]), nil
}

func u32(b []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(b) {
		return 0, fmt.Errorf("read past end of file at offset 0x%x", off)
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

// parsePE walks the DOS header, PE signature, COFF header, optional
// header, and section table of data, returning enough state to resolve
// RVAs and find the CLR data directory.
func parsePE(data []byte) (*peImage, error) {
	loc := compilerr.Location{}
	if len(data) < 0x40 {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "file too small to contain a DOS header")
	}
	var dos dosHeader
	magic, err := u16(data, 0)
	if err != nil || magic != 0x5a4d { // "MZ"
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "missing MZ signature")
	}
	dos.Magic = magic
	peOff, err := u32(data, 0x3c)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated DOS header")
	}
	dos.PEOffset = peOff

	if int(dos.PEOffset)+4 > len(data) {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "PE header offset out of range")
	}
	sig, err := u32(data, int(dos.PEOffset))
	if err != nil || sig != 0x00004550 { // "PE\0\0"
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "missing PE signature")
	}

	coffOff := int(dos.PEOffset) + 4
	var coff coffHeader
	if v, err := u16(data, coffOff); err == nil {
		coff.Machine = v
	} else {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated COFF header")
	}
	coff.NumberOfSections, _ = u16(data, coffOff+2)
	coff.SizeOfOptionalHeader, _ = u16(data, coffOff+16)

	optOff := coffOff + 20
	if int(coff.SizeOfOptionalHeader) < 2 || optOff+int(coff.SizeOfOptionalHeader) > len(data) {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated optional header")
	}
	optMagic, _ := u16(data, optOff)

	var numDirs int
	var dirArrayOff int
	switch optMagic {
	case 0x10b: // PE32
		numDirs32, _ := u32(data, optOff+92)
		numDirs = int(numDirs32)
		dirArrayOff = optOff + 96
	case 0x20b: // PE32+
		numDirs32, _ := u32(data, optOff+108)
		numDirs = int(numDirs32)
		dirArrayOff = optOff + 112
	default:
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "unrecognized optional header magic 0x%x", optMagic)
	}

	if numDirs <= comDescriptorDirectory {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "no CLR data directory present: not a managed assembly")
	}
	dirOff := dirArrayOff + comDescriptorDirectory*8
	rva, err1 := u32(data, dirOff)
	size, err2 := u32(data, dirOff+4)
	if err1 != nil || err2 != nil || rva == 0 || size == 0 {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "no CLR data directory present: not a managed assembly")
	}

	sectionOff := optOff + int(coff.SizeOfOptionalHeader)
	sections := make([]sectionHeader, 0, coff.NumberOfSections)
	for i := 0; i < int(coff.NumberOfSections); i++ {
		base := sectionOff + i*40
		if base+40 > len(data) {
			return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated section table")
		}
		var sh sectionHeader
		copy(sh.Name[:], data[base:base+8])
		sh.VirtualSize, _ = u32(data, base+8)
		sh.VirtualAddress, _ = u32(data, base+12)
		sh.SizeOfRawData, _ = u32(data, base+16)
		sh.PointerToRawData, _ = u32(data, base+20)
		sections = append(sections, sh)
	}

	return &peImage{
		sections:      sections,
		comDescriptor: dataDirectory{VirtualAddress: rva, Size: size},
	}, nil
}

// rvaToOffset resolves an RVA to a file offset by finding the section
// whose virtual-address range contains it.
func (p *peImage) rvaToOffset(rva uint32) (uint32, error) {
	for _, s := range p.sections {
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+s.VirtualSize {
			return rva - s.VirtualAddress + s.PointerToRawData, nil
		}
	}
	return 0, fmt.Errorf("rva 0x%x not contained in any section", rva)
}
