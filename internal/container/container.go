// Package container implements Component A of the compiler: it opens a
// managed-bytecode assembly (a PE-shaped binary with CLI/.NET metadata),
// and exposes the TypeDef and MethodDef rows plus method-body resolution
// that every later phase consumes. See SPEC_FULL.md §4.1.
package container

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/edsrzf/mmap-go"

	"github.com/xyproto/gbilc/internal/compilerr"
)

// Container is a handle on an opened, parsed assembly. It owns the
// memory-mapped file for its lifetime; Close unmaps it.
type Container struct {
	f    *os.File
	data mmap.MMap

	pe      *peImage
	streams *metadataStreams

	types   []TypeDefRow
	methods []MethodDefRow
	fields  []FieldDefRow
}

// Open memory-maps path and parses its PE headers and CLI metadata. It
// fails with a compilerr.KindInvalidContainer error if the file is not a
// well-formed managed-bytecode binary.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, compilerr.Location{}, "cannot open %q: %v", path, err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, compilerr.Location{}, "cannot map %q: %v", path, err)
	}

	c := &Container{f: f, data: []byte(m)}
	pe, err := parsePE(c.data)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.pe = pe

	streams, err := parseCLRMetadata(c.data, pe)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.streams = streams

	if err := c.walkTables(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// Close releases the memory-mapped input file.
func (c *Container) Close() error {
	var err error
	if c.data != nil {
		err = c.data.Unmap()
	}
	if c.f != nil {
		if cerr := c.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// walkTables decodes TypeDef/Field/MethodDef and skips every other
// present table (Module included), in ascending table-index order, per SPEC_FULL.md
// §4.1 and §11 (field layout).
func (c *Container) walkTables() error {
	hdr := &c.streams.tableHdr
	data := c.streams.tableData
	cursor := 0

	for i := 0; i <= maxTableIndex; i++ {
		t := Table(i)
		count, present := hdr.RowCounts[t]
		if !present {
			continue
		}

		switch t {
		case TypeDef:
			for r := uint32(0); r < count; r++ {
				row, n, err := decodeTypeDefRow(data, cursor, hdr)
				if err != nil {
					return compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, compilerr.Location{}, "malformed TypeDef row %d: %v", r, err)
				}
				row.Name = c.streams.stringAt(row.nameIdx)
				row.Namespace = c.streams.stringAt(row.nsIdx)
				c.types = append(c.types, row)
				cursor += n
			}
		case MethodDef:
			for r := uint32(0); r < count; r++ {
				row, n, err := decodeMethodDefRow(data, cursor, hdr)
				if err != nil {
					return compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, compilerr.Location{}, "malformed MethodDef row %d: %v", r, err)
				}
				row.Name = c.streams.stringAt(row.nameIdx)
				c.methods = append(c.methods, row)
				cursor += n
			}
		case Field:
			for r := uint32(0); r < count; r++ {
				row, n, err := decodeFieldDefRow(data, cursor, hdr)
				if err != nil {
					return fieldDecodeError(r, err)
				}
				row.Name = c.streams.stringAt(row.nameIdx)
				row.Signature = c.streams.blobAt(row.sigIdx)
				c.fields = append(c.fields, row)
				cursor += n
			}
		default:
			width, err := hdr.rowSize(t)
			if err != nil {
				return compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, compilerr.Location{}, "%v", err)
			}
			cursor += int(width) * int(count)
		}
	}
	return nil
}

// Types returns every decoded TypeDef row. Rows whose name begins with
// '<' (compiler-generated, e.g. "<Module>") are NOT filtered here — per
// SPEC_FULL.md §4.1, that is the downstream consumer's responsibility.
func (c *Container) Types() []TypeDefRow {
	return c.types
}

// Methods returns every decoded MethodDef row.
func (c *Container) Methods() []MethodDefRow {
	return c.methods
}

// TypeByName looks up a TypeDef row by its simple (non-namespace-
// qualified) name. Supplements SPEC_FULL.md §11 ("type-by-name lookup").
func (c *Container) TypeByName(name string) (TypeDefRow, bool) {
	for _, t := range c.types {
		if t.Name == name {
			return t, true
		}
	}
	return TypeDefRow{}, false
}

// MethodBody resolves a MethodDef row's RVA to a file offset, decodes the
// tiny/fat method-body header, and returns exactly code_size bytes of IL.
// Methods without an RVA (abstract/interface methods) return (nil, nil):
// SPEC_FULL.md §4.1 treats this as the "none, no error" case.
func (c *Container) MethodBody(m MethodDefRow) ([]byte, error) {
	if m.RVA == 0 {
		return nil, nil
	}
	off, err := c.pe.rvaToOffset(m.RVA)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindMalformedMethodBody, compilerr.Location{Method: m.Name}, "cannot resolve method RVA: %v", err)
	}
	if int(off) >= len(c.data) {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindMalformedMethodBody, compilerr.Location{Method: m.Name}, "method body offset out of range")
	}

	header := c.data[off]
	var codeSize uint32
	var ilStart int
	switch header & 0x03 {
	case 0x02: // tiny
		codeSize = uint32(header >> 2)
		ilStart = int(off) + 1
	case 0x03: // fat
		if int(off)+12 > len(c.data) {
			return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindMalformedMethodBody, compilerr.Location{Method: m.Name}, "truncated fat method header")
		}
		codeSize = binary.LittleEndian.Uint32(c.data[off+4 : off+8])
		ilStart = int(off) + 12
	default:
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindMalformedMethodBody, compilerr.Location{Method: m.Name}, "method header has neither tiny nor fat flag bits (got 0x%02x)", header&0x03)
	}

	if ilStart+int(codeSize) > len(c.data) {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindMalformedMethodBody, compilerr.Location{Method: m.Name}, "declared code size %d exceeds available bytes", codeSize)
	}
	return c.data[ilStart : ilStart+int(codeSize)], nil
}

// readBlobLength reads an ECMA-335 §II.23.2 compressed unsigned integer
// (used as a length prefix in the #Blob and #US heaps) at off, returning
// the decoded length and the number of prefix bytes consumed.
func readBlobLength(data []byte, off int) (int, int, error) {
	if off >= len(data) {
		return 0, 0, fmt.Errorf("blob length out of range")
	}
	b0 := data[off]
	switch {
	case b0&0x80 == 0:
		return int(b0), 1, nil
	case b0&0xc0 == 0x80:
		if off+1 >= len(data) {
			return 0, 0, fmt.Errorf("truncated blob length")
		}
		return int(b0&0x3f)<<8 | int(data[off+1]), 2, nil
	case b0&0xe0 == 0xc0:
		if off+3 >= len(data) {
			return 0, 0, fmt.Errorf("truncated blob length")
		}
		return int(b0&0x1f)<<24 | int(data[off+1])<<16 | int(data[off+2])<<8 | int(data[off+3]), 4, nil
	default:
		return 0, 0, fmt.Errorf("invalid blob length prefix 0x%02x", b0)
	}
}

// UserString decodes a #US heap entry given its metadata token
// (0x70xxxxxx). Supplements SPEC_FULL.md §11: the heap is read even though
// ldstr lowering itself still emits a no-op, so a future lowering pass can
// use this without touching the container reader again.
func (c *Container) UserString(token uint32) (string, bool) {
	if token>>24 != 0x70 {
		return "", false
	}
	idx := int(token & 0x00ffffff)
	if c.streams.us == nil || idx >= len(c.streams.us) {
		return "", false
	}
	length, prefixLen, err := readBlobLength(c.streams.us, idx)
	if err != nil || length == 0 {
		return "", false
	}
	start := idx + prefixLen
	// the final byte is a "contains special characters" flag, not data.
	strLen := length - 1
	if strLen < 0 || start+strLen > len(c.streams.us) {
		return "", false
	}
	raw := c.streams.us[start : start+strLen]
	units := make([]uint16, strLen/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units)), true
}

// IsCompilerGenerated reports whether a TypeDef name should be filtered
// by downstream consumers per SPEC_FULL.md §4.1 ("<Module>" and similar).
func IsCompilerGenerated(name string) bool {
	return strings.HasPrefix(name, "<")
}
