package container

import (
	"fmt"

	"github.com/xyproto/gbilc/internal/compilerr"
)

// tableStreamHeader is the header of the "#~" (or, for uncompressed/EnC
// images, "#-") table stream: ECMA-335 §II.24.2.6.
type tableStreamHeader struct {
	HeapSizes byte // bit0: #Strings is 4-byte; bit1: #GUID; bit2: #Blob
	Valid     uint64
	Sorted    uint64
	RowCounts map[Table]uint32
}

func (h *tableStreamHeader) stringIndexSize() uint32 {
	if h.HeapSizes&0x01 != 0 {
		return 4
	}
	return 2
}

func (h *tableStreamHeader) guidIndexSize() uint32 {
	if h.HeapSizes&0x02 != 0 {
		return 4
	}
	return 2
}

func (h *tableStreamHeader) blobIndexSize() uint32 {
	if h.HeapSizes&0x04 != 0 {
		return 4
	}
	return 2
}

// simpleIndexSize returns the on-disk width of an index into a single
// table: 2 bytes unless that table's row count cannot fit in 16 bits.
func (h *tableStreamHeader) simpleIndexSize(t Table) uint32 {
	if h.RowCounts[t] > 0xffff {
		return 4
	}
	return 2
}

// codedIndexSize implements the sizing rule of ECMA-335 §II.24.2.6: a
// coded index is 2 bytes if the largest row count among its target tables
// fits in the bits remaining after the tag, else 4 bytes.
func (h *tableStreamHeader) codedIndexSize(k codedKind) uint32 {
	limit := uint32(1) << (16 - k.TagBits)
	var maxRows uint32
	for _, t := range k.Targets {
		if c := h.RowCounts[t]; c > maxRows {
			maxRows = c
		}
	}
	if maxRows >= limit {
		return 4
	}
	return 2
}

// columnSize returns the on-disk width of one column.
func (h *tableStreamHeader) columnSize(c column) uint32 {
	switch c.Kind {
	case colFixed2:
		return 2
	case colFixed4:
		return 4
	case colHeapString:
		return h.stringIndexSize()
	case colHeapGUID:
		return h.guidIndexSize()
	case colHeapBlob:
		return h.blobIndexSize()
	case colSimple:
		return h.simpleIndexSize(c.Target)
	case colCoded:
		return h.codedIndexSize(c.Coded)
	default:
		return 0
	}
}

// rowSize returns the total byte width of one row of table t.
func (h *tableStreamHeader) rowSize(t Table) (uint32, error) {
	cols, ok := rowLayout[t]
	if !ok {
		return 0, fmt.Errorf("table index 0x%x has no known row layout", t)
	}
	var n uint32
	for _, c := range cols {
		n += h.columnSize(c)
	}
	return n, nil
}

// metadataStreams groups the raw bytes of the heaps this reader uses.
type metadataStreams struct {
	strings   []byte
	us        []byte
	guid      []byte
	blob      []byte
	tableData []byte
	tableHdr  tableStreamHeader
}

// parseCLRMetadata locates the CLR/COR20 header via the PE's COM
// descriptor data directory, then the metadata root and its stream
// headers, then the "#~"/"#-" table stream header and per-table row
// counts.
func parseCLRMetadata(data []byte, pe *peImage) (*metadataStreams, error) {
	loc := compilerr.Location{}
	cor20Off, err := pe.rvaToOffset(pe.comDescriptor.VirtualAddress)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "cannot resolve CLR header: %v", err)
	}
	mdRVA, err := u32(data, int(cor20Off)+8)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated CLR header")
	}
	mdOff, err := pe.rvaToOffset(mdRVA)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "cannot resolve metadata root: %v", err)
	}

	sig, err := u32(data, int(mdOff))
	if err != nil || sig != 0x424a5342 { // "BSJB"
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "missing BSJB metadata root signature")
	}
	verLen, err := u32(data, int(mdOff)+12)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated metadata root")
	}
	// version string runs from mdOff+16, padded to a 4-byte boundary.
	padded := (verLen + 3) &^ 3
	afterVersion := int(mdOff) + 16 + int(padded)
	streamCount, err := u16(data, afterVersion+2)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated metadata root")
	}

	streams := &metadataStreams{}
	cursor := afterVersion + 4
	var tableStreamOff, tableStreamSize uint32
	for i := 0; i < int(streamCount); i++ {
		off, err1 := u32(data, cursor)
		size, err2 := u32(data, cursor+4)
		if err1 != nil || err2 != nil {
			return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated stream header")
		}
		nameStart := cursor + 8
		name, nameLen, err := readPaddedName(data, nameStart)
		if err != nil {
			return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "truncated stream name")
		}
		absOff := int(mdOff) + int(off)
		if absOff < 0 || absOff+int(size) > len(data) {
			return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "stream %q out of range", name)
		}
		streamBytes := data[absOff : absOff+int(size)]
		switch name {
		case "#Strings":
			streams.strings = streamBytes
		case "#US":
			streams.us = streamBytes
		case "#GUID":
			streams.guid = streamBytes
		case "#Blob":
			streams.blob = streamBytes
		case "#~", "#-":
			tableStreamOff, tableStreamSize = uint32(absOff), size
		}
		cursor = nameStart + nameLen
	}

	if tableStreamSize == 0 {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "missing #~ table stream")
	}
	tableData := data[tableStreamOff : tableStreamOff+tableStreamSize]
	hdr, body, err := parseTableStreamHeader(tableData)
	if err != nil {
		return nil, compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, loc, "malformed table stream header: %v", err)
	}
	streams.tableHdr = *hdr
	streams.tableData = body
	return streams, nil
}

// readPaddedName reads a NUL-terminated stream name padded to a 4-byte
// boundary, returning the name and the total padded byte length
// (including the terminator and padding) consumed.
func readPaddedName(data []byte, off int) (string, int, error) {
	end := off
	for {
		if end >= len(data) {
			return "", 0, fmt.Errorf("unterminated stream name")
		}
		if data[end] == 0 {
			break
		}
		end++
	}
	name := string(data[off:end])
	total := end - off + 1
	total = (total + 3) &^ 3
	return name, total, nil
}

// parseTableStreamHeader parses the fixed header of "#~"/"#-" and returns
// the remaining bytes (the per-table row counts followed by row data).
func parseTableStreamHeader(data []byte) (*tableStreamHeader, []byte, error) {
	if len(data) < 24 {
		return nil, nil, fmt.Errorf("table stream too small")
	}
	heapSizes := data[6]
	valid, err := readU64LE(data, 8)
	if err != nil {
		return nil, nil, err
	}
	sorted, err := readU64LE(data, 16)
	if err != nil {
		return nil, nil, err
	}
	hdr := &tableStreamHeader{
		HeapSizes: heapSizes,
		Valid:     valid,
		Sorted:    sorted,
		RowCounts: make(map[Table]uint32),
	}
	cursor := 24
	for i := 0; i <= maxTableIndex; i++ {
		if valid&(uint64(1)<<uint(i)) == 0 {
			continue
		}
		count, err := u32(data, cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("truncated row count for table 0x%x", i)
		}
		hdr.RowCounts[Table(i)] = count
		cursor += 4
	}
	return hdr, data[cursor:], nil
}

func readU64LE(data []byte, off int) (uint64, error) {
	lo, err := u32(data, off)
	if err != nil {
		return 0, err
	}
	hi, err := u32(data, off+4)
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

// stringAt reads a NUL-terminated UTF-8 string from the #Strings heap.
func (s *metadataStreams) stringAt(idx uint32) string {
	if s.strings == nil || int(idx) >= len(s.strings) {
		return ""
	}
	end := int(idx)
	for end < len(s.strings) && s.strings[end] != 0 {
		end++
	}
	return string(s.strings[idx:end])
}

// blobAt reads a length-prefixed entry from the #Blob heap, returning
// just the data bytes (the compressed length prefix is not included).
func (s *metadataStreams) blobAt(idx uint32) []byte {
	if s.blob == nil || int(idx) >= len(s.blob) {
		return nil
	}
	length, prefixLen, err := readBlobLength(s.blob, int(idx))
	if err != nil {
		return nil
	}
	start := int(idx) + prefixLen
	if start+length > len(s.blob) {
		return nil
	}
	return s.blob[start : start+length]
}
