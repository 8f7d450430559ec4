package container

// MethodDefRow is a decoded row of the MethodDef table: name, RVA, and
// flags, exactly the shape §4.1 of SPEC_FULL.md names as consumer-visible.
type MethodDefRow struct {
	RVA        uint32
	ImplFlags  uint16
	Flags      uint16
	Name       string
	FirstParam uint32

	nameIdx uint32
}

// decodeMethodDefRow decodes one MethodDef row starting at off, returning
// the row and the number of bytes consumed.
func decodeMethodDefRow(data []byte, off int, hdr *tableStreamHeader) (MethodDefRow, int, error) {
	var row MethodDefRow
	cursor := off

	rva, err := u32(data, cursor)
	if err != nil {
		return row, 0, err
	}
	row.RVA = rva
	cursor += 4

	implFlags, err := u16(data, cursor)
	if err != nil {
		return row, 0, err
	}
	row.ImplFlags = implFlags
	cursor += 2

	flags, err := u16(data, cursor)
	if err != nil {
		return row, 0, err
	}
	row.Flags = flags
	cursor += 2

	nameW := hdr.stringIndexSize()
	nameIdx, err := readIndex(data, cursor, nameW)
	if err != nil {
		return row, 0, err
	}
	cursor += int(nameW)
	row.nameIdx = nameIdx

	if _, err := readIndex(data, cursor, hdr.blobIndexSize()); err != nil {
		return row, 0, err
	}
	cursor += int(hdr.blobIndexSize())

	paramW := hdr.simpleIndexSize(Param)
	paramIdx, err := readIndex(data, cursor, paramW)
	if err != nil {
		return row, 0, err
	}
	cursor += int(paramW)
	row.FirstParam = paramIdx

	return row, cursor - off, nil
}
