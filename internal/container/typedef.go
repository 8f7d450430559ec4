package container

// TypeDefRow is a decoded row of the TypeDef table (§4.1 of SPEC_FULL.md):
// namespace and name, the classification/visibility flags, and the first
// Field/MethodDef row belonging to this type (used to bound its method
// list against the next TypeDef row's FieldList/MethodList, per ECMA-335's
// "runs until the next row's index" convention).
type TypeDefRow struct {
	Flags       uint32
	Name        string
	Namespace   string
	FirstField  uint32
	FirstMethod uint32

	nameIdx, nsIdx uint32
}

// readIndex reads a single/coded index column of the given width (2 or
// 4 bytes) at off, returning its raw value.
func readIndex(data []byte, off int, width uint32) (uint32, error) {
	if width == 2 {
		v, err := u16(data, off)
		return uint32(v), err
	}
	return u32(data, off)
}

// decodeTypeDefRow decodes one TypeDef row starting at off, given the
// table stream header needed to size its variable-width columns. It
// returns the row and the number of bytes consumed.
func decodeTypeDefRow(data []byte, off int, hdr *tableStreamHeader) (TypeDefRow, int, error) {
	var row TypeDefRow
	cursor := off

	flags, err := u32(data, cursor)
	if err != nil {
		return row, 0, err
	}
	row.Flags = flags
	cursor += 4

	nameW := hdr.stringIndexSize()
	nameIdx, err := readIndex(data, cursor, nameW)
	if err != nil {
		return row, 0, err
	}
	cursor += int(nameW)

	nsW := hdr.stringIndexSize()
	nsIdx, err := readIndex(data, cursor, nsW)
	if err != nil {
		return row, 0, err
	}
	cursor += int(nsW)

	extendsW := hdr.codedIndexSize(typeDefOrRef)
	if _, err := readIndex(data, cursor, extendsW); err != nil {
		return row, 0, err
	}
	cursor += int(extendsW)

	fieldW := hdr.simpleIndexSize(Field)
	fieldIdx, err := readIndex(data, cursor, fieldW)
	if err != nil {
		return row, 0, err
	}
	cursor += int(fieldW)

	methodW := hdr.simpleIndexSize(MethodDef)
	methodIdx, err := readIndex(data, cursor, methodW)
	if err != nil {
		return row, 0, err
	}
	cursor += int(methodW)

	row.FirstField = fieldIdx
	row.FirstMethod = methodIdx
	row.nameIdx, row.nsIdx = nameIdx, nsIdx
	return row, cursor - off, nil
}
