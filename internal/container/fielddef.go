package container

import "github.com/xyproto/gbilc/internal/compilerr"

// FieldDefRow is a decoded row of the Field table: flags, name, and the
// raw field signature blob. FieldTypeName decodes the signature into the
// fully-qualified type name typeresolve needs.
type FieldDefRow struct {
	Flags     uint16
	Name      string
	Signature []byte

	nameIdx uint32
	sigIdx  uint32
}

// fieldLiteral is FieldAttributes.Literal (ECMA-335 §II.23.1.5): a
// compile-time constant baked into callers, not instance storage.
// Matches spec.md §4.3's "constant-valued fields are skipped".
const fieldLiteral = 0x0040

// IsConstant reports whether f is a compile-time literal rather than
// instance storage.
func (f FieldDefRow) IsConstant() bool {
	return f.Flags&fieldLiteral != 0
}

func decodeFieldDefRow(data []byte, off int, hdr *tableStreamHeader) (FieldDefRow, int, error) {
	var row FieldDefRow
	cursor := off

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

	sigW := hdr.blobIndexSize()
	sigIdx, err := readIndex(data, cursor, sigW)
	if err != nil {
		return row, 0, err
	}
	cursor += int(sigW)
	row.sigIdx = sigIdx

	return row, cursor - off, nil
}

// elementTypePrimitives maps the single-byte ECMA-335 §II.23.1.16
// ELEMENT_TYPE codes this target's primitive set covers to their
// fully-qualified names, Single and Double included. Other codes
// (I8/U8, arrays, generics, pointers, ...) are absent; FieldTypeName
// reports them as unresolved rather than guessing.
var elementTypePrimitives = map[byte]string{
	0x02: "System.Boolean",
	0x03: "System.Char",
	0x04: "System.SByte",
	0x05: "System.Byte",
	0x06: "System.Int16",
	0x07: "System.UInt16",
	0x08: "System.Int32",
	0x09: "System.UInt32",
	0x0C: "System.Single",
	0x0D: "System.Double",
	0x18: "System.IntPtr",
	0x19: "System.UIntPtr",
}

const (
	elementTypeValueType = 0x11
	elementTypeClass     = 0x12
)

// Fields returns the Field rows belonging to t, bounded by the next
// TypeDef row's FirstField (or the end of the Field table for the last
// type), per ECMA-335's "runs until the next row's index" convention
// also used for FirstMethod (container.go's walkTables / methoddef.go).
func (c *Container) Fields(t TypeDefRow) []FieldDefRow {
	if t.FirstField == 0 || int(t.FirstField) > len(c.fields) {
		return nil
	}
	end := uint32(len(c.fields)) // 1-based index of the last field, inclusive
	for _, other := range c.types {
		if other.FirstField > t.FirstField && other.FirstField-1 < end {
			end = other.FirstField - 1
		}
	}
	return c.fields[t.FirstField-1 : end]
}

// FieldTypeName decodes a field signature's type into a fully-qualified
// name: a primitive ELEMENT_TYPE resolves directly, and VALUETYPE/CLASS
// resolve through the coded TypeDefOrRef token when it names a TypeDef
// in this same assembly (typeRef/typeSpec targets, always external or
// generic-instantiated types, are reported unresolved — this target has
// no metadata reader for other assemblies). Byte 0 of sig is the calling
// convention (0x06, FIELD); byte 1 is the type's leading ELEMENT_TYPE.
func (c *Container) FieldTypeName(sig []byte) (string, bool) {
	if len(sig) < 2 || sig[0] != 0x06 {
		return "", false
	}
	tag := sig[1]
	if name, ok := elementTypePrimitives[tag]; ok {
		return name, true
	}
	if tag != elementTypeValueType && tag != elementTypeClass {
		return "", false
	}
	token, _, err := readBlobLength(sig, 2)
	if err != nil {
		return "", false
	}
	codedTag := uint32(token) & 0x3
	rowIdx := uint32(token) >> 2
	if codedTag != 0 || rowIdx == 0 || int(rowIdx) > len(c.types) {
		return "", false // TypeRef (1) / TypeSpec (2), or out of range
	}
	row := c.types[rowIdx-1]
	if row.Namespace == "" {
		return row.Name, true
	}
	return row.Namespace + "." + row.Name, true
}

func fieldDecodeError(r uint32, err error) error {
	return compilerr.New(compilerr.CategoryContainer, compilerr.KindInvalidContainer, compilerr.Location{}, "malformed Field row %d: %v", r, err)
}
