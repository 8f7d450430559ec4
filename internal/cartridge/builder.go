package cartridge

import (
	"strings"

	"github.com/xyproto/gbilc/internal/compilerr"
)

// Options configures the cartridge Build produces; fields left at their
// zero value match the teacher's own defaults (ROM-only, no RAM, no
// color support).
type Options struct {
	Title         string
	CartridgeType byte
}

// Build wraps code (the flat machine-code image emitted by
// internal/codegen, already based at CodeStart) in a complete cartridge
// image: restart/interrupt vectors, cartridge header, logo, title, and
// both checksums. The image size is rounded up to the next power of
// two no smaller than 32 KiB; since that is also the largest single-
// bank size this target supports, any code large enough to need a
// bigger image is RomTooLarge rather than silently truncated.
func Build(code []byte, opts Options) ([]byte, error) {
	needed := headerEnd + len(code)
	if needed > minImageSize {
		return nil, compilerr.New(compilerr.CategoryAssembly, compilerr.KindRomTooLarge, compilerr.Location{},
			"image requires %d bytes, exceeds the %d-byte single-bank limit", needed, minImageSize)
	}

	image := make([]byte, minImageSize)
	for i := range image {
		image[i] = 0xFF
	}

	// Restart vector region (0x0000-0x00FF): RST 00H falls through to a
	// NOP; the only vector actually used jumps straight to the header's
	// own entry point at 0x0100.
	image[0x0000] = 0x00 // NOP
	image[0x0001] = 0xC3 // JP a16
	image[0x0002] = byte(HeaderStart)
	image[0x0003] = byte(HeaderStart >> 8)

	writeHeader(image, opts)
	copy(image[headerEnd:], code)
	writeChecksums(image)

	return image, nil
}

// writeHeader fills 0x0100-0x014C: the entry jump, logo, title, and the
// fixed cartridge metadata fields (all zero besides CartridgeType,
// matching a ROM-only cartridge with no banking and no RAM).
func writeHeader(image []byte, opts Options) {
	image[HeaderStart+0] = 0x00 // NOP
	image[HeaderStart+1] = 0xC3 // JP a16
	image[HeaderStart+2] = byte(headerEnd)
	image[HeaderStart+3] = byte(headerEnd >> 8)

	copy(image[LogoStart:LogoStart+len(bootLogo)], bootLogo[:])

	for i := TitleStart; i < titleEnd; i++ {
		image[i] = 0x00
	}
	title := asciiTitle(opts.Title)
	copy(image[TitleStart:titleEnd], title)

	image[0x0143] = 0x00 // CGB flag
	image[0x0144] = 0x00 // new licensee code, low
	image[0x0145] = 0x00 // new licensee code, high
	image[0x0146] = 0x00 // SGB flag
	image[0x0147] = opts.CartridgeType
	image[0x0148] = 0x00 // ROM size: fixed 32 KiB, no banking
	image[0x0149] = 0x00 // RAM size: none
	image[0x014A] = 0x00 // destination code
	image[0x014B] = 0x00 // old licensee code
	image[0x014C] = 0x00 // mask ROM version
}

// asciiTitle uppercases title and drops (not replaces) any character
// outside the 7-bit ASCII range, truncated to the 16-byte
// title field.
func asciiTitle(title string) []byte {
	upper := strings.ToUpper(title)
	out := make([]byte, 0, 16)
	for _, r := range upper {
		if r > 127 {
			continue
		}
		out = append(out, byte(r))
		if len(out) == 16 {
			break
		}
	}
	return out
}

// writeChecksums computes and writes the header checksum (0x014D) and
// the global checksum (0x014E-0x014F), the latter written low-byte
// first — see SPEC_FULL.md's Open Question resolution on byte order.
func writeChecksums(image []byte) {
	var checksum byte
	for i := TitleStart; i < headerChecksumOffset; i++ {
		checksum = checksum - image[i] - 1
	}
	image[headerChecksumOffset] = checksum

	var sum uint16
	for i, b := range image {
		if i == globalChecksumOffset || i == globalChecksumOffset+1 {
			continue
		}
		sum += uint16(b)
	}
	image[globalChecksumOffset] = byte(sum)
	image[globalChecksumOffset+1] = byte(sum >> 8)
}
