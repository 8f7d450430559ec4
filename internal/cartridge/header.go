// Package cartridge assembles a finished machine-code image into a
// bootable cartridge file — Component H. See SPEC_FULL.md §6.2 /
// spec.md §6.2.
package cartridge

import "github.com/xyproto/gbilc/internal/codegen"

// Fixed ROM layout offsets, per spec.md §6.2.
const (
	HeaderStart          = 0x0100
	LogoStart            = 0x0104
	TitleStart           = 0x0134
	titleEnd             = 0x0144 // exclusive
	headerChecksumOffset = 0x014D
	globalChecksumOffset = 0x014E
	headerEnd            = 0x0150

	// minImageSize is the fixed image size this target's ROM-only, no-
	// banking header always rounds up to: the same single-bank ceiling
	// internal/codegen enforces for code+header, so both packages share
	// one constant rather than two numbers that must be kept in sync by
	// hand.
	minImageSize = codegen.RomLimit
)

// bootLogo is the fixed 48-byte Nintendo logo bitmap every bootable
// image must carry unmodified at LogoStart — the boot ROM halts if it
// does not match exactly.
var bootLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B,
	0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC,
	0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Header holds the cartridge metadata fields the header region carries
// outside of the logo, title, and checksums.
type Header struct {
	CartridgeType byte
	RomSize       byte
	RamSize       byte
	CGBFlag       byte
	SGBFlag       byte
	DestinationCode byte
	OldLicenseeCode byte
	MaskRomVersion  byte
}

// DefaultHeader returns the all-zero "ROM only, no banking, no RAM"
// header fields RomSize=0x00 implies a fixed 32 KiB image.
func DefaultHeader() Header {
	return Header{}
}
