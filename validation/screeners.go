package validation

import (
	"bytes"
	"fmt"

	"media-vault/domain/mimetypes"
	apperrors "media-vault/errors"
)

// executableSignatures is the fixed table of magic numbers that reject a
// buffer outright, whatever a later structural decode would say.
var executableSignatures = []struct {
	name  string
	magic []byte
}{
	{"windows PE", []byte{0x4D, 0x5A}},
	{"ELF", []byte{0x7F, 0x45, 0x4C, 0x46}},
	{"shebang script", []byte{0x23, 0x21}},
	{"Mach-O 32-bit", []byte{0xFE, 0xED, 0xFA, 0xCE}},
	{"Mach-O 64-bit", []byte{0xFE, 0xED, 0xFA, 0xCF}},
	{"ZIP archive", []byte{0x50, 0x4B, 0x03, 0x04}},
}

// ScreenExecutable rejects content whose prefix matches a known
// executable or archive format. Unconditional: runs before sniffing
// routes anything anywhere.
func ScreenExecutable(data []byte) error {
	for _, sig := range executableSignatures {
		if bytes.HasPrefix(data, sig.magic) {
			return apperrors.Validation("executable content detected (%s signature)", sig.name)
		}
	}
	return nil
}

// polyglotSignatures are format markers searched across the WHOLE buffer,
// not just the prefix. Two or more distinct hits mean the bytes parse under
// multiple interpreters, the classic evasion shape.
var polyglotSignatures = []struct {
	name  string
	magic []byte
}{
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47}},
	{"gif", []byte("GIF8")},
	{"pdf", []byte("%PDF-")},
	{"zip", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"riff", []byte("RIFF")},
	{"elf", []byte{0x7F, 0x45, 0x4C, 0x46}},
	{"html", []byte("<html")},
}

// ScreenPolyglot returns a non-fatal warning when the buffer carries two or
// more distinct format signatures. A warn, not a block: the primary type's
// own validator still decides validity.
func ScreenPolyglot(data []byte) []string {
	var found []string
	for _, sig := range polyglotSignatures {
		if bytes.Contains(data, sig.magic) {
			found = append(found, sig.name)
		}
	}
	if len(found) < 2 {
		return nil
	}
	return []string{fmt.Sprintf("polyglot content: multiple format signatures present (%v)", found)}
}

// ScreenMismatch hard-rejects when the client lied about the type.
// Both values are reported so the owner can see what was claimed vs found.
func ScreenMismatch(declared, detected mimetypes.MIME) error {
	if mimetypes.Normalize(string(declared)) != detected {
		return apperrors.Validation("declared type %q does not match detected type %q", declared, detected)
	}
	return nil
}
