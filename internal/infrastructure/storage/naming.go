package storage

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// InvoicePrefix is the key prefix of every invoice blob
	InvoicePrefix = "invoices/"
	// ExportPrefix is the key prefix of generated archives and reports
	ExportPrefix = "exports/"
)

// InvoiceNamer builds keys of the form
// invoices/{YYYY_MM_DD}-{real_name}-{reason}-{6 hex}.pdf
type InvoiceNamer struct {
	// suffix is swapped in tests
	suffix func() string
}

// NewInvoiceNamer creates a namer with a random suffix
func NewInvoiceNamer() *InvoiceNamer {
	return &InvoiceNamer{suffix: randomSuffix}
}

// InvoiceKey returns the blob key for an invoice uploaded at the given time
func (n *InvoiceNamer) InvoiceKey(realName, reason string, at time.Time) string {
	name := strings.Join([]string{
		at.Format("2006_01_02"),
		cleanName(realName),
		SanitizeReason(reason),
		n.suffix(),
	}, "-")
	return InvoicePrefix + name + ".pdf"
}

// SanitizeReason keeps letters, digits and whitespace, trims trailing
// whitespace and turns spaces into underscores
func SanitizeReason(reason string) string {
	var b strings.Builder
	for _, r := range reason {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimRightFunc(b.String(), unicode.IsSpace), " ", "_")
}

// cleanName drops characters that would change the directory of the key
func cleanName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(strings.ReplaceAll(name, "..", ""))
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
