package storage

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"taxi fare", "taxi_fare"},
		{"出差 北京/上海!", "出差_北京上海"},
		{"meal   ", "meal"},
		{"../../etc", "etc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeReason(tt.in))
		})
	}
}

func TestInvoiceNamer_InvoiceKey(t *testing.T) {
	n := &InvoiceNamer{suffix: func() string { return "a1b2c3" }}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "invoices/2024_05_01-张三-taxi_fare-a1b2c3.pdf", n.InvoiceKey("张三", "taxi fare", at))
	assert.Equal(t, "invoices/2024_05_01-evil-x-a1b2c3.pdf", n.InvoiceKey("../evil", "x", at))
}

func TestInvoiceNamer_RandomSuffix(t *testing.T) {
	n := NewInvoiceNamer()
	at := time.Now()

	key := n.InvoiceKey("A", "b", at)
	assert.Regexp(t, regexp.MustCompile(`^invoices/\d{4}_\d{2}_\d{2}-A-b-[0-9a-f]{6}\.pdf$`), key)
	assert.NotEqual(t, key, n.InvoiceKey("A", "b", at))
	assert.NotContains(t, key[len(InvoicePrefix):], "/")
}
