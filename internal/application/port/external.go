package port

import (
	"context"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

// InvoiceInfo is what the inspector learned about an uploaded invoice
type InvoiceInfo struct {
	Pages int
}

// InvoiceInspector validates uploaded invoice documents
type InvoiceInspector interface {
	Inspect(ctx context.Context, content []byte) (*InvoiceInfo, error)
}

// InvoiceNamer derives the blob key for a newly uploaded invoice
type InvoiceNamer interface {
	InvoiceKey(realName, reason string, at time.Time) string
}

// ReviewNotifier tells reviewers that a request awaits them
type ReviewNotifier interface {
	NotifyPendingReview(ctx context.Context, req *entity.ReimbursementRequest, resubmitted bool) error
}

// TokenPair is an access and refresh token issued together
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenIssuer signs and verifies bearer tokens
type TokenIssuer interface {
	Issue(user *entity.User) (*TokenPair, error)
	// Refresh verifies a refresh token and returns a new access token
	Refresh(refreshToken string) (string, error)
	// VerifyAccess returns the user id carried by a valid access token
	VerifyAccess(accessToken string) (int64, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// ArchiveFile is one named entry of a zip archive
type ArchiveFile struct {
	Name    string
	Content []byte
}

// ArchiveWriter encodes files into an archive
type ArchiveWriter interface {
	Write(files []ArchiveFile) ([]byte, error)
}

// ReportSheet is a tabular report ready to be encoded
type ReportSheet struct {
	SheetName string
	Headers   []string
	Widths    []float64
	Rows      [][]interface{}
	// MoneyColumn is the zero-based column formatted as #,##0.00, -1 for none
	MoneyColumn int
}

// ReportWriter encodes a report into a spreadsheet
type ReportWriter interface {
	Write(sheet ReportSheet) ([]byte, error)
}
