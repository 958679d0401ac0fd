package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

type fakeRequests struct {
	mu        sync.Mutex
	rows      map[int64]entity.ReimbursementRequest
	nextID    int64
	failWrite error
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{rows: make(map[int64]entity.ReimbursementRequest)}
}

func (f *fakeRequests) Create(ctx context.Context, req *entity.ReimbursementRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.nextID++
	req.ID = f.nextID
	req.Username = fmt.Sprintf("user%d", req.UserID)
	f.rows[req.ID] = *req
	return nil
}

func (f *fakeRequests) GetByID(ctx context.Context, id int64) (*entity.ReimbursementRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeRequests) FindOwnedBy(ctx context.Context, id, userID int64) (*entity.ReimbursementRequest, error) {
	req, err := f.GetByID(ctx, id)
	if req == nil || err != nil || req.UserID != userID {
		return nil, err
	}
	return req, nil
}

func (f *fakeRequests) ListOwnedBy(ctx context.Context, userID int64) ([]*entity.ReimbursementRequest, error) {
	all, _ := f.List(ctx, entity.RequestFilter{})
	var owned []*entity.ReimbursementRequest
	for _, r := range all {
		if r.UserID == userID {
			owned = append(owned, r)
		}
	}
	return owned, nil
}

func (f *fakeRequests) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ReimbursementRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := map[int64]bool{}
	for _, id := range filter.IDs {
		want[id] = true
	}

	var out []*entity.ReimbursementRequest
	for _, row := range f.rows {
		row := row
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if len(want) > 0 && !want[row.ID] {
			continue
		}
		if filter.Search != "" && !strings.Contains(row.RealName+row.Reason+row.Username, filter.Search) {
			continue
		}
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRequests) Update(ctx context.Context, req *entity.ReimbursementRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	if _, ok := f.rows[req.ID]; !ok {
		return entity.ErrNotFound
	}
	f.rows[req.ID] = *req
	return nil
}

func (f *fakeRequests) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	if _, ok := f.rows[id]; !ok {
		return entity.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRequests) ClearInvoice(ctx context.Context, id int64, key string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return entity.ErrNotFound
	}
	if row.InvoicePDF != key {
		return entity.ErrInvoiceChanged
	}
	row.InvoicePDF = ""
	row.LastModifiedDate = at
	f.rows[id] = row
	return nil
}

func (f *fakeRequests) ReferencedInvoices(ctx context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := map[string]bool{}
	for _, row := range f.rows {
		if row.InvoicePDF != "" {
			keys[row.InvoicePDF] = true
		}
	}
	return keys, nil
}

// seed stores a request directly, bypassing the engine
func (f *fakeRequests) seed(req entity.ReimbursementRequest) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	req.ID = f.nextID
	f.rows[req.ID] = req
	return req.ID
}

func (f *fakeRequests) row(id int64) (entity.ReimbursementRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	return row, ok
}

type fakeHistory struct {
	mu      sync.Mutex
	records []*entity.RequestHistory
}

func (f *fakeHistory) Create(ctx context.Context, h *entity.RequestHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = int64(len(f.records) + 1)
	f.records = append(f.records, h)
	return nil
}

func (f *fakeHistory) ListByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.RequestHistory
	for _, h := range f.records {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var errDisk = errors.New("disk full")

type fakeBlobs struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	failSave   bool
	failDelete map[string]bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string][]byte{}, failDelete: map[string]bool{}}
}

func (f *fakeBlobs) Save(ctx context.Context, key string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errDisk
	}
	f.blobs[key] = content
	return nil
}

func (f *fakeBlobs) Read(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return b, nil
}

func (f *fakeBlobs) Exists(ctx context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[key] {
		return errDisk
	}
	delete(f.blobs, key)
	return nil
}

func (f *fakeBlobs) List(ctx context.Context, prefix string) ([]port.BlobInfo, error) {
	return nil, nil
}

func (f *fakeBlobs) URL(key string) string {
	return "/media/" + key
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

type seqNamer struct {
	n int
}

func (s *seqNamer) InvoiceKey(realName, reason string, at time.Time) string {
	s.n++
	return fmt.Sprintf("invoices/%s-%s-%d.pdf", realName, reason, s.n)
}

type fakeInspector struct{}

func (fakeInspector) Inspect(ctx context.Context, content []byte) (*port.InvoiceInfo, error) {
	if !strings.HasPrefix(string(content), "%PDF-") {
		return nil, entity.FieldError("invoice_pdf", "Only PDF files are accepted.")
	}
	return &port.InvoiceInfo{Pages: 1}, nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
