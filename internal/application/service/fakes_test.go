package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type mockUserRepo struct {
	mu    sync.Mutex
	users map[int64]*entity.User
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	r := &mockUserRepo{users: map[int64]*entity.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *mockUserRepo) Create(ctx context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("duplicate: %w", entity.FieldError("username", "A user with that username already exists."))
		}
	}
	u.ID = int64(len(r.users) + 100)
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *mockUserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *mockUserRepo) List(ctx context.Context) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *mockUserRepo) UpdateFlags(ctx context.Context, id int64, isStaff, isActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return entity.ErrNotFound
	}
	u.IsStaff, u.IsActive = isStaff, isActive
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Compare(hash, password string) bool  { return hash == "hashed:"+password }

type mockTokens struct{}

func (mockTokens) Issue(u *entity.User) (*port.TokenPair, error) {
	return &port.TokenPair{Access: fmt.Sprintf("access-%d", u.ID), Refresh: fmt.Sprintf("refresh-%d", u.ID)}, nil
}

func (mockTokens) Refresh(token string) (string, error) {
	if !strings.HasPrefix(token, "refresh-") {
		return "", entity.ErrUnauthenticated
	}
	return "access-" + strings.TrimPrefix(token, "refresh-"), nil
}

func (mockTokens) VerifyAccess(token string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(token, "access-%d", &id); err != nil {
		return 0, entity.ErrUnauthenticated
	}
	return id, nil
}

type mockNoticeRepo struct {
	notices map[int64]*entity.Notice
	nextID  int64
}

func newMockNoticeRepo() *mockNoticeRepo {
	return &mockNoticeRepo{notices: map[int64]*entity.Notice{}}
}

func (r *mockNoticeRepo) Create(ctx context.Context, n *entity.Notice) error {
	r.nextID++
	n.ID = r.nextID
	cp := *n
	r.notices[n.ID] = &cp
	return nil
}

func (r *mockNoticeRepo) GetByID(ctx context.Context, id int64) (*entity.Notice, error) {
	if n, ok := r.notices[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, nil
}

func (r *mockNoticeRepo) ListActive(ctx context.Context) ([]*entity.Notice, error) {
	all, _ := r.ListAll(ctx)
	var out []*entity.Notice
	for _, n := range all {
		if n.IsActive {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *mockNoticeRepo) ListAll(ctx context.Context) ([]*entity.Notice, error) {
	out := make([]*entity.Notice, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *mockNoticeRepo) Update(ctx context.Context, n *entity.Notice) error {
	if _, ok := r.notices[n.ID]; !ok {
		return entity.ErrNotFound
	}
	cp := *n
	r.notices[n.ID] = &cp
	return nil
}

func (r *mockNoticeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.notices[id]; !ok {
		return entity.ErrNotFound
	}
	delete(r.notices, id)
	return nil
}

type mockLedgerRepo struct {
	entries map[int64]*entity.LedgerEntry
	nextID  int64
}

func newMockLedgerRepo(entries ...*entity.LedgerEntry) *mockLedgerRepo {
	r := &mockLedgerRepo{entries: map[int64]*entity.LedgerEntry{}}
	for _, e := range entries {
		_ = r.Create(context.Background(), e)
	}
	return r
}

func (r *mockLedgerRepo) Create(ctx context.Context, e *entity.LedgerEntry) error {
	if e.RequestID != nil {
		if existing, _ := r.GetByRequestID(ctx, *e.RequestID); existing != nil {
			return errors.New("UNIQUE constraint failed: account_book_entries.request_id")
		}
	}
	r.nextID++
	e.ID = r.nextID
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *mockLedgerRepo) GetByID(ctx context.Context, id int64) (*entity.LedgerEntry, error) {
	if e, ok := r.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *mockLedgerRepo) GetByRequestID(ctx context.Context, requestID int64) (*entity.LedgerEntry, error) {
	for _, e := range r.entries {
		if e.RequestID != nil && *e.RequestID == requestID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *mockLedgerRepo) List(ctx context.Context, ids []int64) ([]*entity.LedgerEntry, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*entity.LedgerEntry
	for _, e := range r.entries {
		if len(want) == 0 || want[e.ID] {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.After(out[j].EntryDate) })
	return out, nil
}

func (r *mockLedgerRepo) Update(ctx context.Context, e *entity.LedgerEntry) error {
	if _, ok := r.entries[e.ID]; !ok {
		return entity.ErrNotFound
	}
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *mockLedgerRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.entries[id]; !ok {
		return entity.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// mockRequestRepo only serves the read paths used by the services
type mockRequestRepo struct {
	port.RequestRepository
	rows map[int64]*entity.ReimbursementRequest
}

func newMockRequestRepo(reqs ...*entity.ReimbursementRequest) *mockRequestRepo {
	r := &mockRequestRepo{rows: map[int64]*entity.ReimbursementRequest{}}
	for _, req := range reqs {
		r.rows[req.ID] = req
	}
	return r
}

func (r *mockRequestRepo) GetByID(ctx context.Context, id int64) (*entity.ReimbursementRequest, error) {
	if req, ok := r.rows[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, nil
}

func (r *mockRequestRepo) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ReimbursementRequest, error) {
	var out []*entity.ReimbursementRequest
	for _, id := range filter.IDs {
		if req, ok := r.rows[id]; ok {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: map[string][]byte{}}
}

func (m *mockBlobStore) Save(ctx context.Context, key string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = content
	return nil
}

func (m *mockBlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%s: no such file", key)
	}
	return b, nil
}

func (m *mockBlobStore) Exists(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

func (m *mockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *mockBlobStore) List(ctx context.Context, prefix string) ([]port.BlobInfo, error) {
	return nil, nil
}

func (m *mockBlobStore) URL(key string) string { return "/media/" + key }

type recordingArchiver struct {
	files []port.ArchiveFile
}

func (a *recordingArchiver) Write(files []port.ArchiveFile) ([]byte, error) {
	a.files = files
	return []byte("zip"), nil
}

type recordingReports struct {
	sheet port.ReportSheet
}

func (r *recordingReports) Write(sheet port.ReportSheet) ([]byte, error) {
	r.sheet = sheet
	return []byte("xlsx"), nil
}

type mockReviewNotifier struct {
	calls []int64
	err   error
}

func (m *mockReviewNotifier) NotifyPendingReview(ctx context.Context, req *entity.ReimbursementRequest, resubmitted bool) error {
	m.calls = append(m.calls, req.ID)
	return m.err
}
