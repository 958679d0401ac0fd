package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
)

type memBlobs struct {
	port.BlobStore
	mu         sync.Mutex
	infos      map[string]port.BlobInfo
	failDelete map[string]bool
}

func newMemBlobs(infos ...port.BlobInfo) *memBlobs {
	m := &memBlobs{infos: map[string]port.BlobInfo{}, failDelete: map[string]bool{}}
	for _, info := range infos {
		m.infos[info.Key] = info
	}
	return m
}

func (m *memBlobs) List(ctx context.Context, prefix string) ([]port.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []port.BlobInfo
	for key, info := range m.infos {
		if strings.HasPrefix(key, prefix) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[key] {
		return errors.New("busy")
	}
	delete(m.infos, key)
	return nil
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.infos[key]
	return ok
}

type refs struct {
	port.RequestRepository
	keys map[string]bool
}

func (r refs) ReferencedInvoices(ctx context.Context) (map[string]bool, error) {
	return r.keys, nil
}

func TestOrphanSweeper_Sweep(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)

	blobs := newMemBlobs(
		port.BlobInfo{Key: "invoices/live.pdf", ModTime: old},
		port.BlobInfo{Key: "invoices/orphan.pdf", ModTime: old},
		port.BlobInfo{Key: "invoices/fresh.pdf", ModTime: now.Add(-time.Minute)},
		port.BlobInfo{Key: "invoices/stuck.pdf", ModTime: old},
		port.BlobInfo{Key: "exports/old/a.zip", ModTime: old},
		port.BlobInfo{Key: "exports/new/b.zip", ModTime: now},
	)
	blobs.failDelete["invoices/stuck.pdf"] = true

	sweeper := NewOrphanSweeper(SweeperConfig{
		Interval:        time.Hour,
		Grace:           time.Hour,
		ExportRetention: 24 * time.Hour,
		InvoicePrefix:   "invoices/",
		ExportPrefix:    "exports/",
	}, blobs, refs{keys: map[string]bool{"invoices/live.pdf": true}}, zap.NewNop())
	sweeper.now = func() time.Time { return now }

	stats, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 4, Orphans: 2, Removed: 1, ExportsRemoved: 1, Failed: 1}, stats)

	assert.True(t, blobs.has("invoices/live.pdf"))
	assert.False(t, blobs.has("invoices/orphan.pdf"))
	assert.True(t, blobs.has("invoices/fresh.pdf"))
	assert.True(t, blobs.has("invoices/stuck.pdf"))
	assert.False(t, blobs.has("exports/old/a.zip"))
	assert.True(t, blobs.has("exports/new/b.zip"))
}

func TestOrphanSweeper_StartRequiresInterval(t *testing.T) {
	sweeper := NewOrphanSweeper(SweeperConfig{}, newMemBlobs(), refs{}, zap.NewNop())
	assert.Error(t, sweeper.Start(context.Background()))
}

type stubWorker struct {
	name     string
	startErr error
	stopErr  error
	stopped  *[]string
}

func (w *stubWorker) Start(ctx context.Context) error { return w.startErr }
func (w *stubWorker) Name() string                    { return w.name }
func (w *stubWorker) Stop() error {
	*w.stopped = append(*w.stopped, w.name)
	return w.stopErr
}

func TestWorkerManager_Lifecycle(t *testing.T) {
	var stopped []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&stubWorker{name: "first", stopped: &stopped})
	m.Register(&stubWorker{name: "broken", startErr: errors.New("no"), stopped: &stopped})
	m.Register(&stubWorker{name: "last", stopErr: errors.New("stuck"), stopped: &stopped})
	assert.Equal(t, 3, m.GetWorkerCount())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	err := m.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last: stuck")
	assert.Equal(t, []string{"last", "broken", "first"}, stopped)
	assert.False(t, m.IsRunning())

	assert.NoError(t, m.StopAll())
}

func TestOrphanSweeper_StartStop(t *testing.T) {
	sweeper := NewOrphanSweeper(SweeperConfig{Interval: time.Millisecond, InvoicePrefix: "invoices/"},
		newMemBlobs(), refs{keys: map[string]bool{}}, zap.NewNop())

	m := NewWorkerManager(zap.NewNop())
	m.Register(sweeper)
	require.NoError(t, m.StartAll(context.Background()))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.StopAll())
}
