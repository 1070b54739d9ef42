package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/logger"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/store/storetest"
	"github.com/adityaraj-09/faff-assign/internal/textgen"
)

type recorded struct {
	room   string
	typ    string
	data   interface{}
	except string
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) Broadcast(ctx context.Context, room, eventType string, data interface{}) error {
	return r.BroadcastExcept(ctx, room, eventType, data, "")
}

func (r *recorder) BroadcastExcept(_ context.Context, room, eventType string, data interface{}, except string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{room: room, typ: eventType, data: data, except: except})
	return nil
}

func (r *recorder) ofType(typ string) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, e := range r.events {
		if e.typ == typ {
			out = append(out, e)
		}
	}
	return out
}

// fileStore mencatat jumlah Put/Remove supaya test bisa memastikan tidak ada file yatim.
type fileStore struct {
	mu      sync.Mutex
	files   map[string]int64
	puts    int
	removes int
}

func (f *fileStore) Put(name string, r io.Reader) (int64, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.files[name] = n
	return n, nil
}

func (f *fileStore) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	if _, ok := f.files[name]; !ok {
		return attachments.ErrNotExist
	}
	delete(f.files, name)
	return nil
}

func (f *fileStore) Stat(name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.files[name]
	if !ok {
		return 0, attachments.ErrNotExist
	}
	return n, nil
}

func (f *fileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type fakeGenerator struct {
	summary textgen.SummaryResult
	verdict textgen.Verdict
	err     error
	calls   int
	mu      sync.Mutex
}

func (g *fakeGenerator) Summarize(context.Context, []textgen.HistoryEntry, string) (textgen.SummaryResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.summary, g.err
}

func (g *fakeGenerator) ReviewQuality(context.Context, string, []textgen.HistoryEntry) (textgen.Verdict, error) {
	return g.verdict, g.err
}

var errGenDown = errors.New("upstream 503")

type fixture struct {
	store   *store.Store
	files   *fileStore
	proc    *attachments.Processor
	out     *recorder
	svc     *Service
	intake  *Intake
	tasks   *TaskService
	gen     *fakeGenerator
	summary *SummaryService
	reviews *ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.Open(t)
	fs := &fileStore{files: map[string]int64{}}
	proc := attachments.NewProcessor(fs, attachments.Limits{MaxFiles: 5, MaxBytes: 1 << 20}, "/uploads", logger.Discard())
	out := &recorder{}
	gen := &fakeGenerator{}
	svc := NewService(st, proc, out, logger.Discard())
	return &fixture{
		store:   st,
		files:   fs,
		proc:    proc,
		out:     out,
		svc:     svc,
		intake:  NewIntake(svc),
		tasks:   NewTaskService(st, proc, out, logger.Discard()),
		gen:     gen,
		summary: NewSummaryService(st, gen, logger.Discard()),
		reviews: NewReviewService(st, gen, logger.Discard()),
	}
}

func identity(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func textFile(name, body string) attachments.Upload {
	return attachments.FromBytes(name, []byte(body))
}

func (f *fixture) messageCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.store.DB().Model(&models.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}
