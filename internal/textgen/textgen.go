package textgen

import (
	"context"
	"errors"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/models"
)

// ErrUnavailable: generator tidak dikonfigurasi atau gagal dihubungi.
var ErrUnavailable = errors.New("text generation unavailable")

// HistoryEntry is one message of a task, flattened for prompting.
type HistoryEntry struct {
	Sender    string
	Content   string
	CreatedAt time.Time
}

type SummaryResult struct {
	Text     string
	Entities []models.Entity
}

type Verdict struct {
	Approved bool
	Feedback string
}

// Generator bersifat lambat, bisa gagal, dan tidak otoritatif.
type Generator interface {
	Summarize(ctx context.Context, history []HistoryEntry, taskStatus string) (SummaryResult, error)
	ReviewQuality(ctx context.Context, message string, context []HistoryEntry) (Verdict, error)
}

// Disabled dipakai kalau OPENAI_API_KEY kosong.
type Disabled struct{}

func (Disabled) Summarize(context.Context, []HistoryEntry, string) (SummaryResult, error) {
	return SummaryResult{}, ErrUnavailable
}

func (Disabled) ReviewQuality(context.Context, string, []HistoryEntry) (Verdict, error) {
	return Verdict{}, ErrUnavailable
}
