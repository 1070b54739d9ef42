package chat

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/metrics"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/textgen"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

const generateTimeout = 60 * time.Second

var errEmptySummary = errors.New("generator returned an empty summary")

type SummaryService struct {
	store  *store.Store
	gen    textgen.Generator
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

func NewSummaryService(st *store.Store, gen textgen.Generator, logger *slog.Logger) *SummaryService {
	return &SummaryService{store: st, gen: gen, logger: logger, now: time.Now}
}

func (s *SummaryService) Get(ctx context.Context, taskID uint) (*models.Summary, error) {
	if _, err := s.store.FindTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.FindSummary(ctx, taskID)
}

// Regenerate selalu menjalankan ekstraksi regex. Kalau generator gagal, summary tetap
// disimpan (teks lama, degraded=true) dan dikembalikan bersama error upstream_unavailable.
// Regenerasi paralel untuk task yang sama digabung jadi satu.
func (s *SummaryService) Regenerate(ctx context.Context, taskID uint) (*models.Summary, error) {
	v, err, _ := s.group.Do(strconv.FormatUint(uint64(taskID), 10), func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), generateTimeout)
		defer cancel()
		return s.regenerate(genCtx, taskID)
	})
	sum, _ := v.(*models.Summary)
	return sum, err
}

func (s *SummaryService) regenerate(ctx context.Context, taskID uint) (*models.Summary, error) {
	task, err := s.store.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.TaskHistory(ctx, taskID)
	if err != nil {
		return nil, err
	}

	history := historyOf(msgs)
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Content)
	}
	extracted := textgen.ExtractEntities(texts...)

	var previous string
	if prev, err := s.store.FindSummary(ctx, taskID); err == nil {
		previous = prev.Content
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	res, genErr := s.gen.Summarize(ctx, history, string(task.Status))
	if genErr == nil && strings.TrimSpace(res.Text) == "" {
		genErr = errEmptySummary
	}

	sum := &models.Summary{TaskID: taskID, GeneratedAt: s.now()}
	if genErr != nil {
		metrics.TextgenFailures.WithLabelValues("summarize").Inc()
		s.logger.Warn("summary generation failed, using extracted entities only",
			slog.Uint64("task_id", uint64(taskID)),
			slog.String("error", genErr.Error()),
		)
		sum.Content = previous
		sum.Degraded = true
		sum.Entities = datatypes.NewJSONSlice(extracted)
	} else {
		sum.Content = strings.TrimSpace(res.Text)
		sum.Entities = datatypes.NewJSONSlice(textgen.MergeEntities(extracted, validEntities(res.Entities)))
	}

	if err := s.store.UpsertSummary(ctx, sum); err != nil {
		return nil, err
	}
	saved, err := s.store.FindSummary(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return saved, apperr.Upstream("summary generation unavailable; showing extracted entities only", genErr)
	}
	return saved, nil
}

func validEntities(in []models.Entity) []models.Entity {
	out := make([]models.Entity, 0, len(in))
	for _, e := range in {
		e.Value = strings.TrimSpace(e.Value)
		if e.Value == "" {
			continue
		}
		switch e.Type {
		case models.EntityURL, models.EntityPhone:
			out = append(out, e)
		case models.EntityEmail:
			e.Value = strings.ToLower(e.Value)
			out = append(out, e)
		}
	}
	return out
}

func historyOf(msgs []models.Message) []textgen.HistoryEntry {
	out := make([]textgen.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		name := "unknown"
		if m.Sender != nil {
			name = m.Sender.Name
		}
		out = append(out, textgen.HistoryEntry{Sender: name, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out
}
