package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/metrics"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/textgen"
)

// reviewContext: berapa message terakhir task yang ikut dikirim ke generator.
const reviewContext = 20

type ReviewService struct {
	store  *store.Store
	gen    textgen.Generator
	logger *slog.Logger
	now    func() time.Time
}

func NewReviewService(st *store.Store, gen textgen.Generator, logger *slog.Logger) *ReviewService {
	return &ReviewService{store: st, gen: gen, logger: logger, now: time.Now}
}

// Request membuat review pending; request kedua untuk message yang sama ditolak.
func (r *ReviewService) Request(ctx context.Context, actor auth.Identity, messageID uint) (*models.QAReview, error) {
	if !auth.Can(actor, auth.ActionRequestReview, auth.Resource{}) {
		return nil, apperr.Forbidden("not allowed to request reviews")
	}
	if _, err := r.store.FindMessage(ctx, messageID); err != nil {
		return nil, err
	}
	rev := &models.QAReview{
		MessageID:     messageID,
		Status:        models.ReviewPending,
		RequestedByID: actor.UserID,
	}
	if err := r.store.CreateReview(ctx, rev); err != nil {
		return nil, err
	}
	return r.store.FindReview(ctx, rev.ID)
}

func (r *ReviewService) List(ctx context.Context, messageID uint) ([]models.QAReview, error) {
	if _, err := r.store.FindMessage(ctx, messageID); err != nil {
		return nil, err
	}
	rs, err := r.store.ListReviews(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []models.QAReview{}
	}
	return rs, nil
}

// Auto meminta verdict ke generator. Kalau generator gagal review tetap pending.
func (r *ReviewService) Auto(ctx context.Context, actor auth.Identity, reviewID uint) (*models.QAReview, error) {
	if !auth.Can(actor, auth.ActionRequestReview, auth.Resource{}) {
		return nil, apperr.Forbidden("not allowed to run reviews")
	}
	rev, err := r.store.FindReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if rev.Status != models.ReviewPending {
		return nil, apperr.Validation("review already decided")
	}
	if rev.Message == nil {
		return nil, apperr.NotFound("message not found")
	}

	msgs, err := r.store.TaskHistory(ctx, rev.Message.TaskID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > reviewContext {
		msgs = msgs[len(msgs)-reviewContext:]
	}

	verdict, err := r.gen.ReviewQuality(ctx, rev.Message.Content, historyOf(msgs))
	if err != nil {
		metrics.TextgenFailures.WithLabelValues("review").Inc()
		r.logger.Warn("auto review failed",
			slog.Uint64("review_id", uint64(reviewID)),
			slog.String("error", err.Error()),
		)
		return rev, apperr.Upstream("automatic review unavailable; review stays pending", err)
	}

	rev.Status = models.ReviewRejected
	if verdict.Approved {
		rev.Status = models.ReviewApproved
	}
	rev.Feedback = strings.TrimSpace(verdict.Feedback)
	rev.ReviewerID = nil
	rev.UpdatedAt = r.now()
	if err := r.store.SaveReview(ctx, rev); err != nil {
		return nil, err
	}
	return r.store.FindReview(ctx, reviewID)
}

// Decide: keputusan manual oleh admin.
func (r *ReviewService) Decide(ctx context.Context, actor auth.Identity, reviewID uint, status models.ReviewStatus, feedback string) (*models.QAReview, error) {
	if !auth.Can(actor, auth.ActionDecideReview, auth.Resource{}) {
		return nil, apperr.Forbidden("only an admin can decide reviews")
	}
	if status != models.ReviewApproved && status != models.ReviewRejected {
		return nil, apperr.Validation("status must be approved or rejected")
	}
	rev, err := r.store.FindReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	reviewer := actor.UserID
	rev.Status = status
	rev.Feedback = strings.TrimSpace(feedback)
	rev.ReviewerID = &reviewer
	rev.UpdatedAt = r.now()
	if err := r.store.SaveReview(ctx, rev); err != nil {
		return nil, err
	}
	return r.store.FindReview(ctx, reviewID)
}
