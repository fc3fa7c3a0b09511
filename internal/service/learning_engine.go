package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
)

// LearningEngine records how users react to enhancements.
type LearningEngine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLearningEngine creates a LearningEngine. logger may be nil.
func NewLearningEngine(store Store, logger *slog.Logger) *LearningEngine {
	if logger == nil {
		logger = slog.Default()
	}

	return &LearningEngine{store: store, logger: logger, now: time.Now}
}

// ProcessFeedback writes the raw feedback row, its derived insight and, when the enhancement
// was helpful and acted on, the user's pattern strength. The writes are independent: a
// failure is logged and the others still run. Success reflects the raw feedback row.
func (l *LearningEngine) ProcessFeedback(
	ctx context.Context, userID, enhancementID string, fb models.FeedbackInput,
) models.FeedbackResult {
	now := l.now().UTC()
	feedbackID := uuid.Must(uuid.NewV7())

	var result models.FeedbackResult

	err := l.store.Insert(ctx, models.TableEnhancementFeedback, models.Record{
		"id":              feedbackID,
		"user_id":         userID,
		"enhancement_id":  enhancementID,
		"engaged":         fb.Engaged,
		"helpful":         fb.Helpful,
		"action_taken":    fb.ActionTaken,
		"business_impact": fb.BusinessImpact,
		"created_at":      now,
	})
	if err != nil {
		l.logger.Error("failed to store feedback", "user_id", userID, "enhancement_id", enhancementID, "error", err)
	} else {
		result.Success = true
		result.FeedbackID = &feedbackID
	}

	err = l.store.Insert(ctx, models.TableFeedbackInsights, models.Record{
		"id":                  uuid.Must(uuid.NewV7()),
		"feedback_id":         feedbackID,
		"user_id":             userID,
		"enhancement_id":      enhancementID,
		"was_engaging":        fb.Engaged,
		"was_helpful":         fb.Helpful,
		"led_to_action":       fb.ActionTaken,
		"had_business_impact": fb.BusinessImpact,
		"created_at":          now,
	})
	if err != nil {
		l.logger.Error("failed to store feedback insight", "user_id", userID, "enhancement_id", enhancementID, "error", err)
	} else {
		result.InsightRecorded = true
	}

	if fb.Helpful && fb.ActionTaken {
		err = l.store.Upsert(ctx, models.TableUserPatternStrength, "user_id", models.Record{
			"user_id":      userID,
			"strength":     models.StrengthIncreased,
			"last_updated": now,
		})
		if err != nil {
			l.logger.Error("failed to update pattern strength", "user_id", userID, "error", err)
		} else {
			result.StrengthUpdated = true
		}
	}

	return result
}

// GetFeedbackStats counts the user's feedback rows, optionally only those created at or after since.
func (l *LearningEngine) GetFeedbackStats(ctx context.Context, userID string, since *time.Time) (*models.FeedbackStats, error) {
	rows, err := l.store.List(ctx, models.TableEnhancementFeedback, models.Record{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	stats := &models.FeedbackStats{UserID: userID}

	for _, row := range rows {
		if since != nil {
			if created, ok := row["created_at"].(time.Time); ok && created.Before(*since) {
				continue
			}
		}

		stats.Total++

		if flag(row, "engaged") {
			stats.Engaged++
		}

		if flag(row, "helpful") {
			stats.Helpful++
		}

		if flag(row, "action_taken") {
			stats.ActionTaken++
		}

		if flag(row, "business_impact") {
			stats.BusinessImpact++
		}
	}

	return stats, nil
}

// GetPatternStrength returns the user's strength row or keelerrors.ErrNotFound.
func (l *LearningEngine) GetPatternStrength(ctx context.Context, userID string) (*models.UserPatternStrength, error) {
	rows, err := l.store.List(ctx, models.TableUserPatternStrength, models.Record{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list pattern strength: %w", err)
	}

	if len(rows) == 0 {
		return nil, keelerrors.NewNotFoundError("pattern strength", "")
	}

	row := rows[0]
	strength, _ := row["strength"].(string)
	updated, _ := row["last_updated"].(time.Time)

	return &models.UserPatternStrength{UserID: userID, Strength: strength, LastUpdated: updated}, nil
}

func flag(row models.Record, column string) bool {
	v, _ := row[column].(bool)

	return v
}
