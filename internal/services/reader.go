package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/cache"
	"github.com/soham-0-0-7/ai-quizzer/internal/metrics"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

// QuizReader serves a user's quizzes from the redis list and falls back to
// postgres, repairing the cache on the way out.
type QuizReader struct {
	db      *gorm.DB
	store   *cache.QuizStore
	log     *logrus.Entry
	metrics *metrics.Metrics
}

func NewQuizReader(db *gorm.DB, store *cache.QuizStore, log *logrus.Entry, m *metrics.Metrics) *QuizReader {
	return &QuizReader{db: db, store: store, log: log.WithField("component", "quiz_reader"), metrics: m}
}

// GetQuiz returns the quiz only if userID owns it. Not found, not owned and
// infrastructure failures all report false.
func (r *QuizReader) GetQuiz(ctx context.Context, userID, quizID uint) (*cache.CachedQuiz, bool) {
	log := r.log.WithFields(logrus.Fields{"user_id": userID, "quiz_id": quizID})

	quizzes, err := r.store.Load(ctx, userID)
	switch {
	case err == nil:
		if quiz, ok := cache.Find(quizzes, quizID); ok {
			r.metrics.ObserveCacheLookup(metrics.CacheHit)
			return &quiz, true
		}
		r.metrics.ObserveCacheLookup(metrics.CacheMiss)
	case errors.Is(err, cache.ErrMiss):
		r.metrics.ObserveCacheLookup(metrics.CacheMiss)
	default:
		r.metrics.ObserveCacheLookup(metrics.CacheError)
		log.WithError(err).Warn("quiz cache unreadable, falling back to database")
	}

	var quiz models.Quiz
	err = r.db.WithContext(ctx).
		Preload("Questions", orderQuestions).
		Where("id = ? AND user_id = ?", quizID, userID).
		First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug("quiz not found in database")
		return nil, false
	}
	if err != nil {
		log.WithError(err).Error("failed to load quiz from database")
		return nil, false
	}

	if _, err := r.Warm(ctx, userID); err != nil {
		log.WithError(err).Warn("failed to rebuild quiz cache")
	}

	cached := cache.FromModel(quiz)
	return &cached, true
}

// Warm rebuilds user:{id}:quizzes from the database, newest quiz first.
func (r *QuizReader) Warm(ctx context.Context, userID uint) ([]cache.CachedQuiz, error) {
	var quizzes []models.Quiz
	err := r.db.WithContext(ctx).
		Preload("Questions", orderQuestions).
		Where("user_id = ?", userID).
		Order("created_on DESC").
		Order("id DESC").
		Find(&quizzes).Error
	if err != nil {
		return nil, fmt.Errorf("load user quizzes: %w", err)
	}

	cached := cache.FromModels(quizzes)
	if err := r.store.Replace(ctx, userID, cached); err != nil {
		return cached, err
	}
	return cached, nil
}

func orderQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("questions.id ASC")
}
