package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/llm"
	"github.com/soham-0-0-7/ai-quizzer/internal/metrics"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const noHint = "No hint available."

type HintResult struct {
	Question string `json:"question"`
	Hint     string `json:"hint"`
}

type HintService struct {
	db        *gorm.DB
	generator llm.Generator
	log       *logrus.Entry
	metrics   *metrics.Metrics
}

func NewHintService(db *gorm.DB, generator llm.Generator, log *logrus.Entry, m *metrics.Metrics) *HintService {
	return &HintService{db: db, generator: generator, log: log.WithField("component", "hint"), metrics: m}
}

// Hint asks for a one-line nudge on a question from one of the caller's quizzes.
func (s *HintService) Hint(ctx context.Context, id Identity, questionID uint) (HintResult, error) {
	var question models.Question
	err := s.db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = questions.quiz_id").
		Where("questions.id = ? AND quizzes.user_id = ?", questionID, id.UserID).
		First(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return HintResult{}, apperr.NotFound("Question not found")
	}
	if err != nil {
		return HintResult{}, apperr.Internal("Failed to load question", err)
	}

	text, err := s.generator.Generate(ctx, buildHintPrompt(question))
	s.metrics.ObserveGenerator("hint", err)
	if err != nil {
		s.log.WithFields(logrus.Fields{"user_id": id.UserID, "question_id": questionID}).WithError(err).Warn("hint generation failed")
		return HintResult{}, apperr.External("Failed to generate hint", err)
	}

	hint := strings.TrimSpace(text)
	if hint == "" {
		hint = noHint
	}
	return HintResult{Question: question.Problem, Hint: hint}, nil
}

func buildHintPrompt(q models.Question) string {
	return fmt.Sprintf(`You are an expert teacher. Give a single-line hint that helps a student answer the question below.
Do not give the answer and do not reveal the correct option.
Question: %s
Options: %s
Difficulty: %s
Return only the hint as plain text.`, q.Problem, q.Options, q.Difficulty)
}
