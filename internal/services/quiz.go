package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/cache"
	"github.com/soham-0-0-7/ai-quizzer/internal/llm"
	"github.com/soham-0-0-7/ai-quizzer/internal/metrics"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const maxQuestions = 20

type GenerateParams struct {
	Grade          int
	Subject        string
	TotalQuestions int
	MaxScore       float64
	Difficulty     string
}

func (p GenerateParams) Validate() error {
	if p.TotalQuestions <= 0 || p.MaxScore <= 0 {
		return apperr.Validation("TotalQuestions and MaxScore must be greater than zero.")
	}
	if p.TotalQuestions > maxQuestions {
		return apperr.Validation("TotalQuestions must not exceed 20.")
	}
	if p.Grade < 1 || p.Grade > 12 {
		return apperr.Validation("Grade must be between 1 and 12.")
	}
	if strings.TrimSpace(p.Subject) == "" {
		return apperr.Validation("Subject is required.")
	}
	if strings.TrimSpace(p.Difficulty) == "" {
		return apperr.Validation("Difficulty is required.")
	}
	return nil
}

type GenerateResult struct {
	Message string `json:"message"`
	QuizID  uint   `json:"quizId"`
}

type QuizView struct {
	Instructions string         `json:"instructions"`
	Grade        string         `json:"grade"`
	Subject      string         `json:"subject"`
	Difficulty   string         `json:"difficulty"`
	Questions    []QuestionView `json:"questions"`
}

// generatedQuiz is the model's answer. Each field holds "~"-separated records;
// options within a record are separated by "_".
type generatedQuiz struct {
	Questions  llm.String `json:"questions"`
	Options    llm.String `json:"options"`
	Correct    llm.String `json:"correct"`
	Points     llm.String `json:"points"`
	Difficulty llm.String `json:"difficulty"`
}

type QuizService struct {
	db        *gorm.DB
	reader    *QuizReader
	store     *cache.QuizStore
	dashboard *DashboardService
	generator llm.Generator
	log       *logrus.Entry
	metrics   *metrics.Metrics
}

func NewQuizService(db *gorm.DB, reader *QuizReader, store *cache.QuizStore, dashboard *DashboardService,
	generator llm.Generator, log *logrus.Entry, m *metrics.Metrics) *QuizService {
	return &QuizService{
		db:        db,
		reader:    reader,
		store:     store,
		dashboard: dashboard,
		generator: generator,
		log:       log.WithField("component", "quiz"),
		metrics:   m,
	}
}

// Generate asks the model for a quiz adapted to the user's history in the same
// grade and subject, stores it and appends it to the user's cached list.
func (s *QuizService) Generate(ctx context.Context, id Identity, p GenerateParams) (GenerateResult, error) {
	if err := p.Validate(); err != nil {
		return GenerateResult{}, err
	}
	p.Subject = strings.TrimSpace(p.Subject)
	p.Difficulty = strings.TrimSpace(p.Difficulty)
	log := s.log.WithFields(logrus.Fields{"user_id": id.UserID, "subject": p.Subject, "grade": p.Grade})

	history, err := s.history(ctx, id, p)
	if err != nil {
		return GenerateResult{}, err
	}

	text, err := s.generator.Generate(ctx, buildQuizPrompt(p, history))
	s.metrics.ObserveGenerator("quiz", err)
	if err != nil {
		return GenerateResult{}, apperr.External("Failed to generate quiz", err)
	}

	stripped := llm.StripToBraces(text)
	var generated generatedQuiz
	if err := json.Unmarshal([]byte(stripped), &generated); err != nil {
		raw := stripped
		if strings.TrimSpace(raw) == "" {
			raw = "<empty response>"
		}
		return GenerateResult{}, apperr.External("Quiz response is not valid JSON: "+raw, err)
	}

	questions := splitQuestions(generated, log)
	if len(questions) == 0 {
		return GenerateResult{}, apperr.External("Quiz response contained no questions", nil)
	}

	quiz := models.Quiz{
		UserID:     id.UserID,
		Subject:    p.Subject,
		Difficulty: p.Difficulty,
		Grade:      strconv.Itoa(p.Grade),
		Questions:  questions,
	}
	for _, q := range questions {
		quiz.TotalPoints += q.Points
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&quiz).Error
	})
	if err != nil {
		return GenerateResult{}, apperr.Internal("Failed to save quiz", err)
	}

	if err := s.store.Append(ctx, id.UserID, cache.FromModel(quiz)); err != nil {
		log.WithError(err).Warn("failed to append quiz to cache")
	}

	log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "questions": len(questions)}).Info("quiz generated")
	return GenerateResult{
		Message: fmt.Sprintf("quiz generated successfully with id %d, send get req to /quiz/view/%d", quiz.ID, quiz.ID),
		QuizID:  quiz.ID,
	}, nil
}

// View returns the quiz without correct answers.
func (s *QuizService) View(ctx context.Context, id Identity, quizID uint) (QuizView, error) {
	quiz, ok := s.reader.GetQuiz(ctx, id.UserID, quizID)
	if !ok {
		return QuizView{}, apperr.NotFound("Quiz not found / does not belong to you.")
	}
	if len(quiz.Questions) == 0 {
		return QuizView{}, apperr.NotFound("Quiz has no questions.")
	}

	var total float64
	questions := make([]QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		total += q.Points
		questions = append(questions, QuestionView{ID: q.ID, Problem: q.Problem, Options: q.Options, Points: q.Points})
	}

	return QuizView{
		Instructions: "to get hint for a question, send get req to /question/hint/[questionid], total points of the quiz are " +
			strconv.FormatFloat(total, 'f', -1, 64),
		Grade:      quiz.Grade,
		Subject:    quiz.Subject,
		Difficulty: quiz.Difficulty,
		Questions:  questions,
	}, nil
}

func (s *QuizService) history(ctx context.Context, id Identity, p GenerateParams) ([]EnrichedSubmission, error) {
	all, err := s.dashboard.All(ctx, id)
	if err != nil {
		return nil, err
	}

	grade := strconv.Itoa(p.Grade)
	relevant := make([]EnrichedSubmission, 0, len(all))
	for _, sub := range all {
		if sub.Grade == grade && strings.EqualFold(sub.Subject, p.Subject) {
			relevant = append(relevant, sub)
		}
	}
	return relevant, nil
}

func splitQuestions(g generatedQuiz, log *logrus.Entry) []models.Question {
	problems := splitRecords(string(g.Questions))
	options := splitRecords(string(g.Options))
	correct := splitRecords(string(g.Correct))
	points := splitRecords(string(g.Points))
	difficulty := splitRecords(string(g.Difficulty))

	for name, arr := range map[string][]string{
		"options": options, "correct": correct, "points": points, "difficulty": difficulty,
	} {
		if len(arr) < len(problems) {
			log.WithFields(logrus.Fields{"field": name, "have": len(arr), "want": len(problems)}).
				Warn("generated quiz field has fewer records than questions")
		}
	}

	out := make([]models.Question, 0, len(problems))
	for i, problem := range problems {
		if problem == "" {
			continue
		}
		out = append(out, models.Question{
			Problem:    problem,
			Options:    formatOptions(at(options, i)),
			Correct:    at(correct, i),
			Difficulty: at(difficulty, i),
			Points:     llm.ParseLeadingFloat(at(points, i)),
		})
	}
	return out
}

func splitRecords(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, "~")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// formatOptions turns "a _ b _ c" into "1. a, 2. b, 3. c".
func formatOptions(record string) string {
	var b strings.Builder
	n := 0
	for _, opt := range strings.Split(record, "_") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if n > 0 {
			b.WriteString(", ")
		}
		n++
		fmt.Fprintf(&b, "%d. %s", n, opt)
	}
	return b.String()
}

func at(arr []string, i int) string {
	if i < len(arr) {
		return arr[i]
	}
	return ""
}

func buildQuizPrompt(p GenerateParams, history []EnrichedSubmission) string {
	previous := "None"
	if len(history) > 0 {
		if data, err := json.Marshal(history); err == nil {
			previous = string(data)
		}
	}

	return fmt.Sprintf(`Generate a quiz with the following parameters:
Grade: %d
Subject: %s
Total Questions: %d
Max Score: %s
Difficulty: %s

Previous submissions for this grade and subject:
%s

Adapt the quiz to the past performance above when there is any, balancing easy, medium and hard questions.
Use between 2 and 6 options per question and distribute the points so they add up to the max score.

Respond with a single raw JSON object and nothing else, in exactly this shape:
{
  "questions": "question 1 ~ question 2 ~ ...",
  "options": "option a _ option b _ option c ~ option a _ option b ~ ...",
  "correct": "correct option for question 1 ~ correct option for question 2 ~ ...",
  "points": "points for question 1 ~ points for question 2 ~ ...",
  "difficulty": "difficulty of question 1 ~ difficulty of question 2 ~ ..."
}

Rules:
- Every field is a JSON string.
- "~" is used only to separate question records. Write "approximately" instead of using "~" anywhere else.
- "_" is used only to separate options inside the options field.
- Do not wrap the object in markdown fences and do not add any text before "{" or after "}".`,
		p.Grade, p.Subject, p.TotalQuestions, strconv.FormatFloat(p.MaxScore, 'f', -1, 64), p.Difficulty, previous)
}
