package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/cache"
	"github.com/soham-0-0-7/ai-quizzer/internal/llm"
	"github.com/soham-0-0-7/ai-quizzer/internal/mailer"
	"github.com/soham-0-0-7/ai-quizzer/internal/metrics"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const resultMailSubject = "Your Quiz Submission Result"

type Response struct {
	QuestionID   uint   `json:"questionId"`
	UserResponse string `json:"userResponse"`
}

type SubmitRequest struct {
	QuizID    uint       `json:"quizId"`
	Responses []Response `json:"responses"`
}

type EvaluationItem struct {
	Question      llm.String `json:"question"`
	MyAnswer      llm.String `json:"my-answer"`
	CorrectAnswer llm.String `json:"correct-answer"`
	PointsScored  llm.String `json:"points-scored"`
}

// Evaluation decodes the per-question breakdown. Anything other than an array
// becomes empty, and array elements that are not objects are skipped.
type Evaluation []EvaluationItem

func (e *Evaluation) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*e = Evaluation{}
		return nil
	}
	items := make(Evaluation, 0, len(raw))
	for _, r := range raw {
		var item EvaluationItem
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	*e = items
	return nil
}

// GradingResult is the model's verdict, returned to the caller as-is.
type GradingResult struct {
	Evaluation  Evaluation `json:"evaluation"`
	YourScore   llm.Number `json:"your-score"`
	MaxMarks    llm.Number `json:"max-marks"`
	Suggestions llm.String `json:"suggestions"`
	Grade       llm.String `json:"grade"`
}

// MailQueue accepts jobs without blocking.
type MailQueue interface {
	Enqueue(job mailer.Job) bool
}

type SubmissionService struct {
	db        *gorm.DB
	reader    *QuizReader
	generator llm.Generator
	mail      MailQueue
	log       *logrus.Entry
	metrics   *metrics.Metrics
}

func NewSubmissionService(db *gorm.DB, reader *QuizReader, generator llm.Generator, mail MailQueue,
	log *logrus.Entry, m *metrics.Metrics) *SubmissionService {
	return &SubmissionService{
		db:        db,
		reader:    reader,
		generator: generator,
		mail:      mail,
		log:       log.WithField("component", "submission"),
		metrics:   m,
	}
}

// Submit grades the answers, stores one Submission whatever the model returned,
// and queues the result email.
func (s *SubmissionService) Submit(ctx context.Context, id Identity, req SubmitRequest) (GradingResult, error) {
	if req.QuizID == 0 {
		return GradingResult{}, apperr.Validation("quizId is required.")
	}
	log := s.log.WithFields(logrus.Fields{"user_id": id.UserID, "quiz_id": req.QuizID})

	quiz, ok := s.reader.GetQuiz(ctx, id.UserID, req.QuizID)
	if !ok {
		return GradingResult{}, apperr.NotFound("Quiz not found.")
	}

	var total float64
	for _, q := range quiz.Questions {
		total += q.Points
	}

	result := s.grade(ctx, log, quiz, req.Responses, total)

	myScore := float64(result.YourScore)
	evaluation, err := json.Marshal(result)
	if err != nil {
		return GradingResult{}, apperr.Internal("Failed to encode evaluation", err)
	}

	sub := models.Submission{
		UserID:         id.UserID,
		QuizID:         quiz.QuizID,
		TotalScore:     total,
		MyScore:        myScore,
		Subject:        quiz.Subject,
		Gradepoint:     gradepoint(string(result.Grade), myScore, total),
		Grade:          quiz.Grade,
		Suggestions:    string(result.Suggestions),
		UserAnswers:    joinAnswers(req.Responses),
		QuestionPoints: joinPoints(result.Evaluation),
		Evaluation:     datatypes.JSON(evaluation),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior int64
		if err := tx.Model(&models.Submission{}).
			Where("user_id = ? AND quiz_id = ?", id.UserID, quiz.QuizID).
			Count(&prior).Error; err != nil {
			return err
		}
		sub.Tries = int(prior) + 1
		return tx.Create(&sub).Error
	})
	if err != nil {
		return GradingResult{}, apperr.Internal("Failed to save submission", err)
	}

	s.queueResultMail(log, id, result)

	log.WithFields(logrus.Fields{"submission_id": sub.ID, "tries": sub.Tries, "gradepoint": sub.Gradepoint}).Info("submission graded")
	return result, nil
}

// grade never fails; anything unusable from the model yields a zero-score result.
func (s *SubmissionService) grade(ctx context.Context, log *logrus.Entry, quiz *cache.CachedQuiz,
	responses []Response, total float64) GradingResult {
	fallback := GradingResult{
		Evaluation:  Evaluation{},
		YourScore:   0,
		MaxMarks:    llm.Number(total),
		Suggestions: "No suggestions available.",
		Grade:       "F",
	}

	text, err := s.generator.Generate(ctx, buildGradingPrompt(quiz, responses))
	s.metrics.ObserveGenerator("grading", err)
	if err != nil {
		log.WithError(err).Warn("grading call failed, using fallback result")
		return fallback
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("grading response empty, using fallback result")
		return fallback
	}

	var result GradingResult
	if err := json.Unmarshal([]byte(llm.StripToBraces(text)), &result); err != nil {
		log.WithError(err).WithField("response", llm.Truncate(text, 200)).Warn("grading response not decodable, using fallback result")
		return fallback
	}
	if result.Evaluation == nil {
		result.Evaluation = Evaluation{}
	}
	return result
}

func (s *SubmissionService) queueResultMail(log *logrus.Entry, id Identity, result GradingResult) {
	if s.mail == nil || id.Email == "" {
		return
	}
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.WithError(err).Warn("failed to render result email")
		return
	}
	if !s.mail.Enqueue(mailer.Job{To: id.Email, Subject: resultMailSubject, Body: string(body)}) {
		log.Warn("result email not queued")
	}
}

// gradepoint keeps the model's grade when it is a letter A-F, optionally with
// a +/- modifier, and falls back to percentage breakpoints otherwise.
func gradepoint(modelGrade string, myScore, total float64) string {
	g := strings.TrimSpace(modelGrade)
	r, size := utf8.DecodeRuneInString(g)
	r = unicode.ToUpper(r)
	if r >= 'A' && r <= 'F' && strings.Trim(g[size:], "+-") == "" {
		return string(r)
	}
	return letterGrade(myScore, total)
}

func letterGrade(myScore, total float64) string {
	var percent float64
	if total != 0 {
		percent = myScore / total * 100
	}
	switch {
	case percent >= 90:
		return "A"
	case percent >= 80:
		return "B"
	case percent >= 70:
		return "C"
	case percent >= 60:
		return "D"
	case percent >= 50:
		return "E"
	default:
		return "F"
	}
}

func joinAnswers(responses []Response) string {
	answers := make([]string, 0, len(responses))
	for _, r := range responses {
		answers = append(answers, strings.ToUpper(strings.TrimSpace(r.UserResponse)))
	}
	return strings.Join(answers, " ~ ")
}

// joinPoints keeps the scored part of "2/5" for every item that has one.
func joinPoints(items []EvaluationItem) string {
	points := make([]string, 0, len(items))
	for _, item := range items {
		scored := strings.TrimSpace(string(item.PointsScored))
		if scored == "" {
			continue
		}
		before, _, _ := strings.Cut(scored, "/")
		points = append(points, strconv.FormatFloat(llm.ParseLeadingFloat(before), 'f', -1, 64))
	}
	return strings.Join(points, " ~ ")
}

type answerKeyItem struct {
	QuestionID uint    `json:"questionId"`
	Problem    string  `json:"problem"`
	Options    string  `json:"options"`
	Correct    string  `json:"correct"`
	Points     float64 `json:"points"`
	Difficulty string  `json:"difficulty"`
}

func buildGradingPrompt(quiz *cache.CachedQuiz, responses []Response) string {
	key := make([]answerKeyItem, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		key = append(key, answerKeyItem{
			QuestionID: q.ID,
			Problem:    q.Problem,
			Options:    q.Options,
			Correct:    q.Correct,
			Points:     q.Points,
			Difficulty: q.Difficulty,
		})
	}
	if responses == nil {
		responses = []Response{}
	}
	keyJSON, _ := json.Marshal(key)
	answersJSON, _ := json.Marshal(responses)

	return fmt.Sprintf(`Evaluate the following quiz submission.
Answer key: %s
----------------------------------------
Answers given by the student: %s

Return only a JSON object in this format:
{
  "evaluation": [{"question": "...", "my-answer": "...", "correct-answer": "...", "points-scored": "2/5"}],
  "your-score": 0,
  "max-marks": 0,
  "suggestions": "1. ..., 2. ...",
  "grade": "A|B|C|D|E|F"
}`, keyJSON, answersJSON)
}
