package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

var (
	dayPattern   = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{2}|\d{4})$`)
	rangePattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{2}|\d{4})$`)
)

// QuestionView is a question without its correct answer.
type QuestionView struct {
	ID      uint    `json:"id"`
	Problem string  `json:"problem"`
	Options string  `json:"options"`
	Points  float64 `json:"points"`
}

type EnrichedSubmission struct {
	SubmissionID   uint           `json:"submissionId"`
	SubmittedOn    string         `json:"submittedOn"`
	Gradepoint     string         `json:"gradepoint"`
	Grade          string         `json:"grade"`
	Subject        string         `json:"subject"`
	MyScore        float64        `json:"myScore"`
	TotalScore     float64        `json:"totalScore"`
	Tries          int            `json:"tries"`
	Suggestions    string         `json:"suggestions"`
	UserAnswers    string         `json:"userAnswers"`
	QuestionPoints string         `json:"questionPoints"`
	Quiz           []QuestionView `json:"quiz"`
}

// DashboardService lists a user's own submissions with their quiz questions.
type DashboardService struct {
	db     *gorm.DB
	reader *QuizReader
	log    *logrus.Entry
}

func NewDashboardService(db *gorm.DB, reader *QuizReader, log *logrus.Entry) *DashboardService {
	return &DashboardService{db: db, reader: reader, log: log.WithField("component", "dashboard")}
}

func (s *DashboardService) All(ctx context.Context, id Identity) ([]EnrichedSubmission, error) {
	return s.list(ctx, id, nil)
}

// ByGradepoint filters on the letter grade A-F, case-insensitively.
func (s *DashboardService) ByGradepoint(ctx context.Context, id Identity, letter string) ([]EnrichedSubmission, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 {
		return nil, apperr.Validation("Grade must be a single character.")
	}
	if !strings.Contains("ABCDEF", letter) {
		return nil, apperr.Validation("Grade must be between A and F.")
	}
	return s.list(ctx, id, func(q *gorm.DB) *gorm.DB {
		return q.Where("gradepoint = ?", letter)
	})
}

func (s *DashboardService) BySubject(ctx context.Context, id Identity, subject string) ([]EnrichedSubmission, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apperr.Validation("Subject must be a non-empty string.")
	}
	return s.list(ctx, id, func(q *gorm.DB) *gorm.DB {
		return q.Where("LOWER(subject) = ?", strings.ToLower(subject))
	})
}

// ByDay takes dd-mm-yy or dd-mm-yyyy and matches the whole UTC day.
func (s *DashboardService) ByDay(ctx context.Context, id Identity, date string) ([]EnrichedSubmission, error) {
	start, err := parseDate(dayPattern, date)
	if err != nil {
		return nil, apperr.Validation("Date must be in dd-mm-yy format.")
	}
	return s.between(ctx, id, start, endOfDay(start))
}

// ByRange takes dd/mm/yy or dd/mm/yyyy bounds, both inclusive.
func (s *DashboardService) ByRange(ctx context.Context, id Identity, from, to string) ([]EnrichedSubmission, error) {
	start, err := parseDate(rangePattern, from)
	if err != nil {
		return nil, apperr.Validation("Dates must be in dd/mm/yy format.")
	}
	last, err := parseDate(rangePattern, to)
	if err != nil {
		return nil, apperr.Validation("Dates must be in dd/mm/yy format.")
	}
	end := endOfDay(last)
	if start.After(end) {
		return nil, apperr.Validation("'from' date must not be after 'to' date.")
	}
	return s.between(ctx, id, start, end)
}

func (s *DashboardService) between(ctx context.Context, id Identity, start, end time.Time) ([]EnrichedSubmission, error) {
	return s.list(ctx, id, func(q *gorm.DB) *gorm.DB {
		return q.Where("submitted_on >= ? AND submitted_on <= ?", start, end)
	})
}

func (s *DashboardService) list(ctx context.Context, id Identity, filter func(*gorm.DB) *gorm.DB) ([]EnrichedSubmission, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", id.UserID)
	if filter != nil {
		q = filter(q)
	}

	var submissions []models.Submission
	if err := q.Order("submitted_on DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, apperr.Internal("Failed to load submissions", err)
	}

	out := make([]EnrichedSubmission, 0, len(submissions))
	for _, sub := range submissions {
		out = append(out, s.enrich(ctx, id, sub))
	}
	return out, nil
}

func (s *DashboardService) enrich(ctx context.Context, id Identity, sub models.Submission) EnrichedSubmission {
	questions := []QuestionView{}
	if quiz, ok := s.reader.GetQuiz(ctx, id.UserID, sub.QuizID); ok {
		for _, q := range quiz.Questions {
			questions = append(questions, QuestionView{ID: q.ID, Problem: q.Problem, Options: q.Options, Points: q.Points})
		}
	}

	return EnrichedSubmission{
		SubmissionID:   sub.ID,
		SubmittedOn:    formatDate(sub.SubmittedOn),
		Gradepoint:     sub.Gradepoint,
		Grade:          sub.Grade,
		Subject:        sub.Subject,
		MyScore:        sub.MyScore,
		TotalScore:     sub.TotalScore,
		Tries:          sub.Tries,
		Suggestions:    sub.Suggestions,
		UserAnswers:    sub.UserAnswers,
		QuestionPoints: sub.QuestionPoints,
		Quiz:           questions,
	}
}

// formatDate renders dd/mm/yy in UTC.
func formatDate(t time.Time) string {
	return t.UTC().Format("02/01/06")
}

func parseDate(pattern *regexp.Regexp, raw string) (time.Time, error) {
	m := pattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed date %q", raw)
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid calendar date %q", raw)
	}
	return t, nil
}

func endOfDay(start time.Time) time.Time {
	return start.Add(24*time.Hour - time.Millisecond)
}
