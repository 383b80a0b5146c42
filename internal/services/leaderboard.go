package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
)

const leaderboardSize = 10

// ratioOrder ranks by score over total, with a zero total ranking as 0%.
const ratioOrder = "CASE WHEN submissions.total_score > 0 " +
	"THEN submissions.my_score / submissions.total_score ELSE 0 END DESC"

type LeaderboardRow struct {
	UserID       uint      `json:"userId"`
	Username     string    `json:"username"`
	SubmissionID uint      `json:"submissionId"`
	Subject      string    `json:"subject"`
	Grade        string    `json:"grade"`
	MyScore      float64   `json:"myScore"`
	TotalScore   float64   `json:"totalScore"`
	Percentage   float64   `json:"percentage"`
	SubmittedOn  time.Time `json:"submittedOn"`
}

type leaderboardRecord struct {
	ID          uint
	UserID      uint
	Username    string
	Subject     string
	Grade       string
	MyScore     float64
	TotalScore  float64
	SubmittedOn time.Time
}

// LeaderboardService ranks submissions across all users.
type LeaderboardService struct {
	db *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// Top returns the ten best submissions by percentage. At least one of subject
// or grade is required.
func (s *LeaderboardService) Top(ctx context.Context, subject, grade string) ([]LeaderboardRow, error) {
	subject = strings.TrimSpace(subject)
	grade = strings.TrimSpace(grade)
	if subject == "" && grade == "" {
		return nil, apperr.Validation("Provide at least subject or grade as query parameters.")
	}

	q := s.db.WithContext(ctx).
		Table("submissions").
		Select("submissions.id, submissions.user_id, users.username, submissions.subject, submissions.grade, " +
			"submissions.my_score, submissions.total_score, submissions.submitted_on").
		Joins("JOIN users ON users.id = submissions.user_id")
	if subject != "" {
		q = q.Where("LOWER(submissions.subject) IN ?", subjectVariants(subject))
	}
	if grade != "" {
		q = q.Where("submissions.grade = ?", grade)
	}

	var records []leaderboardRecord
	err := q.Order(ratioOrder).
		Order("submissions.my_score DESC").
		Order("submissions.id ASC").
		Limit(leaderboardSize).
		Scan(&records).Error
	if err != nil {
		return nil, apperr.Internal("Failed to load leaderboard", err)
	}

	rows := make([]LeaderboardRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, LeaderboardRow{
			UserID:       r.UserID,
			Username:     r.Username,
			SubmissionID: r.ID,
			Subject:      r.Subject,
			Grade:        r.Grade,
			MyScore:      r.MyScore,
			TotalScore:   r.TotalScore,
			Percentage:   percentage(r.MyScore, r.TotalScore),
			SubmittedOn:  r.SubmittedOn.UTC(),
		})
	}

	return rows, nil
}

// subjectVariants matches "math" against "math" and "maths", and "maths" against both too.
func subjectVariants(subject string) []string {
	s := strings.ToLower(subject)
	if strings.HasSuffix(s, "s") {
		return []string{s, strings.TrimSuffix(s, "s")}
	}
	return []string{s, s + "s"}
}

// percentage is myScore/totalScore*100 rounded to two places, 0 when totalScore is 0.
func percentage(myScore, totalScore float64) float64 {
	if totalScore == 0 {
		return 0
	}
	p, _ := decimal.NewFromFloat(myScore).
		Div(decimal.NewFromFloat(totalScore)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return p
}
