package models

import (
	"time"

	"gorm.io/datatypes"
)

// ---------- User ----------

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ---------- Quiz / Question ----------

type Quiz struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"index;not null"`
	Subject     string    `gorm:"size:255;not null"`
	Difficulty  string    `gorm:"size:64;not null"`
	Grade       string    `gorm:"size:16;not null"` // grade level kept as text
	TotalPoints float64   `gorm:"not null;default:0"`
	CreatedOn   time.Time `gorm:"autoCreateTime;index"`

	Questions []Question `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
}

type Question struct {
	ID         uint    `gorm:"primaryKey"`
	QuizID     uint    `gorm:"index;not null"`
	Problem    string  `gorm:"type:text;not null"`
	Options    string  `gorm:"type:text"` // "1. a, 2. b, ..."
	Correct    string  `gorm:"type:text"`
	Difficulty string  `gorm:"size:64"`
	Points     float64 `gorm:"not null;default:0"`
}

// ---------- Submission ----------

type Submission struct {
	ID             uint           `gorm:"primaryKey"`
	UserID         uint           `gorm:"index:idx_submissions_user_quiz;not null"`
	QuizID         uint           `gorm:"index:idx_submissions_user_quiz;not null"`
	TotalScore     float64        `gorm:"not null;default:0"`
	MyScore        float64        `gorm:"not null;default:0"`
	Subject        string         `gorm:"size:255;index"`
	Gradepoint     string         `gorm:"size:2"`  // letter A-F
	Grade          string         `gorm:"size:16"` // quiz grade level
	Tries          int            `gorm:"not null;default:1"`
	Suggestions    string         `gorm:"type:text"`
	UserAnswers    string         `gorm:"type:text"` // " ~ " joined
	QuestionPoints string         `gorm:"type:text"` // " ~ " joined
	Evaluation     datatypes.JSON // raw grading result
	SubmittedOn    time.Time      `gorm:"autoCreateTime;index"`
}
