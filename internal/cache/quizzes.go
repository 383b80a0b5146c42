package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const (
	QuizListTTL = time.Hour

	userKeyPrefix = "user:"
)

var (
	ErrMiss    = errors.New("cache miss")
	ErrCorrupt = errors.New("cache entry is not decodable")
)

// CachedQuestion and CachedQuiz are the only shape written under user:{id}:quizzes.
// Both the bulk rebuild and the incremental append go through Encode/Decode.
type CachedQuestion struct {
	ID         uint    `json:"id"`
	Problem    string  `json:"problem"`
	Options    string  `json:"options"`
	Correct    string  `json:"correct"`
	Difficulty string  `json:"difficulty"`
	Points     float64 `json:"points"`
}

type CachedQuiz struct {
	QuizID      uint             `json:"quizId"`
	Subject     string           `json:"subject"`
	Difficulty  string           `json:"difficulty"`
	Grade       string           `json:"grade"`
	TotalPoints float64          `json:"totalPoints"`
	CreatedOn   time.Time        `json:"createdOn"`
	UserID      uint             `json:"userId"`
	Questions   []CachedQuestion `json:"questions"`
}

func FromModel(q models.Quiz) CachedQuiz {
	questions := make([]CachedQuestion, 0, len(q.Questions))
	for _, item := range q.Questions {
		questions = append(questions, CachedQuestion{
			ID:         item.ID,
			Problem:    item.Problem,
			Options:    item.Options,
			Correct:    item.Correct,
			Difficulty: item.Difficulty,
			Points:     item.Points,
		})
	}
	return CachedQuiz{
		QuizID:      q.ID,
		Subject:     q.Subject,
		Difficulty:  q.Difficulty,
		Grade:       q.Grade,
		TotalPoints: q.TotalPoints,
		CreatedOn:   q.CreatedOn.UTC(),
		UserID:      q.UserID,
		Questions:   questions,
	}
}

func FromModels(quizzes []models.Quiz) []CachedQuiz {
	out := make([]CachedQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, FromModel(q))
	}
	return out
}

func Encode(quizzes []CachedQuiz) ([]byte, error) {
	if quizzes == nil {
		quizzes = []CachedQuiz{}
	}
	return json.Marshal(quizzes)
}

func Decode(data []byte) ([]CachedQuiz, error) {
	var quizzes []CachedQuiz
	if err := json.Unmarshal(data, &quizzes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return quizzes, nil
}

// Find does a linear scan for quizID.
func Find(quizzes []CachedQuiz, quizID uint) (CachedQuiz, bool) {
	for _, q := range quizzes {
		if q.QuizID == quizID {
			return q, true
		}
	}
	return CachedQuiz{}, false
}

func QuizListKey(userID uint) string {
	return userKeyPrefix + strconv.FormatUint(uint64(userID), 10) + ":quizzes"
}

func submissionListKey(userID uint) string {
	return userKeyPrefix + strconv.FormatUint(uint64(userID), 10) + ":submissions"
}

// ---------- QuizStore ----------

type QuizStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewQuizStore(client redis.Cmdable) *QuizStore {
	return &QuizStore{client: client, ttl: QuizListTTL}
}

// Load returns ErrMiss when the key is absent and ErrCorrupt when it cannot be decoded.
func (s *QuizStore) Load(ctx context.Context, userID uint) ([]CachedQuiz, error) {
	data, err := s.client.Get(ctx, QuizListKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz list: %w", err)
	}
	return Decode(data)
}

// Replace overwrites the whole list with a fresh expiry.
func (s *QuizStore) Replace(ctx context.Context, userID uint, quizzes []CachedQuiz) error {
	data, err := Encode(quizzes)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, QuizListKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store quiz list: %w", err)
	}
	return nil
}

// Append reads the current list (absent or corrupt counts as empty), appends quiz
// and rewrites the key. The read-modify-write is not atomic.
func (s *QuizStore) Append(ctx context.Context, userID uint, quiz CachedQuiz) error {
	quizzes, err := s.Load(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrMiss), errors.Is(err, ErrCorrupt):
		quizzes = nil
	default:
		return err
	}
	return s.Replace(ctx, userID, append(quizzes, quiz))
}

// Forget drops everything cached for the user.
func (s *QuizStore) Forget(ctx context.Context, userID uint) error {
	if err := s.client.Del(ctx, QuizListKey(userID), submissionListKey(userID)).Err(); err != nil {
		return fmt.Errorf("forget user cache: %w", err)
	}
	return nil
}
