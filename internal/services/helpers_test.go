package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/soham-0-0-7/ai-quizzer/internal/cache"
	"github.com/soham-0-0-7/ai-quizzer/internal/database"
	"github.com/soham-0-0-7/ai-quizzer/internal/logger"
	"github.com/soham-0-0-7/ai-quizzer/internal/mailer"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const testSecret = "test-secret"

// fakeGenerator replays canned responses in order, repeating the last one.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", nil
	}
	resp := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return resp, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type recordingMail struct {
	mu   sync.Mutex
	jobs []mailer.Job
	full bool
}

func (m *recordingMail) Enqueue(job mailer.Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return false
	}
	m.jobs = append(m.jobs, job)
	return true
}

func (m *recordingMail) sent() []mailer.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Job(nil), m.jobs...)
}

type testEnv struct {
	db        *gorm.DB
	mr        *miniredis.Miniredis
	redis     *redis.Client
	store     *cache.QuizStore
	blacklist *cache.Blacklist
	gen       *fakeGenerator
	mail      *recordingMail

	reader      *QuizReader
	auth        *AuthService
	dashboard   *DashboardService
	quizzes     *QuizService
	submissions *SubmissionService
	leaderboard *LeaderboardService
	hints       *HintService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), database.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.Discard()
	e := &testEnv{
		db:        db,
		mr:        mr,
		redis:     client,
		store:     cache.NewQuizStore(client),
		blacklist: cache.NewBlacklist(client),
		gen:       &fakeGenerator{},
		mail:      &recordingMail{},
	}
	e.reader = NewQuizReader(db, e.store, log, nil)
	e.auth = NewAuthService(db, e.blacklist, e.store, e.reader, testSecret, time.Hour, log)
	e.dashboard = NewDashboardService(db, e.reader, log)
	e.quizzes = NewQuizService(db, e.reader, e.store, e.dashboard, e.gen, log, nil)
	e.submissions = NewSubmissionService(db, e.reader, e.gen, e.mail, log, nil)
	e.leaderboard = NewLeaderboardService(db)
	e.hints = NewHintService(db, e.gen, log, nil)
	return e
}

func (e *testEnv) createUser(t *testing.T, email, username, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Email: email, Username: username, PasswordHash: string(hash)}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) createQuiz(t *testing.T, userID uint, subject, grade string, points ...float64) models.Quiz {
	t.Helper()
	quiz := models.Quiz{UserID: userID, Subject: subject, Difficulty: "medium", Grade: grade}
	for i, p := range points {
		quiz.Questions = append(quiz.Questions, models.Question{
			Problem:    "Question " + string(rune('A'+i)),
			Options:    "1. yes, 2. no",
			Correct:    "yes",
			Difficulty: "medium",
			Points:     p,
		})
		quiz.TotalPoints += p
	}
	require.NoError(t, e.db.Create(&quiz).Error)
	return quiz
}

func identityOf(u models.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Username: u.Username}
}
