package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const fiveQuestionQuiz = "Sure, here it is:\n```json\n" + `{
  "questions": "What is 2+2? ~ What is 3*3? ~ What is 10/2? ~ What is 7-5? ~ What is 1+1?",
  "options": "3 _ 4 _ 5 ~ 6 _ 9 ~ 2 _ 5 _ ~ 2 _ 3 ~ 1 _ 2",
  "correct": "4 ~ 9 ~ 5 ~ 2 ~ 2",
  "points": "2 ~ 2 ~ 2 ~ 2 ~ 2",
  "difficulty": "easy ~ easy ~ medium ~ medium ~ hard"
}` + "\n```"

func validParams() GenerateParams {
	return GenerateParams{Grade: 5, Subject: "Math", TotalQuestions: 5, MaxScore: 10, Difficulty: "medium"}
}

func TestGenerateParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GenerateParams)
		want   string
	}{
		{"zero questions", func(p *GenerateParams) { p.TotalQuestions = 0 }, "TotalQuestions and MaxScore must be greater than zero."},
		{"zero score", func(p *GenerateParams) { p.MaxScore = 0 }, "TotalQuestions and MaxScore must be greater than zero."},
		{"too many questions", func(p *GenerateParams) { p.TotalQuestions = 21 }, "TotalQuestions must not exceed 20."},
		{"grade too low", func(p *GenerateParams) { p.Grade = 0 }, "Grade must be between 1 and 12."},
		{"grade too high", func(p *GenerateParams) { p.Grade = 13 }, "Grade must be between 1 and 12."},
		{"blank subject", func(p *GenerateParams) { p.Subject = "  " }, "Subject is required."},
		{"blank difficulty", func(p *GenerateParams) { p.Difficulty = "" }, "Difficulty is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
			assert.Equal(t, tt.want, apperr.MessageOf(err))
		})
	}
	assert.NoError(t, validParams().Validate())
}

func TestGenerateCreatesQuizAndQuestions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.createUser(t, "a@example.com", "alice", "password123")
	e.gen.responses = []string{fiveQuestionQuiz}

	res, err := e.quizzes.Generate(ctx, identityOf(user), validParams())
	require.NoError(t, err)
	assert.NotZero(t, res.QuizID)
	assert.Contains(t, res.Message, "send get req to /quiz/view/")

	var quiz models.Quiz
	require.NoError(t, e.db.Preload("Questions", orderQuestions).First(&quiz, res.QuizID).Error)
	assert.Equal(t, user.ID, quiz.UserID)
	assert.Equal(t, "5", quiz.Grade)
	assert.Equal(t, 10.0, quiz.TotalPoints)
	require.Len(t, quiz.Questions, 5)
	assert.Equal(t, "What is 2+2?", quiz.Questions[0].Problem)
	assert.Equal(t, "1. 3, 2. 4, 3. 5", quiz.Questions[0].Options)
	assert.Equal(t, "1. 2, 2. 5", quiz.Questions[2].Options, "blank options are dropped")
	assert.Equal(t, "hard", quiz.Questions[4].Difficulty)

	list, err := e.store.Load(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.QuizID, list[0].QuizID)
	assert.Len(t, list[0].Questions, 5)
}

func TestGenerateAppendsToExistingCache(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.createUser(t, "a@example.com", "alice", "password123")
	e.createQuiz(t, user.ID, "Math", "5", 1)
	_, err := e.reader.Warm(ctx, user.ID)
	require.NoError(t, err)

	e.gen.responses = []string{fiveQuestionQuiz}
	res, err := e.quizzes.Generate(ctx, identityOf(user), validParams())
	require.NoError(t, err)

	list, err := e.store.Load(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, res.QuizID, list[1].QuizID)
}

func TestGenerateRejectsInvalidParamsWithoutSideEffects(t *testing.T) {
	e := newTestEnv(t)
	user := e.createUser(t, "a@example.com", "alice", "password123")
	p := validParams()
	p.TotalQuestions = 21

	_, err := e.quizzes.Generate(context.Background(), identityOf(user), p)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.Zero(t, e.gen.calls())

	var count int64
	require.NoError(t, e.db.Model(&models.Quiz{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateAcceptsArraysAndNumbers(t *testing.T) {
	e := newTestEnv(t)
	user := e.createUser(t, "a@example.com", "alice", "password123")
	e.gen.responses = []string{`{"questions":["Q1","Q2"],"options":["x _ y","z _ w"],"correct":["x","z"],"points":[3,"4 points"],"difficulty":"easy ~ hard"}`}

	res, err := e.quizzes.Generate(context.Background(), identityOf(user), validParams())
	require.NoError(t, err)

	var quiz models.Quiz
	require.NoError(t, e.db.Preload("Questions", orderQuestions).First(&quiz, res.QuizID).Error)
	assert.Equal(t, 7.0, quiz.TotalPoints)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "1. z, 2. w", quiz.Questions[1].Options)
	assert.Equal(t, 4.0, quiz.Questions[1].Points)
}

func TestGenerateShortFieldsYieldBlanks(t *testing.T) {
	e := newTestEnv(t)
	user := e.createUser(t, "a@example.com", "alice", "password123")
	e.gen.responses = []string{`{"questions":"Q1 ~ ~ Q3","options":"a _ b","correct":"a","points":"5","difficulty":"easy"}`}

	res, err := e.quizzes.Generate(context.Background(), identityOf(user), validParams())
	require.NoError(t, err)

	var quiz models.Quiz
	require.NoError(t, e.db.Preload("Questions", orderQuestions).First(&quiz, res.QuizID).Error)
	require.Len(t, quiz.Questions, 2, "blank question segment is skipped")
	assert.Equal(t, "Q3", quiz.Questions[1].Problem)
	assert.Empty(t, quiz.Questions[1].Options)
	assert.Zero(t, quiz.Questions[1].Points)
	assert.Equal(t, 5.0, quiz.TotalPoints)
}

func TestGenerateModelFailures(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		contains string
	}{
		{"not json", "{questions: nope}", nil, "Quiz response is not valid JSON: {questions: nope}"},
		{"empty response", "", nil, "Quiz response is not valid JSON: <empty response>"},
		{"no questions", `{"questions":"","options":""}`, nil, "Quiz response contained no questions"},
		{"generator down", "", errors.New("timeout"), "Failed to generate quiz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			user := e.createUser(t, "a@example.com", "alice", "password123")
			e.gen.responses = []string{tt.response}
			e.gen.err = tt.err

			_, err := e.quizzes.Generate(context.Background(), identityOf(user), validParams())
			assert.Equal(t, http.StatusBadGateway, apperr.StatusOf(err))
			assert.Contains(t, apperr.MessageOf(err), tt.contains)

			var count int64
			require.NoError(t, e.db.Model(&models.Quiz{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestGeneratePromptIncludesMatchingHistory(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.createUser(t, "a@example.com", "alice", "password123")
	quiz := e.createQuiz(t, user.ID, "Math", "5", 1)
	require.NoError(t, e.db.Create(&models.Submission{
		UserID: user.ID, QuizID: quiz.ID, Subject: "MATH", Grade: "5", Suggestions: "practice fractions", Tries: 1,
	}).Error)
	require.NoError(t, e.db.Create(&models.Submission{
		UserID: user.ID, QuizID: quiz.ID, Subject: "Math", Grade: "6", Suggestions: "other grade", Tries: 2,
	}).Error)

	e.gen.responses = []string{fiveQuestionQuiz}
	_, err := e.quizzes.Generate(ctx, identityOf(user), validParams())
	require.NoError(t, err)

	require.Equal(t, 1, e.gen.calls())
	prompt := e.gen.prompts[0]
	assert.Contains(t, prompt, "practice fractions")
	assert.NotContains(t, prompt, "other grade")
}

func TestGeneratePromptWithoutHistory(t *testing.T) {
	prompt := buildQuizPrompt(validParams(), nil)
	assert.Contains(t, prompt, "None")
	assert.Contains(t, prompt, "Max Score: 10")
}

func TestViewQuiz(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.createUser(t, "a@example.com", "alice", "password123")
	quiz := e.createQuiz(t, user.ID, "Math", "5", 2, 2.5)

	view, err := e.quizzes.View(ctx, identityOf(user), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "to get hint for a question, send get req to /question/hint/[questionid], total points of the quiz are 4.5", view.Instructions)
	assert.Equal(t, "Math", view.Subject)
	require.Len(t, view.Questions, 2)

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "correct"), "correct answers must not be exposed")
}

func TestViewQuizErrors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.createUser(t, "a@example.com", "alice", "password123")
	other := e.createUser(t, "b@example.com", "bob", "password123")
	quiz := e.createQuiz(t, owner.ID, "Math", "5", 1)
	empty := e.createQuiz(t, owner.ID, "Math", "5")

	_, err := e.quizzes.View(ctx, identityOf(other), quiz.ID)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
	assert.Equal(t, "Quiz not found / does not belong to you.", apperr.MessageOf(err))

	_, err = e.quizzes.View(ctx, identityOf(owner), 9999)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	_, err = e.quizzes.View(ctx, identityOf(owner), empty.ID)
	assert.Equal(t, "Quiz has no questions.", apperr.MessageOf(err))
}

func TestFormatOptions(t *testing.T) {
	assert.Equal(t, "1. a, 2. b", formatOptions(" a _ b "))
	assert.Equal(t, "1. only", formatOptions("_ only _"))
	assert.Equal(t, "", formatOptions(""))
}
