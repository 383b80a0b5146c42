package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soham-0-0-7/ai-quizzer/internal/config"
	"github.com/soham-0-0-7/ai-quizzer/internal/models"
)

const maxPingRetries = 10

// ---------- Postgres ----------

func Connect(cfg *config.Config, log *logrus.Entry) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	for i := 1; i <= maxPingRetries; i++ {
		if err = sqlDB.Ping(); err == nil {
			break
		}
		log.Warnf("waiting for postgres... (%d/%d)", i, maxPingRetries)
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", maxPingRetries, err)
	}

	log.Info("database connected")
	return db, nil
}

// GormConfig stores all timestamps in UTC at microsecond precision, which is
// what postgres keeps, and translates driver errors such as unique violations
// into gorm's sentinel errors.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		TranslateError: true,
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Submission{},
	)
}

// SeedDevUser creates the development user from DEV_USER_EMAIL / DEV_USER_PASSWORD.
// It returns nil when the variables are not set.
func SeedDevUser(db *gorm.DB, cfg *config.Config, log *logrus.Entry) (*models.User, error) {
	if cfg.DevUserEmail == "" || cfg.DevUserPassword == "" {
		log.Info("seedDevUser: DEV_USER_EMAIL/DEV_USER_PASSWORD not set, skipping")
		return nil, nil
	}

	var existing models.User
	err := db.Where("email = ?", cfg.DevUserEmail).First(&existing).Error
	if err == nil {
		log.WithField("email", existing.Email).Info("seedDevUser: user already exists")
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("seedDevUser: lookup: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevUserPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seedDevUser: hash password: %w", err)
	}

	user := models.User{
		Email:        cfg.DevUserEmail,
		Username:     cfg.DevUserName,
		PasswordHash: string(hash),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("seedDevUser: create: %w", err)
	}

	log.WithField("email", user.Email).Info("seedDevUser: created dev user")
	return &user, nil
}

// ---------- Redis ----------

func ConnectRedis(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	var err error
	for i := 1; i <= maxPingRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			break
		}
		log.Warnf("waiting for redis... (%d/%d)", i, maxPingRetries)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable after %d attempts: %w", maxPingRetries, err)
	}

	log.Info("redis connected")
	return client, nil
}
