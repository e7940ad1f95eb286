package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type identityRecord struct {
	Shape      string `gorm:"primaryKey"`
	UserID     string
	Role       string
	Token      string
	ResolvedAt time.Time
	UpdatedAt  time.Time
}

func (identityRecord) TableName() string { return "identities" }

type sqliteStore struct {
	db    *gorm.DB
	shape string
}

// NewSQLiteStore opens (and migrates) the local identity mirror file. One
// row per shape, so a customer and an admin daemon can share the file.
func NewSQLiteStore(path, shape string) (Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	if err := db.AutoMigrate(&identityRecord{}); err != nil {
		return nil, fmt.Errorf("migrate identity store: %w", err)
	}
	return &sqliteStore{db: db, shape: shape}, nil
}

func (s *sqliteStore) Load(ctx context.Context) (*Identity, error) {
	var record identityRecord
	err := s.db.WithContext(ctx).First(&record, "shape = ?", s.shape).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	return &Identity{
		UserID:     record.UserID,
		Role:       record.Role,
		Token:      record.Token,
		ResolvedAt: record.ResolvedAt,
	}, nil
}

func (s *sqliteStore) Save(ctx context.Context, id Identity) error {
	record := identityRecord{
		Shape:      s.shape,
		UserID:     id.UserID,
		Role:       id.Role,
		Token:      id.Token,
		ResolvedAt: id.ResolvedAt,
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Delete(&identityRecord{}, "shape = ?", s.shape).Error
	if err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}
