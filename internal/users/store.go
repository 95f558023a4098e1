package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fuomag9/kabomba-auth/internal/models"
)

// Store persists user accounts.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string, exceptID int) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID int) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// GormStore implements Store on the users table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return translate("create user", err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return translate("update user", err)
	}
	return nil
}

func (s *GormStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate("get user by id", err)
	}
	return &u, nil
}

func (s *GormStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		return nil, translate("get user by email", err)
	}
	return &u, nil
}

func (s *GormStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate("get user by username", err)
	}
	return &u, nil
}

func (s *GormStore) UsernameTaken(ctx context.Context, username string, exceptID int) (bool, error) {
	return s.exists(ctx, "username = ?", username, exceptID)
}

func (s *GormStore) EmailTaken(ctx context.Context, email string, exceptID int) (bool, error) {
	return s.exists(ctx, "email = ?", NormalizeEmail(email), exceptID)
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (s *GormStore) exists(ctx context.Context, cond string, value any, exceptID int) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.User{}).Where(cond, value)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return count > 0, nil
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
