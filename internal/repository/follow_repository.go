package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/microblog/internal/database"
	"github.com/emilythestrangee/microblog/internal/models"
)

// FollowRepository defines the interface for follow graph operations
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followedID uint) error
	Unfollow(ctx context.Context, followerID, followedID uint) error
	IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error)
	FollowersCount(ctx context.Context, userID uint) (int64, error)
	FollowingCount(ctx context.Context, userID uint) (int64, error)
	Followers(ctx context.Context, userID uint) ([]models.User, error)
	Following(ctx context.Context, userID uint) ([]models.User, error)
}

// GormFollowRepository implements FollowRepository with gorm
type GormFollowRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) *GormFollowRepository {
	return &GormFollowRepository{db: db}
}

// Follow adds the edge followerID -> followedID. An existing edge is left
// untouched.
func (r *GormFollowRepository) Follow(ctx context.Context, followerID, followedID uint) error {
	if followerID == followedID {
		return ErrSelfFollow
	}
	edge := models.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := database.Conn(ctx, r.db).Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
		return fmt.Errorf("follow %d -> %d: %w", followerID, followedID, translate(err))
	}
	return nil
}

// Unfollow removes the edge followerID -> followedID if it exists.
func (r *GormFollowRepository) Unfollow(ctx context.Context, followerID, followedID uint) error {
	if followerID == followedID {
		return ErrSelfFollow
	}
	err := database.Conn(ctx, r.db).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return fmt.Errorf("unfollow %d -> %d: %w", followerID, followedID, err)
	}
	return nil
}

func (r *GormFollowRepository) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("is following: %w", err)
	}
	return count > 0, nil
}

func (r *GormFollowRepository) FollowersCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&models.Follow{}).Where("followed_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *GormFollowRepository) FollowingCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *GormFollowRepository) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	conn := database.Conn(ctx, r.db)
	var users []models.User
	err := conn.Where("id IN (?)",
		conn.Model(&models.Follow{}).Select("follower_id").Where("followed_id = ?", userID),
	).Order("username").Find(&users).Error
	return users, err
}

func (r *GormFollowRepository) Following(ctx context.Context, userID uint) ([]models.User, error) {
	conn := database.Conn(ctx, r.db)
	var users []models.User
	err := conn.Where("id IN (?)",
		conn.Model(&models.Follow{}).Select("followed_id").Where("follower_id = ?", userID),
	).Order("username").Find(&users).Error
	return users, err
}
