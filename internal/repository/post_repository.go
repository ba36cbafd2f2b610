package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/microblog/internal/database"
	"github.com/emilythestrangee/microblog/internal/models"
)

const newestFirst = "posts.timestamp DESC, posts.id DESC"

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	ListByAuthor(ctx context.Context, userID uint, page Page) (PostPage, error)
	ListAll(ctx context.Context, page Page) (PostPage, error)
	Feed(ctx context.Context, userID uint, page Page) (PostPage, error)
}

// GormPostRepository implements PostRepository with gorm
type GormPostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(ctx context.Context, post *models.Post) error {
	if err := database.Conn(ctx, r.db).Omit(clause.Associations).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", translate(err))
	}
	return nil
}

func (r *GormPostRepository) ListByAuthor(ctx context.Context, userID uint, page Page) (PostPage, error) {
	q := database.Conn(ctx, r.db).Model(&models.Post{}).Where("posts.user_id = ?", userID).Order(newestFirst)
	result, err := paginate(q, page)
	if err != nil {
		return PostPage{}, fmt.Errorf("list posts of %d: %w", userID, err)
	}
	return result, nil
}

func (r *GormPostRepository) ListAll(ctx context.Context, page Page) (PostPage, error) {
	q := database.Conn(ctx, r.db).Model(&models.Post{}).Order(newestFirst)
	result, err := paginate(q, page)
	if err != nil {
		return PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	return result, nil
}

// Feed returns the posts written by userID or by anyone userID follows,
// newest first. A post reachable through several follower rows appears once.
func (r *GormPostRepository) Feed(ctx context.Context, userID uint, page Page) (PostPage, error) {
	q := database.Conn(ctx, r.db).Model(&models.Post{}).
		Select("DISTINCT posts.*").
		Joins("JOIN users AS author ON author.id = posts.user_id").
		Joins("LEFT JOIN followers AS follower ON follower.followed_id = author.id").
		Where("follower.follower_id = ? OR author.id = ?", userID, userID).
		Order(newestFirst)
	result, err := paginate(q, page)
	if err != nil {
		return PostPage{}, fmt.Errorf("feed of %d: %w", userID, err)
	}
	return result, nil
}
