package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MaxPostLength bounds Post.Body in characters.
const MaxPostLength = 140

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"size:140;not null" json:"body"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Author    User      `gorm:"foreignKey:UserID" json:"-"`
}

func (p *Post) String() string {
	return fmt.Sprintf("<Post %s>", p.Body)
}

// BeforeCreate stamps new posts with the creation time.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = tx.NowFunc()
	}
	return nil
}
