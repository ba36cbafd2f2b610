package repository

import (
	"gorm.io/gorm"

	"github.com/emilythestrangee/microblog/internal/models"
)

// Page selects one page of results. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// MaxPageNumber bounds Page.Number so the row offset cannot overflow.
const MaxPageNumber = 100000

// NewPage clamps number into [1, MaxPageNumber] and size to at least 1.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	if size < 1 {
		size = 1
	}
	return Page{Number: number, Size: size}
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// PostPage is one page of posts plus navigation state.
type PostPage struct {
	Posts   []models.Post
	Number  int
	HasNext bool
}

func (p PostPage) HasPrev() bool {
	return p.Number > 1
}

func (p PostPage) NextNum() int {
	if !p.HasNext {
		return 0
	}
	return p.Number + 1
}

func (p PostPage) PrevNum() int {
	if !p.HasPrev() {
		return 0
	}
	return p.Number - 1
}

// paginate runs q for page, reading one extra row to learn whether a next
// page exists.
func paginate(q *gorm.DB, page Page) (PostPage, error) {
	var posts []models.Post
	if err := q.Preload("Author").Offset(page.offset()).Limit(page.Size + 1).Find(&posts).Error; err != nil {
		return PostPage{}, err
	}

	result := PostPage{Number: page.Number}
	if len(posts) > page.Size {
		result.HasNext = true
		posts = posts[:page.Size]
	}
	if posts == nil {
		posts = []models.Post{}
	}
	result.Posts = posts
	return result, nil
}
