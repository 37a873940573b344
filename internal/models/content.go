package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a long-form publication.
type Post struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string         `gorm:"size:300" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Question is a community question.
type Question struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string         `gorm:"size:300" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Comment belongs to any other content item.
type Comment struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ParentType string         `gorm:"size:20;not null" json:"parent_type"`
	ParentID   string         `gorm:"size:64;not null;index" json:"parent_id"`
	Body       string         `gorm:"type:text" json:"body"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Review is a rated write-up.
type Review struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Rating    int            `json:"rating"`
	Body      string         `gorm:"type:text" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type Follow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FollowerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair,priority:1" json:"follower_id"`
	FollowedID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair,priority:2" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type Upvote struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ContentType string    `gorm:"size:20;not null" json:"content_type"`
	ContentID   string    `gorm:"size:64;not null" json:"content_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Save struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ContentType string    `gorm:"size:20;not null" json:"content_type"`
	ContentID   string    `gorm:"size:64;not null" json:"content_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error     { ensureID(&p.ID); return nil }
func (q *Question) BeforeCreate(tx *gorm.DB) error { ensureID(&q.ID); return nil }
func (c *Comment) BeforeCreate(tx *gorm.DB) error  { ensureID(&c.ID); return nil }
func (r *Review) BeforeCreate(tx *gorm.DB) error   { ensureID(&r.ID); return nil }
func (f *Follow) BeforeCreate(tx *gorm.DB) error   { ensureID(&f.ID); return nil }
func (u *Upvote) BeforeCreate(tx *gorm.DB) error   { ensureID(&u.ID); return nil }
func (s *Save) BeforeCreate(tx *gorm.DB) error     { ensureID(&s.ID); return nil }
