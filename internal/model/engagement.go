package model

import (
	"errors"
	"time"
)

// Target types a user can like, comment on or report.
const (
	TargetWork     = "work"
	TargetQuestion = "question"
	TargetUser     = "user"
	TargetComment  = "comment"
)

// ValidPostTarget reports whether t names a likeable/commentable target.
func ValidPostTarget(t string) bool {
	return t == TargetWork || t == TargetQuestion
}

// Comment represents a comment on a work or question.
type Comment struct {
	ID         int64        `db:"id" json:"id"`
	TargetType string       `db:"target_type" json:"target_type"`
	TargetID   string       `db:"target_id" json:"target_id"`
	UserID     string       `db:"user_id" json:"-"`
	Body       string       `db:"body" json:"body"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	Author     *UserSummary `json:"author,omitempty"` // Joined field
}

type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=1000"`
}

// CommentListResponse is the paginated comment list response.
type CommentListResponse struct {
	Comments   []Comment `json:"comments"`
	NextCursor *string   `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// LikeResponse is returned by like/unlike.
type LikeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

type Report struct {
	ID         string    `db:"id" json:"id"`
	ReporterID string    `db:"reporter_id" json:"reporter_id"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type CreateReportRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=work question user comment"`
	TargetID   string `json:"target_id" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=500"`
}

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrAlreadyLiked   = errors.New("already liked")
	ErrNotLiked       = errors.New("not liked")

	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("not the owner of this comment")
)
