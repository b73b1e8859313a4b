package model

import (
	"time"
)

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Completed   bool      `json:"completed"`
	OwnerID     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskPatch is a partial update: only non-nil fields are applied.
// An absent field leaves the stored value untouched.
type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
}

// Empty reports whether the patch carries no changes at all.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && p.Completed == nil
}
