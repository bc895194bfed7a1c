package types

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidUserID   = errors.New("invalid user ID")
	ErrInvalidUsername = errors.New("invalid username")
)

// User is an account whose submissions are moderated.
type User struct {
	ID        int64     `bun:",pk,autoincrement"             json:"id"`
	Username  string    `bun:",notnull,unique"               json:"username"`
	FlagCount int       `bun:",notnull,default:0"            json:"flagCount"`
	Banned    bool      `bun:",notnull,default:false"        json:"banned"`
	CreatedAt time.Time `bun:",notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:",notnull,default:current_timestamp" json:"updatedAt"`
}

// UserCounts holds user totals by trust state.
type UserCounts struct {
	Total   int `bun:"total"`
	Flagged int `bun:"flagged"`
	Banned  int `bun:"banned"`
}
