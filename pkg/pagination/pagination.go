// Package pagination implements newest-first keyset paging over
// (timestamp, id) pairs.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is what list endpoints accept.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the last row of the previous page. ID is text so uuid rows and
// order ids page the same way.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row; its presence means another page
// exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor returns an opaque url-safe token.
func EncodeCursor(c Cursor) string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil for an empty token, meaning the first page.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return nil, errors.New("cursor is incomplete")
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// Keyset orders by column then id, newest first, and resumes after cursor.
// column must be a trusted identifier; it is interpolated into SQL.
func Keyset(column string, cursor *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if cursor != nil {
			q = q.Where(fmt.Sprintf("(%[1]s < ?) OR (%[1]s = ? AND id < ?)", column),
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Order(column + " DESC").Order("id DESC")
	}
}

// Trim cuts rows fetched with LimitWithBuffer to the page size and points
// NextCursor at the last kept row.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	kept := rows[:limit]
	return Page[T]{Items: kept, NextCursor: EncodeCursor(cursorOf(kept[limit-1]))}
}
