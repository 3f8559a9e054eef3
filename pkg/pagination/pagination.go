package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the page size when the caller sends none.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100

	cursorSeparator = "|"
)

// ErrInvalidCursor wraps every cursor decoding failure.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the (created_at, id) keyset position of the last row served.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Direction selects the keyset ordering.
type Direction int

const (
	NewestFirst Direction = iota
	OldestFirst
)

func (d Direction) keyword() string {
	if d == OldestFirst {
		return "ASC"
	}
	return "DESC"
}

func (d Direction) comparator() string {
	if d == OldestFirst {
		return ">"
	}
	return "<"
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// non-positive input.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer is the normalized limit plus one row to detect a next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor builds a URL-safe cursor string.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSeparator + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a cursor string. An empty value yields a nil cursor
// (first page).
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	rawTime, rawID, ok := strings.Cut(string(decoded), cursorSeparator)
	if !ok {
		return nil, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: id %q", ErrInvalidCursor, rawID)
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

// Apply orders query by (created_at, id) in dir, skips rows up to cursor and
// fetches one extra row for Trim. table qualifies the columns when the query
// joins.
func Apply(query *gorm.DB, table string, cursor *Cursor, limit int, dir Direction) *gorm.DB {
	createdAt, id := "created_at", "id"
	if table != "" {
		createdAt, id = table+".created_at", table+".id"
	}
	if cursor != nil {
		op := dir.comparator()
		query = query.Where(
			fmt.Sprintf("(%[1]s %[3]s ?) OR (%[1]s = ? AND %[2]s %[3]s ?)", createdAt, id, op),
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	return query.
		Order(createdAt + " " + dir.keyword()).
		Order(id + " " + dir.keyword()).
		Limit(LimitWithBuffer(limit))
}

// ApplyDesc is Apply with NewestFirst.
func ApplyDesc(query *gorm.DB, table string, cursor *Cursor, limit int) *gorm.DB {
	return Apply(query, table, cursor, limit, NewestFirst)
}

// ApplyAsc is Apply with OldestFirst.
func ApplyAsc(query *gorm.DB, table string, cursor *Cursor, limit int) *gorm.DB {
	return Apply(query, table, cursor, limit, OldestFirst)
}

// Trim cuts rows fetched through Apply to the requested limit and returns the
// cursor for the next page, or "" when rows were the last page.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(key(rows[len(rows)-1]))
}
