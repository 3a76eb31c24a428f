package activity

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amoylab/wshub/internal/apiserver/database"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for cursors this server did not issue
var ErrInvalidCursor = errors.New("invalid cursor")

// Scope restricts a listing to one owner, one workspace, or both
type Scope struct {
	OwnerID     string
	WorkspaceID string
}

// Page requests up to Limit items older than Cursor
type Page struct {
	Limit  int
	Cursor string
}

// Result is one page of activities, newest first
type Result struct {
	Items      []*database.Activity `json:"items"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// now is truncated to microseconds so cursors survive every dialect's timestamp precision
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// List returns a page ordered by created_at then id, both descending
func (s *Service) List(ctx context.Context, scope Scope, page Page) (*Result, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	q := database.ActivityQuery{
		OwnerID:     scope.OwnerID,
		WorkspaceID: scope.WorkspaceID,
		Limit:       limit + 1,
	}
	if page.Cursor != "" {
		at, id, err := DecodeCursor(page.Cursor)
		if err != nil {
			return nil, err
		}
		q.BeforeTime = &at
		q.BeforeID = id
	}

	items, err := s.db.ListActivities(ctx, q)
	if err != nil {
		return nil, err
	}

	res := &Result{Items: items}
	if len(items) > limit {
		res.Items = items[:limit]
		last := res.Items[limit-1]
		res.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	if res.Items == nil {
		res.Items = []*database.Activity{}
	}
	return res, nil
}

// EncodeCursor packs a keyset position into an opaque token
func EncodeCursor(at time.Time, id string) string {
	raw := strconv.FormatInt(at.UnixNano(), 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor unpacks a token made by EncodeCursor
func DecodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return time.Time{}, "", ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return time.Unix(0, n).UTC(), id, nil
}
