package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

func TestNullHelpers(t *testing.T) {
	assert.False(t, NullInt(nil).Valid)
	page := 3
	n := NullInt(&page)
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, n)
	assert.Equal(t, &page, IntPtr(n))
	assert.Nil(t, IntPtr(sql.NullInt64{}))

	assert.False(t, NullString("").Valid)
	assert.Equal(t, sql.NullString{String: "fix pacing", Valid: true}, NullString("fix pacing"))
}

func TestIsForeignKeyViolation(t *testing.T) {
	fk := &pq.Error{Code: "23503"}
	assert.True(t, isForeignKeyViolation(fk))
	assert.True(t, isForeignKeyViolation(fmt.Errorf("insert: %w", fk)))
	assert.False(t, isForeignKeyViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isForeignKeyViolation(sql.ErrNoRows))
	assert.False(t, isForeignKeyViolation(nil))
}

func TestSplitLockKey(t *testing.T) {
	classID, objID := splitLockKey(-1)
	assert.Equal(t, uint32(0xffffffff), classID)
	assert.Equal(t, uint32(0xffffffff), objID)

	classID, objID = splitLockKey(0x0000000100000002)
	assert.Equal(t, uint32(1), classID)
	assert.Equal(t, uint32(2), objID)

	assert.Equal(t, hashLockName("session-write:a"), hashLockName("session-write:a"))
	assert.NotEqual(t, hashLockName("session-write:a"), hashLockName("session-write:b"))
}

// testDB connects to TEST_DATABASE_URL or skips
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(url))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(ctx))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStores_Postgres(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	sessions := NewSessionStore(db)
	annotations := NewAnnotationStore(db)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	created := time.Now().UTC().Truncate(time.Millisecond)
	session := &domain.FeedbackSession{
		ID:          "sess-" + suffix,
		DocumentURL: "https://scripts.example.com/act1.pdf",
		Title:       "Act One",
		OwnerID:     "writer-" + suffix,
		CreatedAt:   created,
	}
	require.NoError(t, sessions.Save(ctx, session))

	got, err := sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Title, got.Title)
	assert.True(t, session.CreatedAt.Equal(got.CreatedAt))

	_, err = sessions.Get(ctx, "missing-"+suffix)
	assert.Equal(t, domain.ErrNotFound, err)

	owned, err := sessions.ListByOwner(ctx, session.OwnerID)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	page := 2
	highlight := &domain.Annotation{
		ID:              "ann-h-" + suffix,
		SessionID:       session.ID,
		PageNumber:      &page,
		Kind:            domain.KindHighlight,
		Content:         "tighten this",
		HighlightedText: "fix pacing here",
		Regions:         []domain.Region{{X: 10, Y: 20, Width: 50, Height: 14}, {X: 10, Y: 34, Width: 30, Height: 14}},
		AuthorID:        session.OwnerID,
		CreatedAt:       created,
	}
	general := &domain.Annotation{
		ID:        "ann-g-" + suffix,
		SessionID: session.ID,
		Kind:      domain.KindGeneralComment,
		Content:   "strong second act",
		AuthorID:  session.OwnerID,
		CreatedAt: created.Add(time.Second),
	}
	require.NoError(t, annotations.Create(ctx, highlight))
	require.NoError(t, annotations.Create(ctx, general))

	orphan := *general
	orphan.ID = "ann-o-" + suffix
	orphan.SessionID = "missing-" + suffix
	assert.Equal(t, domain.ErrNotFound, annotations.Create(ctx, &orphan))

	list, err := annotations.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, highlight.Regions, list[0].Regions)
	assert.Equal(t, 2, *list[0].PageNumber)
	assert.Nil(t, list[1].PageNumber)
	assert.Empty(t, list[1].HighlightedText)

	require.NoError(t, annotations.Delete(ctx, highlight.ID))
	assert.Equal(t, domain.ErrNotFound, annotations.Delete(ctx, highlight.ID))
	_, err = annotations.Get(ctx, highlight.ID)
	assert.Equal(t, domain.ErrNotFound, err)
}

func TestAdvisoryLock_Postgres(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	first := NewAdvisoryLock(db)
	second := NewAdvisoryLock(db)
	name := fmt.Sprintf("session-write:%d", time.Now().UnixNano())

	ok, err := first.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	held, err := second.IsHeld(ctx, name)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, first.Release(ctx, name))
	held, err = second.IsHeld(ctx, name)
	require.NoError(t, err)
	assert.False(t, held)

	assert.NoError(t, first.Release(ctx, name))
	assert.NoError(t, first.Ping(ctx))
}
