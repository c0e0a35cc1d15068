package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

func setupTestSessionCache(t *testing.T) (*SessionCache, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewSessionCache(client, time.Minute), mr, func() {
		client.Close()
		mr.Close()
	}
}

func createTestSnapshot(sessionID string) *domain.SessionWithAnnotations {
	page := 2
	return &domain.SessionWithAnnotations{
		Session: &domain.FeedbackSession{
			ID:          sessionID,
			DocumentURL: "https://scripts.example.com/act1.pdf",
			Title:       "Act One",
			OwnerID:     "writer",
			CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		Annotations: []*domain.Annotation{
			{
				ID:              "ann-1",
				SessionID:       sessionID,
				PageNumber:      &page,
				Kind:            domain.KindHighlight,
				Content:         "tighten",
				HighlightedText: "fix pacing here",
				Regions:         []domain.Region{{X: 10, Y: 20, Width: 50, Height: 14}},
				AuthorID:        "writer",
				CreatedAt:       time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
			},
		},
	}
}

func TestSessionCache_SetAndGet(t *testing.T) {
	cache, _, cleanup := setupTestSessionCache(t)
	defer cleanup()

	ctx := context.Background()
	snapshot := createTestSnapshot("sess-1")

	if stored, err := cache.Set(ctx, snapshot, 0); err != nil || !stored {
		t.Fatalf("expected snapshot stored, got %v, %v", stored, err)
	}

	got, err := cache.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Session.Title != "Act One" {
		t.Errorf("expected title Act One, got %s", got.Session.Title)
	}
	if len(got.Annotations) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(got.Annotations))
	}
	ann := got.Annotations[0]
	if ann.PageNumber == nil || *ann.PageNumber != 2 {
		t.Errorf("expected page 2, got %v", ann.PageNumber)
	}
	if len(ann.Regions) != 1 || ann.Regions[0] != snapshot.Annotations[0].Regions[0] {
		t.Errorf("expected regions %v, got %v", snapshot.Annotations[0].Regions, ann.Regions)
	}
}

func TestSessionCache_Miss(t *testing.T) {
	cache, _, cleanup := setupTestSessionCache(t)
	defer cleanup()

	_, err := cache.Get(context.Background(), "missing")
	if err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionCache_TTL(t *testing.T) {
	cache, mr, cleanup := setupTestSessionCache(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := cache.Set(ctx, createTestSnapshot("sess-1"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ttl := mr.TTL(sessionPrefix + "sess-1"); ttl != time.Minute {
		t.Errorf("expected TTL 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := cache.Get(ctx, "sess-1"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestSessionCache_Invalidate(t *testing.T) {
	cache, mr, cleanup := setupTestSessionCache(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := cache.Set(ctx, createTestSnapshot("sess-1"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Set(ctx, createTestSnapshot("sess-2"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cache.Invalidate(ctx, "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(sessionPrefix + "sess-1") {
		t.Error("expected snapshot to be removed")
	}
	if !mr.Exists(sessionPrefix + "sess-2") {
		t.Error("expected other snapshot to remain")
	}

	// Invalidating a missing snapshot is not an error
	if err := cache.Invalidate(ctx, "sess-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionCache_SetAfterInvalidateIsRefused(t *testing.T) {
	cache, mr, cleanup := setupTestSessionCache(t)
	defer cleanup()

	ctx := context.Background()

	// A reader notes the version, then a writer lands before its fill
	version, err := cache.Version(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 for an unwritten session, got %d", version)
	}
	if err := cache.Invalidate(ctx, "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := cache.Set(ctx, createTestSnapshot("sess-1"), version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored {
		t.Error("expected snapshot read before the write to be refused")
	}
	if mr.Exists(sessionPrefix + "sess-1") {
		t.Error("expected no snapshot under the key")
	}

	// A read that starts after the write fills normally
	version, err = cache.Version(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}
	if ttl := mr.TTL(sessionVersionPrefix + "sess-1"); ttl != versionTTL {
		t.Errorf("expected version TTL %v, got %v", versionTTL, ttl)
	}
	stored, err = cache.Set(ctx, createTestSnapshot("sess-1"), version)
	if err != nil || !stored {
		t.Fatalf("expected snapshot stored, got %v, %v", stored, err)
	}
	if _, err := cache.Get(ctx, "sess-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionCache_Rejects(t *testing.T) {
	cache, mr, cleanup := setupTestSessionCache(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := cache.Set(ctx, &domain.SessionWithAnnotations{}, 0); err != domain.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	// Garbage under the key is reported, not returned as a snapshot
	if err := mr.Set(sessionPrefix+"sess-1", "not json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Get(ctx, "sess-1"); err == nil || err == domain.ErrNotFound {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestSessionCache_DefaultTTL(t *testing.T) {
	cache := NewSessionCache(nil, 0)
	if cache.ttl != DefaultSessionTTL {
		t.Errorf("expected default TTL, got %v", cache.ttl)
	}
}
