package service

import (
	"context"
	"errors"
	"testing"
)

func TestSnapshotOrdersByCountThenCatalog(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// 目录顺序：dustin, ..., mike, ..., vecna
	for _, slug := range []string{"vecna", "mike", "dustin", "vecna", "mike", "vecna"} {
		if err := env.collection.RecordDraw(ctx, 1, slug); err != nil {
			t.Fatalf("RecordDraw(%s) failed: %v", slug, err)
		}
	}
	if err := env.collection.RecordDraw(ctx, 1, "eleven-lab"); err != nil {
		t.Fatalf("RecordDraw failed: %v", err)
	}

	items, err := env.collection.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	want := []struct {
		slug  string
		count int64
	}{
		{"vecna", 3},
		{"mike", 2},
		{"dustin", 1},
		{"eleven-lab", 1},
	}
	if len(items) != len(want) {
		t.Fatalf("unexpected snapshot size: got=%d want=%d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].Slug != w.slug || items[i].Count != w.count {
			t.Fatalf("item %d: got=%s x%d want=%s x%d", i, items[i].Slug, items[i].Count, w.slug, w.count)
		}
	}
	if items[0].Name == "" || items[0].MediaRef == "" {
		t.Fatalf("snapshot should carry catalog name and media: %+v", items[0])
	}
}

func TestSnapshotEmptyForNewUser(t *testing.T) {
	env := newTestEnv(t, nil)

	items, err := env.collection.Snapshot(context.Background(), 99)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestRecordDrawRejectsUnknownItem(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.collection.RecordDraw(context.Background(), 1, "mind-flayer")
	if !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}
