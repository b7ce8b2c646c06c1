package repository

import (
	"context"
	"sync"
	"testing"

	"eggbot/internal/model"
	"eggbot/internal/testkit"
)

func TestIncrementUpsertsSingleEntry(t *testing.T) {
	db := testkit.NewDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Increment(ctx, nil, 1, "will"); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	var rows int64
	db.Model(&model.CollectionEntry{}).Where("user_id = ?", 1).Count(&rows)
	if rows != 1 {
		t.Fatalf("unexpected rows: got=%d want=1", rows)
	}
	entry, err := repo.Get(ctx, nil, 1, "will")
	if err != nil || entry == nil {
		t.Fatalf("Get failed: entry=%v err=%v", entry, err)
	}
	if entry.Quantity != 2 {
		t.Fatalf("unexpected quantity: got=%d want=2", entry.Quantity)
	}

	missing, err := repo.Get(ctx, nil, 1, "mike")
	if err != nil || missing != nil {
		t.Fatalf("missing entry: got=%v err=%v", missing, err)
	}
}

func TestIncrementConcurrentSamePair(t *testing.T) {
	repo := NewCollectionRepository(testkit.NewDB(t))
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Increment(ctx, nil, 2, "vecna"); err != nil {
				t.Errorf("Increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	entry, err := repo.Get(ctx, nil, 2, "vecna")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Quantity != n {
		t.Fatalf("lost increments: got=%d want=%d", entry.Quantity, n)
	}
}

func TestListByUserIDOrder(t *testing.T) {
	repo := NewCollectionRepository(testkit.NewDB(t))
	ctx := context.Background()

	for _, slug := range []string{"mike", "vecna", "vecna", "dustin", "vecna", "mike"} {
		if err := repo.Increment(ctx, nil, 3, slug); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}
	if err := repo.Increment(ctx, nil, 4, "will"); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	entries, err := repo.ListByUserID(ctx, nil, 3)
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	want := []struct {
		slug string
		qty  int64
	}{{"vecna", 3}, {"mike", 2}, {"dustin", 1}}
	if len(entries) != len(want) {
		t.Fatalf("unexpected entries: got=%d want=%d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].ItemSlug != w.slug || entries[i].Quantity != w.qty {
			t.Fatalf("entry %d: got=%s/%d want=%s/%d", i, entries[i].ItemSlug, entries[i].Quantity, w.slug, w.qty)
		}
	}
}
