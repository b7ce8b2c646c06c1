package service

import (
	"sync"
	"testing"

	"eggbot/internal/catalog"
	"eggbot/internal/config"
	"eggbot/internal/draw"
	"eggbot/internal/infrastructure/lock"
	"eggbot/internal/testkit"

	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	cfg        *config.Config
	catalog    *catalog.Catalog
	ledger     *LedgerService
	collection *CollectionService
	settlement *SettlementService
	invoices   *InvoiceService
	game       *GameService
}

func newTestEnv(t *testing.T, drawer Drawer) *testEnv {
	t.Helper()

	cfg := config.Default()
	cat, err := catalog.Default(cfg.Catalog.Rare, cfg.Catalog.MediaBaseURL)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if drawer == nil {
		drawer = draw.NewSeeded(cat, 42)
	}

	db := testkit.NewDB(t)
	ledger := NewLedgerService(db, cfg)
	collection := NewCollectionService(db, cfg, cat)
	invoices := NewInvoiceService(db, cfg, lock.NewLocalProvider())
	return &testEnv{
		db:         db,
		cfg:        cfg,
		catalog:    cat,
		ledger:     ledger,
		collection: collection,
		settlement: NewSettlementService(db, cfg, ledger),
		invoices:   invoices,
		game:       NewGameService(db, cfg, drawer, ledger, collection, invoices),
	}
}

// sequenceDrawer 按顺序循环返回给定的手办
type sequenceDrawer struct {
	mu    sync.Mutex
	items []catalog.Item
	next  int
}

func (d *sequenceDrawer) Draw() catalog.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	item := d.items[d.next%len(d.items)]
	d.next++
	return item
}

func mustLookup(t *testing.T, c *catalog.Catalog, slug string) catalog.Item {
	t.Helper()
	item, ok := c.Lookup(slug)
	if !ok {
		t.Fatalf("slug %q not in catalog", slug)
	}
	return item
}
