package telegram

import (
	"context"
	"strings"
	"testing"

	"eggbot/internal/catalog"
	"eggbot/internal/config"
	"eggbot/internal/draw"
	"eggbot/internal/infrastructure/lock"
	"eggbot/internal/service"
	"eggbot/internal/testkit"
)

type botEnv struct {
	bot    *Bot
	ledger *service.LedgerService
}

func newBotEnv(t *testing.T) *botEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.MediaBaseURL = "https://cdn.example.com/figures"
	cat, err := catalog.Default(cfg.Catalog.Rare, cfg.Catalog.MediaBaseURL)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	db := testkit.NewDB(t)
	ledger := service.NewLedgerService(db, cfg)
	collection := service.NewCollectionService(db, cfg, cat)
	invoices := service.NewInvoiceService(db, cfg, lock.NewLocalProvider())
	game := service.NewGameService(db, cfg, draw.NewSeeded(cat, 7), ledger, collection, invoices)
	settlement := service.NewSettlementService(db, cfg, ledger)
	return &botEnv{bot: NewBot(game, settlement, invoices, cfg), ledger: ledger}
}

func textUpdate(id int64, text string) *Update {
	return &Update{
		UpdateID: id,
		Message: &Message{
			MessageID: id,
			From:      &User{ID: 42, Username: "hopper"},
			Chat:      Chat{ID: 4200},
			Text:      text,
		},
	}
}

func TestBotStartAndOpen(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	reply, err := env.bot.HandleUpdate(ctx, textUpdate(1, "/start"))
	if err != nil {
		t.Fatalf("HandleUpdate failed: %v", err)
	}
	msg, ok := reply.(*SendMessage)
	if !ok || msg.ChatID != 4200 || !strings.Contains(msg.Text, "Осталось яиц: 5") {
		t.Fatalf("unexpected start reply: %#v", reply)
	}

	reply, err = env.bot.HandleUpdate(ctx, textUpdate(2, "открыть"))
	if err != nil {
		t.Fatalf("HandleUpdate failed: %v", err)
	}
	photo, ok := reply.(*SendPhoto)
	if !ok || !strings.HasPrefix(photo.Photo, "https://cdn.example.com/figures/") {
		t.Fatalf("unexpected open reply: %#v", reply)
	}
	if photo.Method != MethodSendPhoto || !strings.Contains(photo.Caption, "Осталось яиц: 4") {
		t.Fatalf("unexpected caption: %q", photo.Caption)
	}
}

func TestBotUnknownText(t *testing.T) {
	env := newBotEnv(t)

	reply, err := env.bot.HandleUpdate(context.Background(), textUpdate(1, "привет"))
	if err != nil {
		t.Fatalf("HandleUpdate failed: %v", err)
	}
	if msg, ok := reply.(*SendMessage); !ok || !strings.Contains(msg.Text, "/start") {
		t.Fatalf("unexpected reply: %#v", reply)
	}
}

func TestBotPurchaseFlow(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	reply, err := env.bot.HandleUpdate(ctx, textUpdate(1, "купить 3"))
	if err != nil {
		t.Fatalf("HandleUpdate failed: %v", err)
	}
	inv, ok := reply.(*SendInvoice)
	if !ok {
		t.Fatalf("expected invoice, got %#v", reply)
	}
	if inv.Currency != "XTR" || len(inv.Prices) != 1 || inv.Prices[0].Amount != 30 {
		t.Fatalf("unexpected invoice: %#v", inv)
	}

	pre := &Update{UpdateID: 2, PreCheckoutQuery: &PreCheckoutQuery{
		ID: "pcq_1", From: User{ID: 42}, Currency: "XTR", TotalAmount: 30, InvoicePayload: inv.Payload,
	}}
	reply, err = env.bot.HandleUpdate(ctx, pre)
	if err != nil {
		t.Fatalf("pre-checkout failed: %v", err)
	}
	if ans := reply.(*AnswerPreCheckoutQuery); !ans.OK || ans.PreCheckoutQueryID != "pcq_1" {
		t.Fatalf("pre-checkout should be approved: %#v", ans)
	}

	paid := &Update{UpdateID: 3, Message: &Message{
		From: &User{ID: 42, Username: "hopper"},
		Chat: Chat{ID: 4200},
		SuccessfulPayment: &SuccessfulPayment{
			Currency:                "XTR",
			TotalAmount:             30,
			InvoicePayload:          inv.Payload,
			TelegramPaymentChargeID: "tg_charge_1",
		},
	}}
	reply, err = env.bot.HandleUpdate(ctx, paid)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if msg, ok := reply.(*SendMessage); !ok || !strings.Contains(msg.Text, "Добавлено яиц: 3") {
		t.Fatalf("unexpected payment reply: %#v", reply)
	}

	reply, err = env.bot.HandleUpdate(ctx, paid)
	if err != nil || reply != nil {
		t.Fatalf("redelivery should be acknowledged silently: reply=%#v err=%v", reply, err)
	}

	acct, err := env.ledger.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if acct.PurchasedCredits != 3 {
		t.Fatalf("unexpected purchased credits: got=%d want=3", acct.PurchasedCredits)
	}
}

func TestBotRejectsBadPreCheckout(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		q    *PreCheckoutQuery
		msg  string
	}{
		{"currency", &PreCheckoutQuery{ID: "a", Currency: "USD", TotalAmount: 10}, "Invalid currency"},
		{"unknown invoice", &PreCheckoutQuery{ID: "b", Currency: "XTR", TotalAmount: 10,
			InvoicePayload: InvoicePayload{InvoiceNo: "INV_missing", Quantity: 1}.Encode()}, "Invalid invoice"},
	}
	for _, c := range cases {
		reply, err := env.bot.HandleUpdate(ctx, &Update{PreCheckoutQuery: c.q})
		if err != nil {
			t.Fatalf("%s: HandleUpdate failed: %v", c.name, err)
		}
		ans := reply.(*AnswerPreCheckoutQuery)
		if ans.OK || ans.ErrorMessage != c.msg {
			t.Fatalf("%s: unexpected answer %#v", c.name, ans)
		}
	}

	// legacy invoices without a number pass on currency alone
	reply, err := env.bot.HandleUpdate(ctx, &Update{PreCheckoutQuery: &PreCheckoutQuery{
		ID: "c", Currency: "XTR", TotalAmount: 20, InvoicePayload: `{"quantity":2,"chatId":1}`,
	}})
	if err != nil {
		t.Fatalf("HandleUpdate failed: %v", err)
	}
	if !reply.(*AnswerPreCheckoutQuery).OK {
		t.Fatal("legacy payload should be approved")
	}
}

func TestBotIgnoresEmptyUpdate(t *testing.T) {
	env := newBotEnv(t)

	reply, err := env.bot.HandleUpdate(context.Background(), &Update{UpdateID: 9})
	if err != nil || reply != nil {
		t.Fatalf("empty update: reply=%#v err=%v", reply, err)
	}
}
