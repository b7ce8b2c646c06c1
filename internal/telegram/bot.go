package telegram

import (
	"context"
	"errors"
	"strconv"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/service"

	"go.uber.org/zap"
)

type Game interface {
	Handle(ctx context.Context, cmd *service.Command) (*service.Result, error)
}

type Settler interface {
	Settle(ctx context.Context, req *service.PaymentConfirmation) (*service.SettlementResult, error)
}

type PreCheckoutValidator interface {
	ValidatePreCheckout(ctx context.Context, invoiceNo, currency string, amount int64) error
}

// Bot dispatches webhook updates. A nil reply with a nil error means the update
// was handled and needs no answer.
type Bot struct {
	game      Game
	settler   Settler
	validator PreCheckoutValidator
	cfg       *config.Config
}

func NewBot(game Game, settler Settler, validator PreCheckoutValidator, cfg *config.Config) *Bot {
	return &Bot{game: game, settler: settler, validator: validator, cfg: cfg}
}

// HandleUpdate returns an error only for infrastructure failures, so the
// webhook can answer non-2xx and let Telegram redeliver.
func (b *Bot) HandleUpdate(ctx context.Context, upd *Update) (interface{}, error) {
	switch {
	case upd.PreCheckoutQuery != nil:
		return b.answerPreCheckout(ctx, upd.PreCheckoutQuery)
	case upd.Message != nil && upd.Message.SuccessfulPayment != nil:
		return b.settle(ctx, upd.Message)
	case upd.Message != nil && upd.Message.Text != "":
		return b.command(ctx, upd.Message, strconv.FormatInt(upd.UpdateID, 10))
	}
	return nil, nil
}

func (b *Bot) answerPreCheckout(ctx context.Context, q *PreCheckoutQuery) (interface{}, error) {
	reply := &AnswerPreCheckoutQuery{
		Method:             MethodAnswerPreCheckoutQuery,
		PreCheckoutQueryID: q.ID,
		OK:                 true,
	}

	payload := DecodeInvoicePayload(q.InvoicePayload)
	var err error
	if payload.InvoiceNo != "" {
		err = b.validator.ValidatePreCheckout(ctx, payload.InvoiceNo, q.Currency, q.TotalAmount)
	} else if q.Currency != b.cfg.Business.Currency {
		// invoices issued without an invoice number only get the currency check
		err = service.ErrInvalidPreCheckout
	}

	if err != nil {
		if !errors.Is(err, service.ErrInvalidPreCheckout) {
			return nil, err
		}
		logger.Warn("pre-checkout rejected", zap.String("query_id", q.ID), zap.Int64("user_id", q.From.ID), zap.Error(err))
		reply.OK = false
		reply.ErrorMessage = "Invalid invoice"
		if q.Currency != b.cfg.Business.Currency {
			reply.ErrorMessage = "Invalid currency"
		}
	}
	return reply, nil
}

func (b *Bot) settle(ctx context.Context, msg *Message) (interface{}, error) {
	sp := msg.SuccessfulPayment
	if msg.From == nil {
		logger.Warn("payment without sender", zap.String("charge_id", sp.TelegramPaymentChargeID))
		return nil, nil
	}
	payload := DecodeInvoicePayload(sp.InvoicePayload)

	res, err := b.settler.Settle(ctx, &service.PaymentConfirmation{
		ChargeID:        sp.TelegramPaymentChargeID,
		UserID:          msg.From.ID,
		DisplayName:     msg.From.DisplayName(),
		AmountPaid:      sp.TotalAmount,
		CreditUnitPrice: b.cfg.Business.CreditUnitPrice,
		Currency:        sp.Currency,
		InvoiceNo:       payload.InvoiceNo,
	})
	if err != nil {
		kind := service.KindOf(err)
		if kind.Transient() {
			return nil, err
		}
		logger.Warn("payment not applied",
			zap.String("charge_id", sp.TelegramPaymentChargeID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		// redelivered payments are acknowledged silently
		return nil, nil
	}

	return &SendMessage{Method: MethodSendMessage, ChatID: msg.Chat.ID, Text: RenderSettlement(res)}, nil
}

func (b *Bot) command(ctx context.Context, msg *Message, requestID string) (interface{}, error) {
	if msg.From == nil {
		return nil, nil
	}

	intent, qty, ok := ParseText(msg.Text)
	if !ok {
		return &SendMessage{Method: MethodSendMessage, ChatID: msg.Chat.ID, Text: renderError(service.ErrorKindInvalidIntent)}, nil
	}

	res, err := b.game.Handle(ctx, &service.Command{
		UserID:      msg.From.ID,
		DisplayName: msg.From.DisplayName(),
		Intent:      intent,
		Quantity:    qty,
		RequestID:   requestID,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case res.Success && res.Kind == service.ResultPurchaseRequested:
		return b.invoice(msg.Chat.ID, res.Invoice), nil
	case res.Success && res.Kind == service.ResultEggOpened && res.ItemDrawn.MediaRef != "":
		return &SendPhoto{Method: MethodSendPhoto, ChatID: msg.Chat.ID, Photo: res.ItemDrawn.MediaRef, Caption: RenderResult(res)}, nil
	}
	return &SendMessage{Method: MethodSendMessage, ChatID: msg.Chat.ID, Text: RenderResult(res)}, nil
}

func (b *Bot) invoice(chatID int64, inv *service.InvoiceView) *SendInvoice {
	qty := strconv.FormatInt(inv.Quantity, 10)
	return &SendInvoice{
		Method:      MethodSendInvoice,
		ChatID:      chatID,
		Title:       "🥚 " + qty + " Киндер-яиц",
		Description: "Купить " + qty + " яиц для игры в Киндер-сюрприз. Открывай яйца и собирай фигурки Stranger Things!",
		Payload:     InvoicePayload{InvoiceNo: inv.InvoiceNo, Quantity: inv.Quantity}.Encode(),
		Currency:    inv.Currency,
		Prices:      []LabeledPrice{{Label: qty + " яиц", Amount: inv.Amount}},
	}
}
