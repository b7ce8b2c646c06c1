package telegram

import (
	"fmt"
	"strings"

	"eggbot/internal/model"
	"eggbot/internal/service"
)

func renderBalances(b *service.Balances) string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("Осталось яиц: %d (бесплатных %d, купленных %d)", b.Available, b.Free, b.Purchased)
}

func renderCollection(items []service.CollectionItem) string {
	if len(items) == 0 {
		return "Коллекция пока пуста. Напиши «открыть», чтобы открыть первое яйцо!"
	}
	var sb strings.Builder
	sb.WriteString("Твоя коллекция:\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "• %s × %d\n", item.Name, item.Count)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderError(kind service.ErrorKind) string {
	switch kind {
	case service.ErrorKindInsufficientCredits:
		return "Яйца закончились. Напиши «купить 5», чтобы купить ещё."
	case service.ErrorKindInvalidQuantity:
		return "Можно купить от 1 до 100 яиц за раз."
	case service.ErrorKindInvalidIntent:
		return "Не понял команду. Доступно: /start, «открыть», «коллекция», «купить N»."
	default:
		return "Что-то пошло не так, попробуй ещё раз."
	}
}

// RenderResult turns a game result into the text shown in the chat.
func RenderResult(res *service.Result) string {
	if !res.Success {
		msg := renderError(res.ErrorKind)
		if res.ErrorKind == service.ErrorKindInsufficientCredits && res.Balances != nil {
			msg += "\n" + renderBalances(res.Balances)
		}
		return msg
	}

	switch res.Kind {
	case service.ResultSessionStarted:
		return "Привет! Открывай Киндер-яйца и собирай фигурки «Очень странных дел».\n" + renderBalances(res.Balances)
	case service.ResultEggOpened:
		return fmt.Sprintf("Тебе выпала фигурка: %s!\n%s", res.ItemDrawn.Name, renderBalances(res.Balances))
	case service.ResultCollection:
		return renderCollection(res.Collection) + "\n" + renderBalances(res.Balances)
	case service.ResultPurchaseRequested:
		return fmt.Sprintf("Счёт на %d яиц: %d %s", res.Invoice.Quantity, res.Invoice.Amount, res.Invoice.Currency)
	}
	return ""
}

// RenderSettlement turns a settlement outcome into a confirmation message.
func RenderSettlement(res *service.SettlementResult) string {
	if res.State != model.SettlementApplied {
		return ""
	}
	msg := fmt.Sprintf("Оплата получена! Добавлено яиц: %d.", res.CreditsGranted)
	if res.Account != nil {
		msg += fmt.Sprintf("\nОсталось яиц: %d", res.Account.AvailableCredits())
	}
	return msg
}
