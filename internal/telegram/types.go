// Package telegram maps Telegram Bot API webhook updates onto game commands and
// payment confirmations, and renders results as webhook replies.
package telegram

import (
	"encoding/json"
	"fmt"
)

// Update is the subset of the Bot API Update object the bot reacts to.
type Update struct {
	UpdateID         int64             `json:"update_id"`
	Message          *Message          `json:"message,omitempty"`
	PreCheckoutQuery *PreCheckoutQuery `json:"pre_checkout_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// DisplayName prefers the username, falling back to user_<id>.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("user_%d", u.ID)
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID         int64              `json:"message_id"`
	From              *User              `json:"from,omitempty"`
	Chat              Chat               `json:"chat"`
	Text              string             `json:"text,omitempty"`
	SuccessfulPayment *SuccessfulPayment `json:"successful_payment,omitempty"`
}

type SuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int64  `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id"`
}

type PreCheckoutQuery struct {
	ID             string `json:"id"`
	From           User   `json:"from"`
	Currency       string `json:"currency"`
	TotalAmount    int64  `json:"total_amount"`
	InvoicePayload string `json:"invoice_payload"`
}

// InvoicePayload travels through Telegram inside the invoice and comes back
// with the pre-checkout query and the successful payment.
type InvoicePayload struct {
	InvoiceNo string `json:"invoice_no"`
	Quantity  int64  `json:"quantity"`
}

func (p InvoicePayload) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// DecodeInvoicePayload tolerates empty or foreign payloads by returning the zero value.
func DecodeInvoicePayload(raw string) InvoicePayload {
	var p InvoicePayload
	if raw == "" {
		return p
	}
	_ = json.Unmarshal([]byte(raw), &p)
	return p
}

// Webhook replies. Telegram executes a method returned in the webhook response body.

const (
	MethodSendMessage            = "sendMessage"
	MethodSendPhoto              = "sendPhoto"
	MethodSendInvoice            = "sendInvoice"
	MethodAnswerPreCheckoutQuery = "answerPreCheckoutQuery"
)

type SendMessage struct {
	Method string `json:"method"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type SendPhoto struct {
	Method  string `json:"method"`
	ChatID  int64  `json:"chat_id"`
	Photo   string `json:"photo"`
	Caption string `json:"caption"`
}

type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

type SendInvoice struct {
	Method        string         `json:"method"`
	ChatID        int64          `json:"chat_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Payload       string         `json:"payload"`
	ProviderToken string         `json:"provider_token"`
	Currency      string         `json:"currency"`
	Prices        []LabeledPrice `json:"prices"`
}

type AnswerPreCheckoutQuery struct {
	Method             string `json:"method"`
	PreCheckoutQueryID string `json:"pre_checkout_query_id"`
	OK                 bool   `json:"ok"`
	ErrorMessage       string `json:"error_message,omitempty"`
}
