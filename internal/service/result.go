package service

import (
	"time"

	"eggbot/internal/catalog"
	"eggbot/internal/model"
)

// Intent 一条用户指令的意图
type Intent string

const (
	IntentStart           Intent = "start"
	IntentOpenEgg         Intent = "open_egg"
	IntentInspect         Intent = "inspect"
	IntentRequestPurchase Intent = "request_purchase"
)

// Command 指令入口的统一请求，各个消息渠道先解析成 Command
type Command struct {
	UserID      int64  `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Intent      Intent `json:"intent" binding:"required"`
	Quantity    int64  `json:"quantity"`
	RequestID   string `json:"request_id"`
}

type ResultKind string

const (
	ResultSessionStarted    ResultKind = "session_started"
	ResultEggOpened         ResultKind = "egg_opened"
	ResultCollection        ResultKind = "collection"
	ResultPurchaseRequested ResultKind = "purchase_requested"
)

// Result 与渠道无关的结构化结果，由展示层渲染成文案
type Result struct {
	Success    bool             `json:"success"`
	Kind       ResultKind       `json:"kind"`
	ItemDrawn  *ItemDrawn       `json:"item_drawn,omitempty"`
	Collection []CollectionItem `json:"collection_snapshot,omitempty"`
	Balances   *Balances        `json:"balances,omitempty"`
	Invoice    *InvoiceView     `json:"invoice,omitempty"`
	ErrorKind  ErrorKind        `json:"error_kind,omitempty"`
}

type ItemDrawn struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	MediaRef string `json:"media_ref"`
}

func itemDrawn(item catalog.Item) *ItemDrawn {
	return &ItemDrawn{Slug: item.Slug, Name: item.Name, MediaRef: item.MediaRef}
}

type Balances struct {
	Free      int64 `json:"free"`
	Purchased int64 `json:"purchased"`
	Available int64 `json:"available"`
}

func balancesOf(account *model.Account) *Balances {
	if account == nil {
		return nil
	}
	return &Balances{
		Free:      account.FreeCredits,
		Purchased: account.PurchasedCredits,
		Available: account.AvailableCredits(),
	}
}

type CollectionItem struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	MediaRef string `json:"media_ref"`
	Count    int64  `json:"count"`
}

type InvoiceView struct {
	InvoiceNo string    `json:"invoice_no"`
	Quantity  int64     `json:"quantity"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiredAt time.Time `json:"expired_at"`
	Reused    bool      `json:"reused"`
}

func invoiceViewOf(inv *model.Invoice, reused bool) *InvoiceView {
	return &InvoiceView{
		InvoiceNo: inv.InvoiceNo,
		Quantity:  inv.Quantity,
		Amount:    inv.Amount,
		Currency:  inv.Currency,
		ExpiredAt: inv.ExpiredAt,
		Reused:    reused,
	}
}
