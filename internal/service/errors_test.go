package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ErrorKindNone},
		{ErrInsufficientCredits, ErrorKindInsufficientCredits},
		{fmt.Errorf("wrap: %w", ErrInsufficientCredits), ErrorKindInsufficientCredits},
		{ErrInvalidEggSelection, ErrorKindInvalidEggSelection},
		{ErrInvalidAmount, ErrorKindInvalidAmount},
		{ErrInvalidCreditCount, ErrorKindInvalidAmount},
		{ErrDuplicatePayment, ErrorKindDuplicatePayment},
		{ErrInvalidQuantity, ErrorKindInvalidQuantity},
		{ErrInvalidIntent, ErrorKindInvalidIntent},
		{context.DeadlineExceeded, ErrorKindPersistenceUnavailable},
		{errors.New("database is locked"), ErrorKindPersistenceUnavailable},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v): got=%q want=%q", c.err, got, c.want)
		}
	}
}

func TestOnlyPersistenceIsTransient(t *testing.T) {
	if !ErrorKindPersistenceUnavailable.Transient() {
		t.Fatal("persistence_unavailable should be transient")
	}
	if ErrorKindInsufficientCredits.Transient() || ErrorKindDuplicatePayment.Transient() {
		t.Fatal("business errors must not be transient")
	}
}
