// Package models provides domain models for the account watcher.
package models

import (
	"strings"
	"time"
)

// Direction represents the direction of a position.
type Direction string

const (
	DirectionLong  Direction = "BUY"
	DirectionShort Direction = "SELL"
)

// OrderKind represents the kind of a pending order.
type OrderKind string

const (
	OrderBuyLimit  OrderKind = "BUY_LIMIT"
	OrderBuyStop   OrderKind = "BUY_STOP"
	OrderSellLimit OrderKind = "SELL_LIMIT"
	OrderSellStop  OrderKind = "SELL_STOP"
)

// Label returns a human-readable label for the order kind ("BUY LIMIT" etc).
func (k OrderKind) Label() string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// IsBuy reports whether the order kind opens a long position when triggered.
func (k OrderKind) IsBuy() bool {
	return strings.HasPrefix(string(k), "BUY")
}

// CloseReason classifies why a position was closed.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "TP"
	CloseStopLoss   CloseReason = "SL"
	CloseManual     CloseReason = "MANUAL"
)

// Position represents an open position reported by the terminal.
//
// OpenPrice, TakeProfit, StopLoss, Direction and Symbol are frozen at first
// observation; later terminal reports for the same id never overwrite them.
type Position struct {
	ID         string
	Symbol     string
	Direction  Direction
	OpenPrice  float64
	TakeProfit float64 // 0 means not set
	StopLoss   float64 // 0 means not set
	OrderID    string  // originating pending order, if any
}

// PendingOrder represents a pending order reported by the terminal.
type PendingOrder struct {
	ID         string
	Symbol     string
	Kind       OrderKind
	Price      float64 // trigger price
	TakeProfit float64 // 0 means not set
	StopLoss   float64 // 0 means not set
}

// Deal represents a historical deal from the terminal's history storage.
type Deal struct {
	ID         string
	PositionID string
	Symbol     string
	Price      float64
	Time       time.Time
}

// Snapshot is the complete terminal state at one poll: open positions and
// pending orders keyed by their broker-assigned ids.
type Snapshot struct {
	Positions map[string]Position
	Orders    map[string]PendingOrder
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		Positions: make(map[string]Position),
		Orders:    make(map[string]PendingOrder),
	}
}

// ClosedPosition is one ledger record of a position closed today.
type ClosedPosition struct {
	ID       string
	Symbol   string
	Points   float64
	Reason   CloseReason
	ClosedAt time.Time
}

// CancelledOrder is one ledger record of a pending order cancelled today.
type CancelledOrder struct {
	ID          string
	Symbol      string
	Kind        OrderKind
	Price       float64
	CancelledAt time.Time
}
