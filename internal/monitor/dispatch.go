package monitor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"metawatch/internal/logging"
	"metawatch/internal/models"
	"metawatch/internal/telegram"
)

// Dispatcher turns classified events into formatted messages and owns the
// reply-threading state: which message announced which entity, and which
// order ids have already been matched to a position. Every classified event
// produces exactly one outbound message.
type Dispatcher struct {
	msgr telegram.Messenger
	log  zerolog.Logger

	positionMsgs map[string]int64 // position id -> announcing message id
	orderMsgs    map[string]int64 // order id -> announcing message id
	linked       map[string]struct{}
}

// NewDispatcher creates a dispatcher with empty threading state.
func NewDispatcher(msgr telegram.Messenger, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		msgr:         msgr,
		log:          logger,
		positionMsgs: make(map[string]int64),
		orderMsgs:    make(map[string]int64),
		linked:       make(map[string]struct{}),
	}
}

// IsLinked reports whether the order id was already matched to a position.
func (d *Dispatcher) IsLinked(id string) bool {
	_, ok := d.linked[id]
	return ok
}

// HasOrderMessage reports whether a pending-order announcement exists for id.
func (d *Dispatcher) HasOrderMessage(id string) bool {
	_, ok := d.orderMsgs[id]
	return ok
}

// HasPositionMessage reports whether a position announcement exists for id.
func (d *Dispatcher) HasPositionMessage(id string) bool {
	_, ok := d.positionMsgs[id]
	return ok
}

// References reports whether the id is still held by threading state. Used
// by the resolver's compaction sweep.
func (d *Dispatcher) References(id string) bool {
	if _, ok := d.orderMsgs[id]; ok {
		return true
	}
	_, ok := d.linked[id]
	return ok
}

// AnnouncePosition announces a position opened directly at market.
func (d *Dispatcher) AnnouncePosition(ctx context.Context, pos models.Position) error {
	emoji := "📈"
	if pos.Direction == models.DirectionShort {
		emoji = "📉"
	}
	text := fmt.Sprintf(
		"**%s %s %s**\n__ID: %s__\n\n💵 Entry Price: %s\n⛔️ SL: `%s`   ✅ TP: `%s`",
		emoji, pos.Direction, pos.Symbol, pos.ID,
		fmtPrice(pos.OpenPrice), fmtLevel(pos.StopLoss), fmtLevel(pos.TakeProfit),
	)

	id, err := d.msgr.Send(ctx, text, 0)
	if err != nil {
		return err
	}
	d.positionMsgs[pos.ID] = id
	logging.LogOutbound(d.log, id, text)
	return nil
}

// AnnouncePendingOrder announces a newly placed pending order.
func (d *Dispatcher) AnnouncePendingOrder(ctx context.Context, order models.PendingOrder) error {
	emoji := "🔸"
	if order.Kind.IsBuy() {
		emoji = "🔹"
	}
	text := fmt.Sprintf(
		"**%s PENDING %s %s**\n__ID: %s__\n\n💵 Trigger Price: %s\n⛔️ SL: `%s`   ✅ TP: `%s`",
		emoji, order.Kind.Label(), order.Symbol, order.ID,
		fmtPrice(order.Price), fmtLevel(order.StopLoss), fmtLevel(order.TakeProfit),
	)

	id, err := d.msgr.Send(ctx, text, 0)
	if err != nil {
		return err
	}
	d.orderMsgs[order.ID] = id
	logging.LogOutbound(d.log, id, text)
	return nil
}

// AnnounceTriggered announces a pending order that converted into a position,
// threaded as a reply to the original pending-order announcement. The order
// id is added to the linked set so it is announced as triggered at most once
// and never again as a spontaneous new position.
func (d *Dispatcher) AnnounceTriggered(ctx context.Context, pos models.Position) error {
	if d.IsLinked(pos.ID) {
		return nil
	}

	emoji := "📈"
	if pos.Direction == models.DirectionShort {
		emoji = "📉"
	}
	text := fmt.Sprintf(
		"**%s TRIGGERED %s %s**\n__ID: %s__\n\n💵 Entry Price: %s\n⛔️ SL: `%s`   ✅ TP: `%s`",
		emoji, pos.Direction, pos.Symbol, pos.ID,
		fmtPrice(pos.OpenPrice), fmtLevel(pos.StopLoss), fmtLevel(pos.TakeProfit),
	)

	id, err := d.msgr.Send(ctx, text, d.orderMsgs[pos.ID])
	if err != nil {
		return err
	}
	d.linked[pos.ID] = struct{}{}
	d.positionMsgs[pos.ID] = id
	logging.LogOutbound(d.log, id, text)
	return nil
}

// AnnounceCancelled announces a cancelled pending order, threaded as a reply
// to the original announcement, and releases the order's thread link.
func (d *Dispatcher) AnnounceCancelled(ctx context.Context, order models.PendingOrder) error {
	text := fmt.Sprintf(
		"**🚫 CANCELED ORDER %s**\n__ID: %s__\n\nOrder was canceled before being triggered",
		order.Symbol, order.ID,
	)

	id, err := d.msgr.Send(ctx, text, d.orderMsgs[order.ID])
	if err != nil {
		return err
	}
	delete(d.orderMsgs, order.ID)
	logging.LogOutbound(d.log, id, text)
	return nil
}

// AnnounceClose announces a classified position close, threaded as a reply
// to the message that announced the position, and consumes the thread link.
func (d *Dispatcher) AnnounceClose(ctx context.Context, pos models.Position, closingPrice, points float64, reason models.CloseReason) error {
	var header string
	switch reason {
	case models.CloseTakeProfit:
		header = fmt.Sprintf("🤑 TP %s", pos.Symbol)
	case models.CloseStopLoss:
		header = fmt.Sprintf("⛔️ SL %s", pos.Symbol)
	default:
		emoji := "✅"
		if points <= 0 {
			emoji = "❌"
		}
		header = fmt.Sprintf("%s CLOSE %s", emoji, pos.Symbol)
	}

	text := fmt.Sprintf(
		"**%s**\n__ID: %s__\n\n💰 Closing Price: %s\n📊 Points: %s",
		header, pos.ID, fmtPrice(closingPrice), fmtPrice(points),
	)

	id, err := d.msgr.Send(ctx, text, d.positionMsgs[pos.ID])
	if err != nil {
		return err
	}
	delete(d.positionMsgs, pos.ID)
	logging.LogOutbound(d.log, id, text)
	return nil
}

// AnnounceCloseDegraded announces a close for which no usable price data
// exists. The position is still reported, just without a point delta.
func (d *Dispatcher) AnnounceCloseDegraded(ctx context.Context, pos models.Position, note string) error {
	text := fmt.Sprintf("🔴 **CLOSE %s**\n__ID: %s__\n\n%s", pos.Symbol, pos.ID, note)

	id, err := d.msgr.Send(ctx, text, d.positionMsgs[pos.ID])
	if err != nil {
		return err
	}
	delete(d.positionMsgs, pos.ID)
	logging.LogOutbound(d.log, id, text)
	return nil
}

// fmtPrice renders a price the way the instrument quotes it, without
// trailing zeros.
func fmtPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// fmtLevel renders an optional TP/SL level; zero means not set.
func fmtLevel(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmtPrice(p)
}
