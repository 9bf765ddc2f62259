package monitor

import (
	"math"
	"strconv"
	"strings"

	"metawatch/internal/models"
)

// tpSlProximity is how far along the open-to-TP (or open-to-SL) distance the
// closing price must have travelled for the close to count as TP (or SL).
// Brokers fill a little short of the exact level, so an exact-match test
// would misclassify nearly every TP close as manual.
const tpSlProximity = 0.95

// ClassifyClose determines why a position closed and the signed point delta,
// given the position's frozen fields and the closing deal price.
//
// The delta is positive when the trade made points: close minus open for
// longs, open minus close for shorts. TP is checked before SL.
func ClassifyClose(pos models.Position, closingPrice float64) (models.CloseReason, float64) {
	if pos.Direction == models.DirectionLong {
		delta := closingPrice - pos.OpenPrice
		switch {
		case pos.TakeProfit != 0 && closingPrice >= pos.OpenPrice+tpSlProximity*(pos.TakeProfit-pos.OpenPrice):
			return models.CloseTakeProfit, delta
		case pos.StopLoss != 0 && closingPrice <= pos.OpenPrice-tpSlProximity*(pos.OpenPrice-pos.StopLoss):
			return models.CloseStopLoss, delta
		default:
			return models.CloseManual, delta
		}
	}

	delta := pos.OpenPrice - closingPrice
	switch {
	case pos.TakeProfit != 0 && closingPrice <= pos.OpenPrice-tpSlProximity*(pos.OpenPrice-pos.TakeProfit):
		return models.CloseTakeProfit, delta
	case pos.StopLoss != 0 && closingPrice >= pos.OpenPrice+tpSlProximity*(pos.StopLoss-pos.OpenPrice):
		return models.CloseStopLoss, delta
	default:
		return models.CloseManual, delta
	}
}

// RoundDelta rounds a point delta to the number of decimal places in the
// reference price's shortest textual representation, so displayed precision
// follows the instrument's quoting convention. A reference price that prints
// without decimals falls back to 2 places.
func RoundDelta(delta, refPrice float64) float64 {
	decimals := 2
	ref := strconv.FormatFloat(refPrice, 'f', -1, 64)
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		decimals = len(ref) - i - 1
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(delta*pow) / pow
}
