package messaging

import (
	"fmt"

	"github.com/erain9/tickbook/pkg/core"
	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf field numbers of the OrderEvent message:
//
//	message Fill {
//	  int64  price         = 1;
//	  string price_decimal = 2;
//	  int64  qty           = 3;
//	  string counterparty  = 4;
//	}
//	message OrderEvent {
//	  uint64 event_seq     = 1;
//	  string order_id      = 2;
//	  string symbol        = 3;
//	  Side   side          = 4; // SELL = 0, BUY = 1
//	  string state         = 5;
//	  int64  price         = 6;
//	  string price_decimal = 7;
//	  int64  qty           = 8;
//	  int64  qty_open      = 9;
//	  int64  qty_filled    = 10;
//	  repeated Fill fills  = 11;
//	  uint64 seq           = 12;
//	}
const (
	fieldEventSeq     protowire.Number = 1
	fieldOrderID      protowire.Number = 2
	fieldSymbol       protowire.Number = 3
	fieldSide         protowire.Number = 4
	fieldState        protowire.Number = 5
	fieldPrice        protowire.Number = 6
	fieldPriceDecimal protowire.Number = 7
	fieldQty          protowire.Number = 8
	fieldQtyOpen      protowire.Number = 9
	fieldQtyFilled    protowire.Number = 10
	fieldFills        protowire.Number = 11
	fieldSeq          protowire.Number = 12

	fieldFillPrice        protowire.Number = 1
	fieldFillPriceDecimal protowire.Number = 2
	fieldFillQty          protowire.Number = 3
	fieldFillCounterparty protowire.Number = 4
)

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// MarshalOrderEvent encodes e in protobuf wire format
func MarshalOrderEvent(e *OrderEvent) []byte {
	var b []byte
	b = appendVarint(b, fieldEventSeq, e.EventSeq)
	b = appendString(b, fieldOrderID, e.OrderID)
	b = appendString(b, fieldSymbol, e.Symbol)
	b = appendVarint(b, fieldSide, uint64(e.Side))
	b = appendString(b, fieldState, string(e.State))
	b = appendVarint(b, fieldPrice, uint64(e.Price))
	b = appendString(b, fieldPriceDecimal, e.PriceDecimal)
	b = appendVarint(b, fieldQty, uint64(e.Qty))
	b = appendVarint(b, fieldQtyOpen, uint64(e.QtyOpen))
	b = appendVarint(b, fieldQtyFilled, uint64(e.QtyFilled))
	for _, f := range e.Fills {
		var fb []byte
		fb = appendVarint(fb, fieldFillPrice, uint64(f.Price))
		fb = appendString(fb, fieldFillPriceDecimal, f.PriceDecimal)
		fb = appendVarint(fb, fieldFillQty, uint64(f.Qty))
		fb = appendString(fb, fieldFillCounterparty, f.Counterparty)

		b = protowire.AppendTag(b, fieldFills, protowire.BytesType)
		b = protowire.AppendBytes(b, fb)
	}
	b = appendVarint(b, fieldSeq, e.Seq)
	return b
}

// UnmarshalOrderEvent decodes data produced by MarshalOrderEvent. Unknown
// fields are skipped.
func UnmarshalOrderEvent(data []byte) (*OrderEvent, error) {
	e := &OrderEvent{Fills: []FillEvent{}}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("order event tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && isVarintField(num):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("order event field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			setVarint(e, num, v)

		case typ == protowire.BytesType && isBytesField(num):
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("order event field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if num == fieldFills {
				fill, err := unmarshalFill(v)
				if err != nil {
					return nil, err
				}
				e.Fills = append(e.Fills, fill)
				continue
			}
			setString(e, num, string(v))

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("order event field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if !e.Side.Valid() {
		return nil, fmt.Errorf("order event side %d: %w", int(e.Side), core.ErrInvalidSide)
	}
	return e, nil
}

func isVarintField(num protowire.Number) bool {
	switch num {
	case fieldEventSeq, fieldSide, fieldPrice, fieldQty, fieldQtyOpen, fieldQtyFilled, fieldSeq:
		return true
	}
	return false
}

func isBytesField(num protowire.Number) bool {
	switch num {
	case fieldOrderID, fieldSymbol, fieldState, fieldPriceDecimal, fieldFills:
		return true
	}
	return false
}

func setVarint(e *OrderEvent, num protowire.Number, v uint64) {
	switch num {
	case fieldEventSeq:
		e.EventSeq = v
	case fieldSide:
		e.Side = core.Side(v)
	case fieldPrice:
		e.Price = int64(v)
	case fieldQty:
		e.Qty = int64(v)
	case fieldQtyOpen:
		e.QtyOpen = int64(v)
	case fieldQtyFilled:
		e.QtyFilled = int64(v)
	case fieldSeq:
		e.Seq = v
	}
}

func setString(e *OrderEvent, num protowire.Number, s string) {
	switch num {
	case fieldOrderID:
		e.OrderID = s
	case fieldSymbol:
		e.Symbol = s
	case fieldState:
		e.State = core.State(s)
	case fieldPriceDecimal:
		e.PriceDecimal = s
	}
}

func unmarshalFill(data []byte) (FillEvent, error) {
	var f FillEvent
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return f, fmt.Errorf("fill tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldFillPrice || num == fieldFillQty):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return f, fmt.Errorf("fill field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if num == fieldFillPrice {
				f.Price = int64(v)
			} else {
				f.Qty = int64(v)
			}

		case typ == protowire.BytesType && (num == fieldFillPriceDecimal || num == fieldFillCounterparty):
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return f, fmt.Errorf("fill field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if num == fieldFillPriceDecimal {
				f.PriceDecimal = string(v)
			} else {
				f.Counterparty = string(v)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return f, fmt.Errorf("fill field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return f, nil
}
