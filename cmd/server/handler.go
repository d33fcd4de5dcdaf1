package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/logging"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxLineSize = 1 << 20

// request is one line of input
type request struct {
	Op     string `json:"op"`
	ID     string `json:"id"`
	Side   string `json:"side"`
	Price  int64  `json:"price"`
	Qty    int64  `json:"qty"`
	Symbol string `json:"symbol"`
	// Levels limits a depth request, 0 means all
	Levels int `json:"levels"`
}

// response is one line of output
type response struct {
	Op        string                  `json:"op"`
	RequestID string                  `json:"request_id"`
	ID        string                  `json:"id,omitempty"`
	OK        bool                    `json:"ok"`
	Error     string                  `json:"error,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
	Actions   []string                `json:"actions,omitempty"`
	Events    []*messaging.OrderEvent `json:"events,omitempty"`
	Trades    []core.Fill             `json:"trades,omitempty"`
	Order     *core.Order             `json:"order,omitempty"`
	Bids      []core.Level            `json:"bids,omitempty"`
	Asks      []core.Level            `json:"asks,omitempty"`
	Snapshot  *core.Snapshot          `json:"snapshot,omitempty"`
	Info      *service.BookInfo       `json:"info,omitempty"`
}

// handler applies requests to one book. Requests without a symbol trade the
// book's own.
type handler struct {
	book   *service.Book
	logger zerolog.Logger
}

// serve reads requests from in until EOF or ctx is done and writes one
// response per non-empty line to out
func (h *handler) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := h.handle(ctx, line)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read requests: %w", err)
	}
	return nil
}

func (h *handler) handle(ctx context.Context, line []byte) *response {
	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)

	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		h.logger.Warn().Err(err).Str("request_id", requestID).Msg("Malformed request")
		return &response{RequestID: requestID, Error: fmt.Sprintf("malformed request: %v", err), Reason: "malformed"}
	}

	resp := &response{Op: req.Op, RequestID: requestID, ID: req.ID}
	if req.Symbol == "" {
		req.Symbol = h.book.Symbol()
	}

	switch req.Op {
	case "submit":
		h.submit(ctx, req, resp)
	case "cancel":
		result, err := h.book.Cancel(ctx, req.ID)
		h.fill(resp, result, err)
	case "order":
		order, err := h.book.Order(req.ID)
		if err != nil {
			fail(resp, err)
			break
		}
		resp.OK = true
		resp.Order = order
	case "depth":
		resp.OK = true
		resp.Bids = h.book.Depth(core.Buy, req.Levels)
		resp.Asks = h.book.Depth(core.Sell, req.Levels)
	case "info":
		info := h.book.Info()
		resp.OK = true
		resp.Info = &info
	case "snapshot":
		snap := h.book.Snapshot()
		resp.OK = true
		resp.Snapshot = &snap
	default:
		resp.Error = fmt.Sprintf("unknown op %q", req.Op)
		resp.Reason = "unknown_op"
	}
	return resp
}

func (h *handler) submit(ctx context.Context, req request, resp *response) {
	side, err := core.ParseSide(req.Side)
	if err != nil {
		fail(resp, err)
		return
	}

	result, err := h.book.Submit(ctx, core.OrderRequest{
		ID:     req.ID,
		Side:   side,
		Price:  req.Price,
		Qty:    req.Qty,
		Symbol: req.Symbol,
	})
	h.fill(resp, result, err)
	if result != nil {
		resp.Trades = result.Trades
	}
}

// fill copies a call outcome into resp. A publish failure still carries the
// committed result.
func (h *handler) fill(resp *response, result *service.Result, err error) {
	if result == nil {
		fail(resp, err)
		return
	}

	resp.OK = true
	resp.Events = result.Events
	resp.Actions = make([]string, len(result.Actions))
	for i, a := range result.Actions {
		resp.Actions[i] = a.String()
	}
	if err != nil {
		resp.Error = err.Error()
		if errors.Is(err, service.ErrPublishFailed) {
			resp.Reason = "publish_failed"
		}
	}
}

func fail(resp *response, err error) {
	resp.OK = false
	resp.Error = err.Error()
	resp.Reason = service.RejectReason(err)
}
