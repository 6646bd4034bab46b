package faucetd

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"burnfaucet/core/events"
)

const (
	eventHistoryLimit = 1024
	eventBuffer       = 64
	wsWriteTimeout    = 10 * time.Second
)

// EventMessage is one committed event as sent on GET /v1/events. Cursor is
// the sequence number to resume after.
type EventMessage struct {
	Cursor     string            `json:"cursor"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Tx         string            `json:"tx"`
	Attributes map[string]string `json:"attributes"`
}

func cloneEventMessage(msg EventMessage) EventMessage {
	cloned := msg
	if msg.Attributes != nil {
		cloned.Attributes = make(map[string]string, len(msg.Attributes))
		for k, v := range msg.Attributes {
			cloned.Attributes[k] = v
		}
	}
	return cloned
}

// eventStream keeps a bounded history of committed events and fans them out
// to live subscribers. Slow subscribers drop events rather than block the
// host; they can reconnect with their last cursor to catch up.
type eventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	history []EventMessage
	subs    map[uint64]chan EventMessage
}

func newEventStream() *eventStream {
	return &eventStream{subs: make(map[uint64]chan EventMessage)}
}

// Emit implements events.Emitter. Only committed ledger events are streamed.
func (s *eventStream) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok {
		return
	}
	s.mu.Lock()
	s.seq++
	msg := EventMessage{
		Cursor:     strconv.FormatUint(s.seq, 10),
		Sequence:   s.seq,
		Type:       committed.Evt.Type,
		Tx:         committed.Signature,
		Attributes: committed.Evt.Attributes,
	}
	s.history = append(s.history, cloneEventMessage(msg))
	if len(s.history) > eventHistoryLimit {
		excess := len(s.history) - eventHistoryLimit
		trimmed := make([]EventMessage, eventHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	subscribers := make([]chan EventMessage, 0, len(s.subs))
	for _, ch := range s.subs {
		subscribers = append(subscribers, ch)
	}
	s.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- cloneEventMessage(msg):
		default:
		}
	}
}

// Subscribe registers a subscriber and returns the retained events after
// cursor. An empty or malformed cursor replays nothing. cancel is called
// automatically when ctx ends.
func (s *eventStream) Subscribe(ctx context.Context, cursor string) (<-chan EventMessage, func(), []EventMessage) {
	updates := make(chan EventMessage, eventBuffer)
	since := s.currentSeq()
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]EventMessage, 0)
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventMessage(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return updates, cancel, backlog
}

func (s *eventStream) currentSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// fanout delivers each event to every emitter in order.
type fanout []events.Emitter

func (f fanout) Emit(evt events.Event) {
	for _, e := range f {
		e.Emit(evt)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// Clients only read; CloseRead handles their close frames and cancels ctx.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream ended", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor string) error {
	updates, cancel, backlog := s.node.SubscribeEvents(ctx, cursor)
	defer cancel()

	for _, msg := range backlog {
		if err := writeEvent(ctx, conn, msg); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, msg EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
