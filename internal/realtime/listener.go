package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"wacrm/internal/models"
)

// pingInterval bounds how long a dead connection can go unnoticed when no
// notifications arrive.
const pingInterval = 90 * time.Second

// ConversationHandler receives conversation insert/update events.
type ConversationHandler func(kind string, conv *models.Conversation)

// MessageHandler receives newly inserted messages.
type MessageHandler func(msg *models.Message)

// MediaHandler receives media rows whose analysis payload changed.
type MediaHandler func(media *models.Media)

type conversationSub struct {
	phoneID string
	fn      ConversationHandler
}

type messageSub struct {
	phoneID string
	fn      MessageHandler
}

// Listener subscribes to the database's NOTIFY channels and fans events out
// to registered handlers. Delivery is at-least-once and unordered relative
// to concurrent fetches; notifications sent while the connection is down are
// lost, which the engine compensates for by refetching on reconnect.
type Listener struct {
	pql    *pq.Listener
	health *Health
	logger *zap.Logger

	mu        sync.Mutex
	nextSubID int
	convSubs  map[int]conversationSub
	msgSubs   map[int]messageSub
	mediaSubs map[int]MediaHandler
}

// NewListener builds a Listener over a LISTEN/NOTIFY connection to the given
// database. Reconnects are handled internally by lib/pq with backoff between
// the two intervals; lifecycle callbacks drive the health state machine.
func NewListener(dsn string, minReconnect, maxReconnect time.Duration, logger *zap.Logger) *Listener {
	l := &Listener{
		health:    NewHealth(),
		logger:    logger,
		convSubs:  make(map[int]conversationSub),
		msgSubs:   make(map[int]messageSub),
		mediaSubs: make(map[int]MediaHandler),
	}
	l.pql = pq.NewListener(dsn, minReconnect, maxReconnect, l.onLifecycleEvent)
	return l
}

// Health exposes the connection-health state machine.
func (l *Listener) Health() *Health {
	return l.health
}

func (l *Listener) onLifecycleEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		l.health.OnConnected()
	case pq.ListenerEventDisconnected:
		l.logger.Warn("Realtime connection lost", zap.Error(err))
		l.health.OnDisconnected()
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("Realtime reconnect attempt failed", zap.Error(err))
		l.health.OnAttemptFailed()
	}
}

// Run listens on all channels and dispatches notifications until the context
// is cancelled. It blocks and should be run in its own goroutine.
func (l *Listener) Run(ctx context.Context) error {
	for _, channel := range []string{ChannelConversations, ChannelMessages, ChannelMedia} {
		if err := l.pql.Listen(channel); err != nil {
			return err
		}
	}
	l.logger.Info("Realtime listener started")

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer l.pql.Close()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Realtime listener stopped")
			return nil
		case n := <-l.pql.Notify:
			if n == nil {
				// nil is delivered after a reconnect; the lifecycle
				// callback already moved the health state.
				continue
			}
			l.dispatch(n.Channel, []byte(n.Extra))
		case <-ping.C:
			if err := l.pql.Ping(); err != nil {
				l.logger.Warn("Realtime ping failed", zap.Error(err))
			}
		}
	}
}

// SubscribeConversations delivers insert/update events for conversations of
// the given phone. Returns an unsubscribe func.
func (l *Listener) SubscribeConversations(phoneID string, fn ConversationHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSubID
	l.nextSubID++
	l.convSubs[id] = conversationSub{phoneID: phoneID, fn: fn}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.convSubs, id)
	}
}

// SubscribeMessagesByPhone delivers every newly inserted message under the
// given phone, regardless of which conversation it belongs to. One stream
// feeds both the active-chat view and the sidebar rollup.
func (l *Listener) SubscribeMessagesByPhone(phoneID string, fn MessageHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSubID
	l.nextSubID++
	l.msgSubs[id] = messageSub{phoneID: phoneID, fn: fn}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.msgSubs, id)
	}
}

// SubscribeMediaAnalysisUpdates delivers every media row whose analysis
// field changed. Not phone-scoped: the annotation pipeline runs globally.
func (l *Listener) SubscribeMediaAnalysisUpdates(fn MediaHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSubID
	l.nextSubID++
	l.mediaSubs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.mediaSubs, id)
	}
}

func (l *Listener) dispatch(channel string, payload []byte) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		l.logger.Error("Failed to decode notification envelope",
			zap.String("channel", channel), zap.Error(err))
		return
	}

	switch channel {
	case ChannelConversations:
		var conv models.Conversation
		if err := json.Unmarshal(n.Row, &conv); err != nil {
			l.logger.Error("Failed to decode conversation row", zap.Error(err))
			return
		}
		for _, sub := range l.snapshotConvSubs() {
			if sub.phoneID == conv.PhoneID {
				sub.fn(n.Kind, &conv)
			}
		}
	case ChannelMessages:
		if n.Kind != KindInsert {
			return
		}
		var msg models.Message
		if err := json.Unmarshal(n.Row, &msg); err != nil {
			l.logger.Error("Failed to decode message row", zap.Error(err))
			return
		}
		for _, sub := range l.snapshotMsgSubs() {
			if sub.phoneID == msg.PhoneID {
				sub.fn(&msg)
			}
		}
	case ChannelMedia:
		var media models.Media
		if err := json.Unmarshal(n.Row, &media); err != nil {
			l.logger.Error("Failed to decode media row", zap.Error(err))
			return
		}
		if len(media.AIAnalysis) == 0 {
			return
		}
		for _, fn := range l.snapshotMediaSubs() {
			fn(&media)
		}
	}
}

func (l *Listener) snapshotConvSubs() []conversationSub {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := make([]conversationSub, 0, len(l.convSubs))
	for _, s := range l.convSubs {
		subs = append(subs, s)
	}
	return subs
}

func (l *Listener) snapshotMsgSubs() []messageSub {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := make([]messageSub, 0, len(l.msgSubs))
	for _, s := range l.msgSubs {
		subs = append(subs, s)
	}
	return subs
}

func (l *Listener) snapshotMediaSubs() []MediaHandler {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := make([]MediaHandler, 0, len(l.mediaSubs))
	for _, fn := range l.mediaSubs {
		subs = append(subs, fn)
	}
	return subs
}
