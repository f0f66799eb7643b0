package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wacrm/internal/models"
	"wacrm/internal/outbound_client"
	"wacrm/internal/realtime"
	"wacrm/internal/repository"
)

// waitingForNetwork is the transient status shown while fetches fail or
// time out; cached data stays visible and the status clears on the next
// successful fetch.
const waitingForNetwork = "waiting for network"

// Subscriber is the slice of the realtime listener the engine consumes.
type Subscriber interface {
	SubscribeConversations(phoneID string, fn realtime.ConversationHandler) func()
	SubscribeMessagesByPhone(phoneID string, fn realtime.MessageHandler) func()
	SubscribeMediaAnalysisUpdates(fn realtime.MediaHandler) func()
	Health() *realtime.Health
}

// Sender posts outbound messages to the delivery webhook.
type Sender interface {
	Send(ctx context.Context, req outbound_client.SendRequest) error
}

// Notifier is pinged when a conversation is newly derived an opportunity.
type Notifier interface {
	NotifyOpportunity(conv *models.Conversation)
}

// Options tune the engine. Zero values fall back to sane defaults.
type Options struct {
	FetchTimeout     time.Duration
	ClosedListLimit  int
	MessageCacheSize int
	MessageLimit     int
}

func (o *Options) applyDefaults() {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.ClosedListLimit <= 0 {
		o.ClosedListLimit = 50
	}
	if o.MessageCacheSize <= 0 {
		o.MessageCacheSize = 64
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = 50
	}
}

// State is a read-only snapshot of the engine for the dashboard.
type State struct {
	PhoneID              string                 `json:"phone_id"`
	ShowClosed           bool                   `json:"show_closed"`
	ActiveConversationID string                 `json:"active_conversation_id"`
	Connection           string                 `json:"connection"`
	LastError            string                 `json:"last_error,omitempty"`
	Conversations        []*models.Conversation `json:"conversations"`
	Messages             []*models.Message      `json:"messages"`
}

// Engine keeps the in-memory conversation and message views consistent
// against bulk fetches, the realtime change stream, and locally-originated
// optimistic sends. All reconciler state is owned by a single loop
// goroutine; every mutation arrives as a closure on the mailbox, so
// operations apply strictly in delivery order and no locking is needed
// around the lists. Network calls run in short-lived goroutines and post
// their completions back onto the loop, where generation tokens drop
// results that arrive after the operator has moved on.
type Engine struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	subscriber       Subscriber
	sender           Sender
	notifier         Notifier
	logger           *zap.Logger
	opts             Options

	ops     chan func()
	done    chan struct{}
	loopCtx context.Context

	conversations *ConversationList
	messages      *MessageList
	cache         *messageCache

	phoneID      string
	showClosed   bool
	phoneGen     int
	activeConvID string
	lastError    string

	unsubConv func()
	unsubMsg  func()
}

// New builds an engine. Start must be called before any other method.
func New(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	subscriber Subscriber,
	sender Sender,
	notifier Notifier,
	logger *zap.Logger,
	opts Options,
) *Engine {
	opts.applyDefaults()
	return &Engine{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		subscriber:       subscriber,
		sender:           sender,
		notifier:         notifier,
		logger:           logger,
		opts:             opts,
		ops:              make(chan func(), 256),
		done:             make(chan struct{}),
		conversations:    &ConversationList{},
		messages:         &MessageList{},
		cache:            newMessageCache(opts.MessageCacheSize),
	}
}

// Start launches the engine loop and wires the global subscriptions. The
// loop runs until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.loopCtx = ctx

	// Missed notifications during a disconnect window cannot be replayed,
	// so a recovered connection always triggers a reseed.
	e.subscriber.Health().Observe(func(old, next realtime.ConnState) {
		e.logger.Info("Realtime connection state changed",
			zap.String("from", old.String()), zap.String("to", next.String()))
		if next == realtime.StateConnected {
			e.post(e.reseed)
		}
	})

	// Media analysis events are global; the subscription lives as long as
	// the engine does.
	e.subscriber.SubscribeMediaAnalysisUpdates(e.handleMedia)

	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	e.logger.Info("Sync engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Sync engine stopped")
			return
		case op := <-e.ops:
			op()
		}
	}
}

// post hands a closure to the loop goroutine.
func (e *Engine) post(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.done:
	}
}

// call posts fn and waits for the loop to execute it.
func (e *Engine) call(fn func()) {
	executed := make(chan struct{})
	e.post(func() {
		fn()
		close(executed)
	})
	select {
	case <-executed:
	case <-e.done:
	}
}

func (e *Engine) fetchContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.loopCtx, e.opts.FetchTimeout)
}

// SelectPhone switches the engine to a phone (and open/closed filter). The
// previous phone's subscriptions are torn down, state is cleared, and a
// fresh seed fetch is issued. In-flight fetches for the previous phone are
// suppressed by the generation token when they land.
func (e *Engine) SelectPhone(phoneID string, showClosed bool) {
	e.post(func() {
		if e.phoneID == phoneID && e.showClosed == showClosed {
			return
		}
		e.phoneGen++
		e.phoneID = phoneID
		e.showClosed = showClosed
		e.activeConvID = ""
		e.unsubscribePhone()
		e.conversations.Seed(nil)
		e.messages.Seed("", nil)
		if phoneID == "" {
			return
		}

		e.unsubConv = e.subscriber.SubscribeConversations(phoneID, e.handleConversationEvent)
		e.unsubMsg = e.subscriber.SubscribeMessagesByPhone(phoneID, e.handleMessage)
		e.fetchConversations()
	})
}

// OpenConversation makes a conversation the active one: its cached messages
// (if any) are shown immediately, a fresh fetch is issued, and the unread
// counter is cleared both in memory and in the backend. A fetch completing
// after the operator has switched away is discarded.
func (e *Engine) OpenConversation(conversationID string) {
	e.post(func() {
		if e.activeConvID == conversationID {
			return
		}
		e.activeConvID = conversationID
		if conversationID == "" {
			e.messages.Seed("", nil)
			return
		}

		if cached, ok := e.cache.Get(conversationID); ok {
			e.messages.Seed(conversationID, cached)
		} else {
			e.messages.Seed(conversationID, nil)
		}
		e.conversations.ClearUnread(conversationID)

		go func() {
			ctx, cancel := e.fetchContext()
			defer cancel()
			if err := e.conversationRepo.MarkConversationRead(ctx, conversationID); err != nil {
				e.logger.Warn("Failed to mark conversation read",
					zap.String("conversation_id", conversationID), zap.Error(err))
			}
		}()

		e.fetchMessages(conversationID)
	})
}

// SendReply posts an outbound reply to the delivery webhook and, on
// acceptance, appends an optimistic placeholder to the active message list.
// The persisted message later arrives via realtime and replaces the
// placeholder. The webhook call runs on the caller's context.
func (e *Engine) SendReply(ctx context.Context, conversationID, phoneID, toNumber, fromNumber, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("message body must not be empty")
	}

	err := e.sender.Send(ctx, outbound_client.SendRequest{
		ConversationID: conversationID,
		PhoneID:        phoneID,
		ToNumber:       toNumber,
		FromNumber:     fromNumber,
		Body:           body,
	})
	if err != nil {
		return fmt.Errorf("outbound send failed: %w", err)
	}

	e.post(func() {
		if e.messages.ConversationID() != conversationID {
			return
		}
		e.messages.AppendOptimistic(body, fromNumber, toNumber)
		e.cache.Put(conversationID, e.messages.Items())
	})
	return nil
}

// RefreshConversations forces a reseed of the conversation list, used after
// operator actions like closing or reopening a chat.
func (e *Engine) RefreshConversations() {
	e.post(func() {
		if e.phoneID != "" {
			e.fetchConversations()
		}
	})
}

// Snapshot returns a consistent copy of the engine's state.
func (e *Engine) Snapshot() State {
	var s State
	e.call(func() {
		s = State{
			PhoneID:              e.phoneID,
			ShowClosed:           e.showClosed,
			ActiveConversationID: e.activeConvID,
			Connection:           e.subscriber.Health().State().String(),
			LastError:            e.lastError,
			Conversations:        e.conversations.Items(),
			Messages:             e.messages.Items(),
		}
	})
	return s
}

// ---- loop-side internals ----------------------------------------------

// viewStatus is the conversation status the current view filters on.
func (e *Engine) viewStatus() string {
	if e.showClosed {
		return models.ConversationClosed
	}
	return models.ConversationOpen
}

func (e *Engine) unsubscribePhone() {
	if e.unsubConv != nil {
		e.unsubConv()
		e.unsubConv = nil
	}
	if e.unsubMsg != nil {
		e.unsubMsg()
		e.unsubMsg = nil
	}
}

// fetchConversations seeds the list from the backend for the current phone
// and filter. Runs on the loop; the completion is guarded by the phone
// generation captured here.
func (e *Engine) fetchConversations() {
	gen := e.phoneGen
	phoneID := e.phoneID
	showClosed := e.showClosed

	go func() {
		ctx, cancel := e.fetchContext()
		defer cancel()

		var convs []*models.Conversation
		var err error
		if showClosed {
			convs, err = e.conversationRepo.GetClosedConversations(ctx, phoneID, e.opts.ClosedListLimit)
		} else {
			convs, err = e.conversationRepo.GetOpenConversations(ctx, phoneID)
		}

		e.post(func() {
			if gen != e.phoneGen {
				return // operator switched phone or filter meanwhile
			}
			if err != nil {
				e.logger.Warn("Conversation fetch failed", zap.String("phone_id", phoneID), zap.Error(err))
				e.lastError = waitingForNetwork
				return
			}
			e.lastError = ""
			e.conversations.Seed(convs)
		})
	}()
}

// fetchMessages loads the active conversation's messages. The completion is
// applied only if that conversation is still the active one.
func (e *Engine) fetchMessages(conversationID string) {
	go func() {
		ctx, cancel := e.fetchContext()
		defer cancel()
		msgs, err := e.messageRepo.GetMessagesByConversation(ctx, conversationID, e.opts.MessageLimit)

		e.post(func() {
			if e.activeConvID != conversationID {
				return // late result from a chat the operator left
			}
			if err != nil {
				e.logger.Warn("Message fetch failed",
					zap.String("conversation_id", conversationID), zap.Error(err))
				e.lastError = waitingForNetwork
				return // cached messages stay visible
			}
			e.lastError = ""
			e.messages.Seed(conversationID, msgs)
			e.cache.Put(conversationID, msgs)
			// Fallback sync in case a media analysis landed while no
			// subscription was watching this conversation.
			e.syncClassification(conversationID)
		})
	}()
}

// fetchConversationDetail is the supplementary fetch issued when an event
// payload lacks the client join. On failure the entry keeps whatever data
// it had; the list degrades to showing a phone number, not an error.
func (e *Engine) fetchConversationDetail(conversationID string) {
	gen := e.phoneGen
	go func() {
		ctx, cancel := e.fetchContext()
		defer cancel()
		full, err := e.conversationRepo.GetConversationByID(ctx, conversationID)
		if err != nil || full == nil {
			e.logger.Warn("Supplementary conversation fetch failed",
				zap.String("conversation_id", conversationID), zap.Error(err))
			return
		}

		e.post(func() {
			if gen != e.phoneGen {
				return
			}
			if e.conversations.Get(conversationID) == nil {
				// Out-of-band conversation discovered through one of its
				// messages before any conversation event arrived.
				if full.Status != e.viewStatus() {
					return
				}
				e.conversations.ApplyInsert(full)
			} else {
				e.conversations.SetClient(conversationID, full.Client)
			}
		})
	}()
}

func (e *Engine) handleConversationEvent(kind string, conv *models.Conversation) {
	e.post(func() {
		if conv.PhoneID != e.phoneID {
			return
		}

		// Events are filtered against the current view: both lists stay
		// live, and a status change moves the conversation out of the list
		// that no longer matches it.
		if conv.Status != e.viewStatus() {
			e.conversations.Remove(conv.ID)
			return
		}

		switch kind {
		case realtime.KindInsert:
			if _, needsClient := e.conversations.ApplyInsert(conv); needsClient {
				e.fetchConversationDetail(conv.ID)
			}
		case realtime.KindUpdate:
			if e.conversations.ApplyUpdate(conv) {
				e.fetchConversationDetail(conv.ID)
			}
		default:
			return
		}
		// The annotation pipeline may already have classified media by the
		// time the conversation event lands.
		e.syncClassification(conv.ID)
	})
}

func (e *Engine) handleMessage(msg *models.Message) {
	e.post(func() {
		if msg.PhoneID != e.phoneID {
			return
		}

		if msg.ConversationID == e.activeConvID {
			if msg.BodyTruncated {
				// The NOTIFY row carried a bounded body; the reseed brings
				// the full text and reconciles any placeholder.
				e.fetchMessages(e.activeConvID)
			} else if e.messages.ApplyInsert(msg) {
				e.cache.Put(msg.ConversationID, e.messages.Items())
			}
		}

		conv, known := e.conversations.ApplyMessage(msg, e.activeConvID)
		switch {
		case !known:
			// Message for a conversation the list has never seen; resolve
			// the full row including the client join.
			e.fetchConversationDetail(msg.ConversationID)
		case !conv.HasClient():
			e.fetchConversationDetail(msg.ConversationID)
		}

		if msg.NumMedia > 0 {
			e.syncClassification(msg.ConversationID)
		}
	})
}

func (e *Engine) handleMedia(media *models.Media) {
	go func() {
		ctx, cancel := e.fetchContext()
		defer cancel()
		conversationID, err := e.messageRepo.GetConversationIDByMessage(ctx, media.MessageID)
		if err != nil {
			e.logger.Warn("Failed to resolve conversation for media update",
				zap.String("media_id", media.ID), zap.Error(err))
			return
		}
		if conversationID == "" {
			return
		}
		e.post(func() {
			e.syncClassification(conversationID)
		})
	}()
}

// syncClassification derives a label from the conversation's media analyses
// and, when it disagrees with what is held, updates memory first and writes
// back asynchronously. Write-back failures are logged, never retried, and
// never roll back the in-memory change. Runs on the loop.
func (e *Engine) syncClassification(conversationID string) {
	go func() {
		ctx, cancel := e.fetchContext()
		defer cancel()
		msgs, err := e.messageRepo.GetMessagesWithMedia(ctx, conversationID)
		if err != nil {
			e.logger.Warn("Classification scan fetch failed",
				zap.String("conversation_id", conversationID), zap.Error(err))
			return
		}

		derived := deriveClassification(msgs)
		if derived == "" {
			return
		}

		e.post(func() {
			conv := e.conversations.Get(conversationID)
			if conv == nil || conv.EffectiveClassification() == derived {
				return
			}
			e.logger.Info("Classification derived from media analysis",
				zap.String("conversation_id", conversationID),
				zap.String("classification", derived))
			e.conversations.SetClassification(conversationID, derived)

			if derived == models.ClassificationOpportunity && e.notifier != nil {
				e.notifier.NotifyOpportunity(e.conversations.Get(conversationID))
			}

			go func() {
				ctx, cancel := e.fetchContext()
				defer cancel()
				if err := e.conversationRepo.UpdateClassification(ctx, conversationID, derived); err != nil {
					e.logger.Error("Failed to persist classification",
						zap.String("conversation_id", conversationID), zap.Error(err))
				}
			}()
		})
	}()
}

// reseed refetches everything after a recovered realtime connection; events
// emitted during the outage are gone for good, the backend is the source of
// truth. Runs on the loop.
func (e *Engine) reseed() {
	if e.phoneID == "" {
		return
	}
	e.fetchConversations()
	if e.activeConvID != "" {
		e.fetchMessages(e.activeConvID)
	}
}
