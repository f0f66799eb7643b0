package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"wacrm/internal/models"
	"wacrm/internal/outbound_client"
	"wacrm/internal/realtime"
)

type fakeConversationRepo struct {
	mu              sync.Mutex
	open            map[string][]*models.Conversation
	byID            map[string]*models.Conversation
	gates           map[string]chan struct{}
	classifications map[string]string
	readMarks       []string
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		open:            make(map[string][]*models.Conversation),
		byID:            make(map[string]*models.Conversation),
		gates:           make(map[string]chan struct{}),
		classifications: make(map[string]string),
	}
}

func (r *fakeConversationRepo) GetOpenConversations(ctx context.Context, phoneID string) ([]*models.Conversation, error) {
	r.mu.Lock()
	gate := r.gates[phoneID]
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open[phoneID], nil
}

func (r *fakeConversationRepo) GetClosedConversations(ctx context.Context, phoneID string, limit int) ([]*models.Conversation, error) {
	return nil, nil
}

func (r *fakeConversationRepo) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *fakeConversationRepo) UpdateClassification(ctx context.Context, id, classification string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifications[id] = classification
	return nil
}

func (r *fakeConversationRepo) CloseConversation(ctx context.Context, id, reason string, closedBy *string) error {
	return nil
}

func (r *fakeConversationRepo) ReopenConversation(ctx context.Context, id string) error {
	return nil
}

func (r *fakeConversationRepo) MarkConversationRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readMarks = append(r.readMarks, id)
	return nil
}

func (r *fakeConversationRepo) classification(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classifications[id]
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	byConv    map[string][]*models.Message
	withMedia map[string][]*models.Message
	convByMsg map[string]string
	gates     map[string]chan struct{}
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		byConv:    make(map[string][]*models.Message),
		withMedia: make(map[string][]*models.Message),
		convByMsg: make(map[string]string),
		gates:     make(map[string]chan struct{}),
	}
}

func (r *fakeMessageRepo) GetMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	gate := r.gates[conversationID]
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byConv[conversationID], nil
}

func (r *fakeMessageRepo) GetMessagesByClient(ctx context.Context, clientID, phoneID, status string) ([]*models.Message, error) {
	return nil, nil
}

func (r *fakeMessageRepo) GetMessagesWithMedia(ctx context.Context, conversationID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.withMedia[conversationID], nil
}

func (r *fakeMessageRepo) GetConversationIDByMessage(ctx context.Context, messageID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.convByMsg[messageID], nil
}

type fakeSubscriber struct {
	health  *realtime.Health
	mu      sync.Mutex
	convFn  realtime.ConversationHandler
	msgFn   realtime.MessageHandler
	mediaFn realtime.MediaHandler
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{health: realtime.NewHealth()}
}

func (s *fakeSubscriber) SubscribeConversations(phoneID string, fn realtime.ConversationHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convFn = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.convFn = nil
	}
}

func (s *fakeSubscriber) SubscribeMessagesByPhone(phoneID string, fn realtime.MessageHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgFn = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.msgFn = nil
	}
}

func (s *fakeSubscriber) SubscribeMediaAnalysisUpdates(fn realtime.MediaHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mediaFn = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mediaFn = nil
	}
}

func (s *fakeSubscriber) Health() *realtime.Health { return s.health }

func (s *fakeSubscriber) deliverMessage(msg *models.Message) {
	s.mu.Lock()
	fn := s.msgFn
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (s *fakeSubscriber) deliverConversation(kind string, conv *models.Conversation) {
	s.mu.Lock()
	fn := s.convFn
	s.mu.Unlock()
	if fn != nil {
		fn(kind, conv)
	}
}

type fakeSender struct {
	mu       sync.Mutex
	requests []outbound_client.SendRequest
	err      error
}

func (s *fakeSender) Send(ctx context.Context, req outbound_client.SendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.requests = append(s.requests, req)
	return nil
}

func (s *fakeSender) sent() []outbound_client.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbound_client.SendRequest(nil), s.requests...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	convs []string
}

func (n *fakeNotifier) NotifyOpportunity(conv *models.Conversation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.convs = append(n.convs, conv.ID)
}

func (n *fakeNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.convs...)
}

type engineFixture struct {
	eng      *Engine
	convRepo *fakeConversationRepo
	msgRepo  *fakeMessageRepo
	sub      *fakeSubscriber
	sender   *fakeSender
	notifier *fakeNotifier
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		convRepo: newFakeConversationRepo(),
		msgRepo:  newFakeMessageRepo(),
		sub:      newFakeSubscriber(),
		sender:   &fakeSender{},
		notifier: &fakeNotifier{},
	}
	f.eng = New(f.convRepo, f.msgRepo, f.sub, f.sender, f.notifier, zap.NewNop(), Options{
		FetchTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.eng.Start(ctx)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEngineSelectPhoneSeeds(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{conv("a", withClient("Ana"))}

	f.eng.SelectPhone("phone-1", false)

	waitFor(t, "conversation seed", func() bool {
		s := f.eng.Snapshot()
		return s.PhoneID == "phone-1" && len(s.Conversations) == 1 && s.Conversations[0].ID == "a"
	})
}

func TestEngineStaleFetchDiscarded(t *testing.T) {
	f := newEngineFixture(t)
	gate := make(chan struct{})
	f.convRepo.gates["phone-a"] = gate
	f.convRepo.open["phone-a"] = []*models.Conversation{conv("conv-a")}
	f.convRepo.open["phone-b"] = []*models.Conversation{conv("conv-b")}

	f.eng.SelectPhone("phone-a", false)
	f.eng.SelectPhone("phone-b", false)

	waitFor(t, "phone-b seed", func() bool {
		s := f.eng.Snapshot()
		return s.PhoneID == "phone-b" && len(s.Conversations) == 1 && s.Conversations[0].ID == "conv-b"
	})

	// now let the superseded fetch land
	close(gate)
	time.Sleep(50 * time.Millisecond)

	s := f.eng.Snapshot()
	if len(s.Conversations) != 1 || s.Conversations[0].ID != "conv-b" {
		t.Errorf("stale fetch result must be discarded, got %+v", s.Conversations)
	}
}

func TestEngineOptimisticSendRoundTrip(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{conv("conv-1", withClient("Ana"))}
	f.convRepo.byID["conv-1"] = conv("conv-1", withClient("Ana"))
	f.msgRepo.byConv["conv-1"] = []*models.Message{msg("m1", "conv-1", models.DirectionInbound, "hola")}

	f.eng.SelectPhone("phone-1", false)
	f.eng.OpenConversation("conv-1")
	waitFor(t, "message seed", func() bool {
		return len(f.eng.Snapshot().Messages) == 1
	})

	if err := f.eng.SendReply(context.Background(), "conv-1", "phone-1", "+2", "+1", "  buenas  "); err != nil {
		t.Fatalf("SendReply: %v", err)
	}

	sent := f.sender.sent()
	if len(sent) != 1 || sent[0].Body != "buenas" {
		t.Fatalf("webhook should receive the trimmed body, got %+v", sent)
	}

	waitFor(t, "optimistic placeholder", func() bool {
		msgs := f.eng.Snapshot().Messages
		return len(msgs) == 2 && msgs[1].IsTemp()
	})

	// persisted row comes back through the realtime stream
	f.sub.deliverMessage(msg("m2", "conv-1", models.DirectionOutbound, "buenas"))

	waitFor(t, "placeholder replacement", func() bool {
		msgs := f.eng.Snapshot().Messages
		return len(msgs) == 2 && msgs[1].ID == "m2"
	})
}

func TestEngineSendReplyRejectsEmptyBody(t *testing.T) {
	f := newEngineFixture(t)

	if err := f.eng.SendReply(context.Background(), "conv-1", "phone-1", "+2", "+1", "   "); err == nil {
		t.Fatal("whitespace-only body must be rejected")
	}
	if len(f.sender.sent()) != 0 {
		t.Error("nothing should reach the webhook for an empty body")
	}
}

func TestEngineUnreadRollup(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{
		conv("conv-1", withClient("Ana")),
		conv("conv-2", withClient("Bea")),
	}
	f.convRepo.byID["conv-1"] = conv("conv-1", withClient("Ana"))

	f.eng.SelectPhone("phone-1", false)
	waitFor(t, "seed", func() bool { return len(f.eng.Snapshot().Conversations) == 2 })
	f.eng.OpenConversation("conv-1")
	waitFor(t, "active conversation", func() bool {
		return f.eng.Snapshot().ActiveConversationID == "conv-1"
	})

	f.sub.deliverMessage(msg("m1", "conv-1", models.DirectionInbound, "para la activa"))
	f.sub.deliverMessage(msg("m2", "conv-2", models.DirectionInbound, "para la otra"))

	waitFor(t, "rollup", func() bool {
		s := f.eng.Snapshot()
		var active, background *models.Conversation
		for _, c := range s.Conversations {
			switch c.ID {
			case "conv-1":
				active = c
			case "conv-2":
				background = c
			}
		}
		return active != nil && background != nil &&
			active.UnreadCount == 0 && background.UnreadCount == 1 &&
			background.LastMessage != nil && *background.LastMessage == "para la otra"
	})
}

func TestEngineClassificationSync(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{conv("conv-1", withClient("Ana"))}
	f.convRepo.byID["conv-1"] = conv("conv-1", withClient("Ana"))
	f.msgRepo.withMedia["conv-1"] = []*models.Message{
		mediaMsg("m1", `{"business_classification": "OPORTUNIDAD"}`),
	}

	f.eng.SelectPhone("phone-1", false)
	waitFor(t, "seed", func() bool { return len(f.eng.Snapshot().Conversations) == 1 })

	media := &models.Message{
		ID: "m1", ConversationID: "conv-1", PhoneID: "phone-1",
		Body: strptr("mira esta moneda"), Direction: models.DirectionInbound,
		NumMedia: 1, CreatedAt: time.Now(),
		Media: []models.Media{{ID: "md1", MessageID: "m1", AIAnalysis: json.RawMessage(`{"business_classification": "OPORTUNIDAD"}`)}},
	}
	f.sub.deliverMessage(media)

	waitFor(t, "derived classification", func() bool {
		convs := f.eng.Snapshot().Conversations
		return len(convs) == 1 && convs[0].EffectiveClassification() == models.ClassificationOpportunity
	})
	waitFor(t, "classification write-back", func() bool {
		return f.convRepo.classification("conv-1") == models.ClassificationOpportunity
	})
	waitFor(t, "opportunity notification", func() bool {
		n := f.notifier.notified()
		return len(n) == 1 && n[0] == "conv-1"
	})
}

func TestEngineReconnectReseeds(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{conv("conv-1", withClient("Ana"))}

	f.eng.SelectPhone("phone-1", false)
	waitFor(t, "initial seed", func() bool { return len(f.eng.Snapshot().Conversations) == 1 })

	// a conversation created during the outage is only visible via refetch
	f.convRepo.mu.Lock()
	f.convRepo.open["phone-1"] = []*models.Conversation{
		conv("conv-2", withClient("Bea")),
		conv("conv-1", withClient("Ana")),
	}
	f.convRepo.mu.Unlock()

	f.sub.health.OnDisconnected()
	f.sub.health.OnConnected()

	waitFor(t, "reseed after reconnect", func() bool {
		return len(f.eng.Snapshot().Conversations) == 2
	})
}

func withStatus(status string) func(*models.Conversation) {
	return func(c *models.Conversation) { c.Status = status }
}

func TestEngineStaleMessageFetchDiscarded(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{
		conv("conv-a", withClient("Ana")),
		conv("conv-b", withClient("Bea")),
	}
	gate := make(chan struct{})
	f.msgRepo.gates["conv-a"] = gate
	f.msgRepo.byConv["conv-a"] = []*models.Message{msg("ma", "conv-a", models.DirectionInbound, "de ana")}
	f.msgRepo.byConv["conv-b"] = []*models.Message{msg("mb", "conv-b", models.DirectionInbound, "de bea")}

	f.eng.SelectPhone("phone-1", false)
	waitFor(t, "seed", func() bool { return len(f.eng.Snapshot().Conversations) == 2 })

	// the operator switches chats before the first fetch lands
	f.eng.OpenConversation("conv-a")
	f.eng.OpenConversation("conv-b")

	waitFor(t, "conv-b messages", func() bool {
		s := f.eng.Snapshot()
		return s.ActiveConversationID == "conv-b" && len(s.Messages) == 1 && s.Messages[0].ID == "mb"
	})

	close(gate)
	time.Sleep(50 * time.Millisecond)

	s := f.eng.Snapshot()
	if len(s.Messages) != 1 || s.Messages[0].ID != "mb" {
		t.Errorf("fetch for the abandoned chat must be discarded, got %+v", s.Messages)
	}
}

func TestEngineTruncatedBodyRefetches(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{conv("conv-1", withClient("Ana"))}
	f.convRepo.byID["conv-1"] = conv("conv-1", withClient("Ana"))
	f.msgRepo.byConv["conv-1"] = []*models.Message{msg("m1", "conv-1", models.DirectionInbound, "hola")}

	f.eng.SelectPhone("phone-1", false)
	f.eng.OpenConversation("conv-1")
	waitFor(t, "message seed", func() bool { return len(f.eng.Snapshot().Messages) == 1 })

	longBody := strings.Repeat("moneda antigua de plata ", 500)
	f.msgRepo.mu.Lock()
	f.msgRepo.byConv["conv-1"] = []*models.Message{
		msg("m1", "conv-1", models.DirectionInbound, "hola"),
		msg("m2", "conv-1", models.DirectionInbound, longBody),
	}
	f.msgRepo.mu.Unlock()

	// the realtime row image carries only a bounded body
	truncated := msg("m2", "conv-1", models.DirectionInbound, longBody[:500])
	truncated.BodyTruncated = true
	f.sub.deliverMessage(truncated)

	waitFor(t, "full body refetch", func() bool {
		msgs := f.eng.Snapshot().Messages
		return len(msgs) == 2 && msgs[1].Body != nil && *msgs[1].Body == longBody
	})
}

func TestEngineClosedViewStaysLive(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.byID["conv-1"] = conv("conv-1", withClient("Ana"), withStatus(models.ConversationClosed))

	f.eng.SelectPhone("phone-1", true)
	waitFor(t, "closed view", func() bool {
		s := f.eng.Snapshot()
		return s.PhoneID == "phone-1" && s.ShowClosed
	})

	// another operator session closes a conversation
	f.sub.deliverConversation(realtime.KindUpdate, conv("conv-1", withStatus(models.ConversationClosed)))
	waitFor(t, "closed conversation appears", func() bool {
		convs := f.eng.Snapshot().Conversations
		return len(convs) == 1 && convs[0].ID == "conv-1"
	})

	// and later reopens it
	f.sub.deliverConversation(realtime.KindUpdate, conv("conv-1"))
	waitFor(t, "reopened conversation leaves the closed view", func() bool {
		return len(f.eng.Snapshot().Conversations) == 0
	})
}

func TestEngineOpenViewDropsRemotelyClosed(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{conv("conv-1", withClient("Ana"))}

	f.eng.SelectPhone("phone-1", false)
	waitFor(t, "seed", func() bool { return len(f.eng.Snapshot().Conversations) == 1 })

	f.sub.deliverConversation(realtime.KindUpdate, conv("conv-1", withStatus(models.ConversationClosed)))

	waitFor(t, "closed conversation leaves the open view", func() bool {
		return len(f.eng.Snapshot().Conversations) == 0
	})
}

func TestEngineOutOfBandConversation(t *testing.T) {
	f := newEngineFixture(t)
	f.convRepo.open["phone-1"] = []*models.Conversation{}
	f.convRepo.byID["conv-9"] = conv("conv-9", withClient("Carla"))

	f.eng.SelectPhone("phone-1", false)
	waitFor(t, "seed", func() bool { return f.eng.Snapshot().PhoneID == "phone-1" })

	// a message arrives for a conversation the list has never seen
	f.sub.deliverMessage(msg("m1", "conv-9", models.DirectionInbound, "hola"))

	waitFor(t, "out-of-band fetch", func() bool {
		convs := f.eng.Snapshot().Conversations
		return len(convs) == 1 && convs[0].ID == "conv-9" && convs[0].HasClient()
	})
}
