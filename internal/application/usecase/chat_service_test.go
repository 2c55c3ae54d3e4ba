package usecase_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/service"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/persistence"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fakeClock 可控时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingBus 记录发布的事件
type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(ctx context.Context, e eventbus.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type()
	}
	return out
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

type countingMetrics struct {
	reused, conflicts, limited atomic.Int64
}

func (m *countingMetrics) IncSessionReused() { m.reused.Add(1) }
func (m *countingMetrics) IncSlotConflict()  { m.conflicts.Add(1) }
func (m *countingMetrics) IncRateLimited()   { m.limited.Add(1) }

type harness struct {
	ctx     context.Context
	store   *persistence.MemoryStore
	svc     *usecase.ChatService
	bus     *recordingBus
	clock   *fakeClock
	metrics *countingMetrics
}

func newHarness(t *testing.T, opts ...usecase.Option) *harness {
	t.Helper()
	h := &harness{
		ctx:     context.Background(),
		store:   persistence.NewMemoryStore(),
		bus:     &recordingBus{},
		clock:   &fakeClock{now: t0},
		metrics: &countingMetrics{},
	}
	h.rebuild(h.store, opts...)
	return h
}

// rebuild swaps the store the service talks to, keeping clock and bus.
func (h *harness) rebuild(st repository.Store, opts ...usecase.Option) {
	presence := service.NewPresencePolicy(0)
	all := append([]usecase.Option{usecase.WithClock(h.clock.Now), usecase.WithMetrics(h.metrics)}, opts...)
	h.svc = usecase.NewChatService(st, service.NewAssignmentPolicy(presence, false), presence, h.bus, usecase.Options{}, zap.NewNop(), all...)
}

// user 创建用户并返回其调用者身份
func (h *harness) user(t *testing.T, name string, role valueobject.Role) valueobject.Principal {
	t.Helper()
	u := &entity.User{Name: name, Email: name + "@src.test", Role: string(role)}
	if err := h.store.Users().Create(h.ctx, u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return valueobject.NewPrincipal(u.ID, u.Name, role)
}

func (h *harness) online(t *testing.T, agent valueobject.Principal, maxChats int) {
	t.Helper()
	_, err := h.svc.UpdateStatus(h.ctx, agent, usecase.UpdateStatusInput{Status: "online", MaxChats: maxChats, AutoAssign: true})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func (h *harness) start(t *testing.T, p valueobject.Principal) *entity.ChatSession {
	t.Helper()
	res, err := h.svc.StartSession(h.ctx, p, usecase.StartSessionInput{Subject: "Help", Priority: "medium"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return res.Session
}

func (h *harness) count(t *testing.T, agentID uint) int {
	t.Helper()
	a, err := h.store.Agents().Find(h.ctx, agentID)
	if err != nil {
		t.Fatalf("Find agent %d: %v", agentID, err)
	}
	return a.CurrentChatCount
}

func (h *harness) messages(t *testing.T, sessionID uint) []*entity.ChatMessage {
	t.Helper()
	msgs, err := h.store.Messages().ListAfter(h.ctx, sessionID, 0, 0)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	return msgs
}

// === StartSession ===

func TestStartSession_QueuesWithoutAgents(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)

	res, err := h.svc.StartSession(h.ctx, r, usecase.StartSessionInput{Subject: "  Help  "})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	s := res.Session
	if res.Reused {
		t.Error("first start should not be reused")
	}
	if s.Status != entity.SessionWaiting || s.AssignedAgentID != nil {
		t.Errorf("status/assignee: got %s/%v, want waiting/nil", s.Status, s.AssignedAgentID)
	}
	if s.Subject != "Help" || s.Priority != entity.PriorityMedium || s.Department != entity.DefaultDepartment {
		t.Errorf("defaults: got %q %q %q", s.Subject, s.Priority, s.Department)
	}
	if s.Token == "" {
		t.Error("token should be set")
	}

	msgs := h.messages(t, s.ID)
	if len(msgs) != 1 || !msgs[0].IsSystem() || !msgs[0].IsRead {
		t.Fatalf("welcome message: got %+v", msgs)
	}

	part, err := h.store.Participants().Find(h.ctx, s.ID, r.ID())
	if err != nil || part.Role != entity.RoleCustomer || !part.IsActive {
		t.Errorf("customer participant: got %+v, %v", part, err)
	}

	got := h.bus.types()
	want := []string{eventbus.EventSessionStarted, eventbus.EventMessageSent}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events: got %v, want %v", got, want)
	}
}

func TestStartSession_ReusesOpenSession(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)

	first := h.start(t, r)
	res, err := h.svc.StartSession(h.ctx, r, usecase.StartSessionInput{Subject: "Another"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if !res.Reused || res.Session.ID != first.ID {
		t.Errorf("reuse: got id=%d reused=%v, want id=%d reused=true", res.Session.ID, res.Reused, first.ID)
	}
	if h.metrics.reused.Load() != 1 {
		t.Errorf("reused metric: got %d, want 1", h.metrics.reused.Load())
	}
	sessions, _ := h.store.Sessions().List(h.ctx, repository.SessionFilter{})
	if len(sessions) != 1 {
		t.Errorf("rows: got %d, want 1", len(sessions))
	}
}

func TestStartSession_AfterEndCreatesNew(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)

	first := h.start(t, r)
	if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: first.ID}); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	second := h.start(t, r)
	if second.ID == first.ID {
		t.Error("ended session should not be reused")
	}
}

func TestStartSession_Validation(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)

	tests := []struct {
		name  string
		p     valueobject.Principal
		in    usecase.StartSessionInput
		check func(error) bool
	}{
		{"anonymous", valueobject.Principal{}, usecase.StartSessionInput{Subject: "x"}, func(err error) bool {
			return domainErrors.CodeOf(err) == domainErrors.CodeUnauthorized
		}},
		{"empty subject", r, usecase.StartSessionInput{Subject: "  "}, domainErrors.IsInvalidInput},
		{"bad priority", r, usecase.StartSessionInput{Subject: "x", Priority: "critical"}, domainErrors.IsInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.StartSession(h.ctx, tt.p, tt.in)
			if !tt.check(err) {
				t.Errorf("got %v", err)
			}
		})
	}
}

// === Auto-assignment ===

func TestStartSession_AutoAssignsLeastLoaded(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	b := h.user(t, "esi", valueobject.RoleStaff)
	h.online(t, a, 5)
	h.online(t, b, 5)
	r1 := h.user(t, "r1", valueobject.RoleStudent)
	r2 := h.user(t, "r2", valueobject.RoleStudent)

	s1 := h.start(t, r1)
	if !s1.AssignedTo(a.ID()) || s1.Status != entity.SessionActive {
		t.Fatalf("s1: got %s assigned=%v, want active to %d", s1.Status, s1.AssignedAgentID, a.ID())
	}
	s2 := h.start(t, r2)
	if !s2.AssignedTo(b.ID()) {
		t.Errorf("s2 should go to the less loaded agent %d, got %v", b.ID(), s2.AssignedAgentID)
	}
	if h.count(t, a.ID()) != 1 || h.count(t, b.ID()) != 1 {
		t.Errorf("counts: got %d/%d, want 1/1", h.count(t, a.ID()), h.count(t, b.ID()))
	}

	msgs := h.messages(t, s1.ID)
	if len(msgs) != 2 || msgs[1].Text != "kofi has joined the chat." {
		t.Errorf("system messages: got %d, last %q", len(msgs), msgs[len(msgs)-1].Text)
	}
	part, err := h.store.Participants().Find(h.ctx, s1.ID, a.ID())
	if err != nil || part.Role != entity.RoleAgent {
		t.Errorf("agent participant: got %+v, %v", part, err)
	}
}

func TestStartSession_PrefersRecentlySeen(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	b := h.user(t, "esi", valueobject.RoleStaff)
	h.online(t, a, 5)
	h.clock.Advance(time.Minute)
	h.online(t, b, 5)

	s := h.start(t, h.user(t, "r1", valueobject.RoleStudent))
	if !s.AssignedTo(b.ID()) {
		t.Errorf("got %v, want most recently seen agent %d", s.AssignedAgentID, b.ID())
	}
}

func TestStartSession_FullAgentLeavesWaiting(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	h.online(t, a, 1)

	h.start(t, h.user(t, "r1", valueobject.RoleStudent))
	s2 := h.start(t, h.user(t, "r2", valueobject.RoleStudent))
	if s2.Status != entity.SessionWaiting || s2.AssignedAgentID != nil {
		t.Errorf("s2: got %s/%v, want waiting/nil", s2.Status, s2.AssignedAgentID)
	}
	if h.count(t, a.ID()) != 1 {
		t.Errorf("count: got %d, want 1", h.count(t, a.ID()))
	}
}

func TestStartSession_IgnoresOfflineAndManualAgents(t *testing.T) {
	h := newHarness(t)
	away := h.user(t, "away", valueobject.RoleStaff)
	manual := h.user(t, "manual", valueobject.RoleStaff)
	if _, err := h.svc.UpdateStatus(h.ctx, away, usecase.UpdateStatusInput{Status: "away", MaxChats: 5, AutoAssign: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.UpdateStatus(h.ctx, manual, usecase.UpdateStatusInput{Status: "online", MaxChats: 5, AutoAssign: false}); err != nil {
		t.Fatal(err)
	}

	s := h.start(t, h.user(t, "r1", valueobject.RoleStudent))
	if s.Status != entity.SessionWaiting {
		t.Errorf("status: got %s, want waiting", s.Status)
	}
}

// staleStore makes ListAssignable report a phantom idle agent, the way a
// concurrent request can see a count that has since changed.
type staleStore struct {
	repository.Store
	phantom entity.AgentStatus
}

type staleAgents struct {
	repository.AgentStatusRepository
	phantom entity.AgentStatus
}

func (s staleStore) Agents() repository.AgentStatusRepository {
	return staleAgents{s.Store.Agents(), s.phantom}
}

func (s staleStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(staleStore{tx, s.phantom})
	})
}

func (a staleAgents) ListAssignable(ctx context.Context) ([]*entity.AgentStatus, error) {
	list, err := a.AgentStatusRepository.ListAssignable(ctx)
	phantom := a.phantom
	return append([]*entity.AgentStatus{&phantom}, list...), err
}

func TestAutoAssign_MovesOnWhenSlotTaken(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	b := h.user(t, "esi", valueobject.RoleStaff)
	h.online(t, a, 1)
	h.online(t, b, 5)

	// a is really full; the phantom row still says it is idle
	if ok, err := h.store.Agents().ReserveSlot(h.ctx, a.ID()); !ok || err != nil {
		t.Fatalf("ReserveSlot: %v %v", ok, err)
	}
	phantom := entity.AgentStatus{AgentID: a.ID(), Status: entity.PresenceOnline, MaxConcurrentChats: 1, AutoAssign: true, LastSeen: t0.Add(time.Hour)}
	h.rebuild(staleStore{Store: h.store, phantom: phantom})

	s := h.start(t, h.user(t, "r1", valueobject.RoleStudent))
	if !s.AssignedTo(b.ID()) {
		t.Errorf("got %v, want fallback agent %d", s.AssignedAgentID, b.ID())
	}
	if h.metrics.conflicts.Load() != 1 {
		t.Errorf("conflicts: got %d, want 1", h.metrics.conflicts.Load())
	}
	if h.count(t, a.ID()) != 1 {
		t.Errorf("full agent count: got %d, want 1", h.count(t, a.ID()))
	}
}

func TestAutoAssign_ConcurrentStartsNeverOvershoot(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	h.online(t, a, 3)

	requesters := make([]valueobject.Principal, 12)
	for i := range requesters {
		requesters[i] = h.user(t, "r"+string(rune('a'+i)), valueobject.RoleStudent)
	}

	var wg sync.WaitGroup
	for _, r := range requesters {
		wg.Add(1)
		go func(p valueobject.Principal) {
			defer wg.Done()
			if _, err := h.svc.StartSession(h.ctx, p, usecase.StartSessionInput{Subject: "Help"}); err != nil {
				t.Errorf("StartSession: %v", err)
			}
		}(r)
	}
	wg.Wait()

	if got := h.count(t, a.ID()); got != 3 {
		t.Errorf("count: got %d, want 3", got)
	}
	active, _ := h.store.Sessions().List(h.ctx, repository.SessionFilter{Status: entity.SessionActive})
	waiting, _ := h.store.Sessions().List(h.ctx, repository.SessionFilter{Status: entity.SessionWaiting})
	if len(active) != 3 || len(waiting) != 9 {
		t.Errorf("active/waiting: got %d/%d, want 3/9", len(active), len(waiting))
	}
}

// === GetSession ===

func TestGetSession_Access(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "ama", valueobject.RoleStudent)
	other := h.user(t, "yaw", valueobject.RoleStudent)
	staff := h.user(t, "kofi", valueobject.RoleStaff)
	s := h.start(t, owner)

	if got, err := h.svc.GetSession(h.ctx, owner, s.ID); err != nil || got.ID != s.ID {
		t.Errorf("owner: got %v, %v", got, err)
	}
	if got, err := h.svc.GetSession(h.ctx, staff, s.ID); err != nil || got.ID != s.ID {
		t.Errorf("staff: got %v, %v", got, err)
	}
	if _, err := h.svc.GetSession(h.ctx, other, s.ID); !domainErrors.IsForbidden(err) {
		t.Errorf("other student: got %v, want FORBIDDEN", err)
	}
	if _, err := h.svc.GetSession(h.ctx, owner, 999); !domainErrors.IsNotFound(err) {
		t.Errorf("unknown: got %v, want NOT_FOUND", err)
	}
	if got, err := h.svc.GetSession(h.ctx, owner, 0); err != nil || got == nil || got.ID != s.ID {
		t.Errorf("current: got %v, %v", got, err)
	}
	if got, err := h.svc.GetSession(h.ctx, other, 0); err != nil || got != nil {
		t.Errorf("no current: got %v, %v, want nil", got, err)
	}
}

func TestGetSession_IncludesTags(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "ama", valueobject.RoleStudent)
	staff := h.user(t, "kofi", valueobject.RoleStaff)
	s := h.start(t, owner)

	if _, err := h.svc.AddTag(h.ctx, staff, s.ID, " Finance "); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if _, err := h.svc.AddTag(h.ctx, staff, s.ID, "finance"); err != nil {
		t.Fatalf("AddTag duplicate: %v", err)
	}
	if _, err := h.svc.AddTag(h.ctx, owner, s.ID, "x"); !domainErrors.IsForbidden(err) {
		t.Errorf("student tag: got %v, want FORBIDDEN", err)
	}
	if _, err := h.svc.AddTag(h.ctx, staff, s.ID, "bad tag!"); !domainErrors.IsInvalidInput(err) {
		t.Errorf("bad tag: got %v, want INVALID_INPUT", err)
	}

	got, err := h.svc.GetSession(h.ctx, owner, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "finance" {
		t.Errorf("tags: got %v, want [finance]", got.Tags)
	}
}

// === EndSession ===

func TestEndSession_ReleasesAgentSlot(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	h.online(t, a, 5)
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)
	h.bus.reset()
	h.clock.Advance(10 * time.Minute)

	rating := 5
	ended, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID, Rating: &rating, Feedback: " thanks "})
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.Status != entity.SessionEnded || ended.EndedAt == nil || !ended.EndedAt.Equal(h.clock.Now()) {
		t.Errorf("ended: got %s at %v", ended.Status, ended.EndedAt)
	}
	if ended.Rating == nil || *ended.Rating != 5 || ended.Feedback == nil || *ended.Feedback != "thanks" {
		t.Errorf("rating/feedback: got %v/%v", ended.Rating, ended.Feedback)
	}
	if !ended.AssignedTo(a.ID()) {
		t.Error("ended session keeps its last assignee")
	}
	if got := h.count(t, a.ID()); got != 0 {
		t.Errorf("count: got %d, want 0", got)
	}

	parts, _ := h.store.Participants().ListBySession(h.ctx, s.ID)
	for _, p := range parts {
		if p.IsActive || p.LeftAt == nil {
			t.Errorf("participant %d still active", p.UserID)
		}
	}
	msgs := h.messages(t, s.ID)
	if last := msgs[len(msgs)-1]; !last.IsSystem() || last.Text != usecase.DefaultOptions().EndedMessage {
		t.Errorf("closing message: got %+v", last)
	}
	if types := h.bus.types(); len(types) != 2 || types[1] != eventbus.EventSessionEnded {
		t.Errorf("events: got %v", types)
	}

	if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID}); !domainErrors.IsInvalidInput(err) {
		t.Errorf("end twice: got %v, want INVALID_INPUT", err)
	}
	if got := h.count(t, a.ID()); got != 0 {
		t.Errorf("count after second end: got %d, want 0", got)
	}
}

func TestEndSession_CountFloorsAtZero(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	h.online(t, a, 5)
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)

	// drift the counter below the real number of sessions
	if err := h.store.Agents().ReleaseSlot(h.ctx, a.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID}); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if got := h.count(t, a.ID()); got != 0 {
		t.Errorf("count: got %d, want 0", got)
	}
}

func TestEndSession_RejectsBadInput(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)
	other := h.user(t, "yaw", valueobject.RoleStudent)
	s := h.start(t, r)

	bad := 6
	if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID, Rating: &bad}); !domainErrors.IsInvalidInput(err) {
		t.Errorf("rating 6: got %v, want INVALID_INPUT", err)
	}
	if _, err := h.svc.EndSession(h.ctx, other, usecase.EndSessionInput{SessionID: s.ID}); !domainErrors.IsForbidden(err) {
		t.Errorf("stranger: got %v, want FORBIDDEN", err)
	}
	got, _ := h.store.Sessions().FindByID(h.ctx, s.ID)
	if got.Status != entity.SessionWaiting {
		t.Errorf("status after rejected end: got %s, want waiting", got.Status)
	}
	if n := len(h.messages(t, s.ID)); n != 1 {
		t.Errorf("messages after rollback: got %d, want 1", n)
	}
}

// === AssignSession ===

func TestAssignSession(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	b := h.user(t, "esi", valueobject.RoleStaff)
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r) // nobody online yet

	if _, err := h.svc.AssignSession(h.ctx, b, s.ID, 0); !domainErrors.IsNotFound(err) {
		t.Errorf("no status row: got %v, want NOT_FOUND", err)
	}

	h.online(t, a, 1)
	h.online(t, b, 5)

	got, err := h.svc.AssignSession(h.ctx, b, s.ID, 0)
	if err != nil {
		t.Fatalf("self assign: %v", err)
	}
	if !got.AssignedTo(b.ID()) || got.Status != entity.SessionActive {
		t.Errorf("self assign: got %s/%v", got.Status, got.AssignedAgentID)
	}
	if h.count(t, b.ID()) != 1 {
		t.Errorf("b count: got %d, want 1", h.count(t, b.ID()))
	}

	if _, err := h.svc.AssignSession(h.ctx, b, s.ID, b.ID()); err != nil {
		t.Errorf("same agent: %v", err)
	}
	if h.count(t, b.ID()) != 1 {
		t.Errorf("same agent must not reserve again: got %d", h.count(t, b.ID()))
	}

	h.bus.reset()
	got, err = h.svc.AssignSession(h.ctx, b, s.ID, a.ID())
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !got.AssignedTo(a.ID()) {
		t.Errorf("transfer: got %v", got.AssignedAgentID)
	}
	if h.count(t, a.ID()) != 1 || h.count(t, b.ID()) != 0 {
		t.Errorf("counts after transfer: a=%d b=%d, want 1/0", h.count(t, a.ID()), h.count(t, b.ID()))
	}
	prev, _ := h.store.Participants().Find(h.ctx, s.ID, b.ID())
	if prev.IsActive {
		t.Error("previous agent should be deactivated")
	}
	if types := h.bus.types(); len(types) != 2 || types[0] != eventbus.EventSessionAssigned {
		t.Errorf("events: got %v", types)
	}

	s2 := h.start(t, h.user(t, "yaw", valueobject.RoleStudent))
	if _, err := h.svc.AssignSession(h.ctx, b, s2.ID, a.ID()); !domainErrors.IsCapacityExceeded(err) {
		t.Errorf("full agent: got %v, want CAPACITY_EXCEEDED", err)
	}
	if h.count(t, a.ID()) != 1 {
		t.Errorf("a count after rejected assign: got %d, want 1", h.count(t, a.ID()))
	}
	if _, err := h.svc.AssignSession(h.ctx, r, s2.ID, 0); !domainErrors.IsForbidden(err) {
		t.Errorf("student: got %v, want FORBIDDEN", err)
	}

	if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.AssignSession(h.ctx, b, s.ID, 0); !domainErrors.IsInvalidInput(err) {
		t.Errorf("ended: got %v, want INVALID_INPUT", err)
	}
}

// === ListAgentSessions ===

func TestListAgentSessions(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	b := h.user(t, "esi", valueobject.RoleStaff)
	admin := h.user(t, "dean", valueobject.RoleAdmin)
	r1 := h.user(t, "r1", valueobject.RoleStudent)
	r2 := h.user(t, "r2", valueobject.RoleStudent)
	r3 := h.user(t, "r3", valueobject.RoleStudent)

	w1 := h.start(t, r1)
	h.clock.Advance(time.Second)
	w2 := h.start(t, r2)
	h.online(t, a, 5)
	s3 := h.start(t, r3)
	if _, err := h.svc.SendMessage(h.ctx, r3, s3.ID, "hello", ""); err != nil {
		t.Fatal(err)
	}

	waiting, err := h.svc.ListAgentSessions(h.ctx, b, "waiting")
	if err != nil {
		t.Fatalf("waiting: %v", err)
	}
	if len(waiting) != 2 || waiting[0].ID != w1.ID || waiting[1].ID != w2.ID {
		t.Errorf("waiting queue order: got %v", waiting)
	}

	mine, _ := h.svc.ListAgentSessions(h.ctx, a, "")
	if len(mine) != 1 || mine[0].ID != s3.ID || mine[0].UnreadCount != 1 {
		t.Errorf("a active: got %+v", mine)
	}
	if others, _ := h.svc.ListAgentSessions(h.ctx, b, "active"); len(others) != 0 {
		t.Errorf("b active: got %d, want 0", len(others))
	}
	if all, _ := h.svc.ListAgentSessions(h.ctx, admin, "all"); len(all) != 3 {
		t.Errorf("admin all: got %d, want 3", len(all))
	}

	if _, err := h.svc.ListAgentSessions(h.ctx, a, "closed"); !domainErrors.IsInvalidInput(err) {
		t.Errorf("bad status: got %v", err)
	}
	if _, err := h.svc.ListAgentSessions(h.ctx, r1, "waiting"); !domainErrors.IsForbidden(err) {
		t.Errorf("student: got %v", err)
	}
}
