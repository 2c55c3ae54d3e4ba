package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/eben2468/srcwebsite-sub012/pkg/errors"
)

// MemoryStore 内存实现的仓储集合（用于开发/测试）
//
// A single mutex guards all tables. WithinTx holds it for the whole
// callback and restores a snapshot when the callback fails.
type MemoryStore struct {
	mu *sync.Mutex
	st *memState
	// inTx is set on the view handed to a WithinTx callback; the lock is
	// already held.
	inTx bool
}

type participantKey struct {
	sessionID uint
	userID    uint
}

type memState struct {
	sessions     map[uint]entity.ChatSession
	messages     []entity.ChatMessage
	participants map[participantKey]entity.ChatParticipant
	agents       map[uint]entity.AgentStatus
	quick        []entity.QuickResponse
	files        []entity.ChatFile
	tags         map[uint]map[string]entity.SessionTag
	users        map[uint]entity.User

	nextSession     uint
	nextMessage     uint
	nextParticipant uint
	nextQuick       uint
	nextFile        uint
	nextUser        uint
}

// NewMemoryStore 创建内存仓储集合
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		st: &memState{
			sessions:     make(map[uint]entity.ChatSession),
			participants: make(map[participantKey]entity.ChatParticipant),
			agents:       make(map[uint]entity.AgentStatus),
			tags:         make(map[uint]map[string]entity.SessionTag),
			users:        make(map[uint]entity.User),
		},
	}
}

func (s *memState) clone() *memState {
	c := *s
	c.sessions = make(map[uint]entity.ChatSession, len(s.sessions))
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	c.messages = append([]entity.ChatMessage(nil), s.messages...)
	c.participants = make(map[participantKey]entity.ChatParticipant, len(s.participants))
	for k, v := range s.participants {
		c.participants[k] = v
	}
	c.agents = make(map[uint]entity.AgentStatus, len(s.agents))
	for k, v := range s.agents {
		c.agents[k] = v
	}
	c.quick = append([]entity.QuickResponse(nil), s.quick...)
	c.files = append([]entity.ChatFile(nil), s.files...)
	c.tags = make(map[uint]map[string]entity.SessionTag, len(s.tags))
	for k, v := range s.tags {
		inner := make(map[string]entity.SessionTag, len(v))
		for tk, tv := range v {
			inner[tk] = tv
		}
		c.tags[k] = inner
	}
	c.users = make(map[uint]entity.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	return &c
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Sessions() repository.SessionRepository             { return memSessions{s} }
func (s *MemoryStore) Messages() repository.MessageRepository             { return memMessages{s} }
func (s *MemoryStore) Participants() repository.ParticipantRepository     { return memParticipants{s} }
func (s *MemoryStore) Agents() repository.AgentStatusRepository           { return memAgents{s} }
func (s *MemoryStore) QuickResponses() repository.QuickResponseRepository { return memQuick{s} }
func (s *MemoryStore) Files() repository.FileRepository                   { return memFiles{s} }
func (s *MemoryStore) Tags() repository.TagRepository                     { return memTags{s} }
func (s *MemoryStore) Users() repository.UserRepository                   { return memUsers{s} }

// WithinTx 串行执行 fn; 出错时回滚到快照
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	defer s.lock()()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	view := &MemoryStore{mu: s.mu, st: s.st, inTx: true}
	if err := fn(view); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

// Ping 总是成功
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// === sessions ===

type memSessions struct{ s *MemoryStore }

func (r memSessions) Create(ctx context.Context, session *entity.ChatSession) error {
	defer r.s.lock()()
	st := r.s.st
	for _, existing := range st.sessions {
		if existing.Token == session.Token && session.Token != "" {
			return errors.NewAlreadyExistsError("session token already exists")
		}
	}
	st.nextSession++
	session.ID = st.nextSession
	cp := *session
	cp.Tags = nil
	st.sessions[cp.ID] = cp
	return nil
}

func (r memSessions) Update(ctx context.Context, session *entity.ChatSession) error {
	defer r.s.lock()()
	cur, ok := r.s.st.sessions[session.ID]
	if !ok {
		return nil
	}
	cur.AssignedAgentID = session.AssignedAgentID
	cur.Status = session.Status
	cur.EndedAt = session.EndedAt
	cur.LastActivity = session.LastActivity
	cur.Rating = session.Rating
	cur.Feedback = session.Feedback
	r.s.st.sessions[session.ID] = cur
	return nil
}

func (r memSessions) FindByID(ctx context.Context, id uint) (*entity.ChatSession, error) {
	defer r.s.lock()()
	s, ok := r.s.st.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundError("session not found")
	}
	return &s, nil
}

func (r memSessions) FindOpenByRequester(ctx context.Context, requesterID uint) (*entity.ChatSession, error) {
	defer r.s.lock()()
	var found *entity.ChatSession
	for _, s := range r.s.st.sessions {
		if s.RequesterID != requesterID || !s.Status.Open() {
			continue
		}
		if found == nil || s.ID > found.ID {
			cp := s
			found = &cp
		}
	}
	if found == nil {
		return nil, errors.NewNotFoundError("no open session")
	}
	return found, nil
}

func (r memSessions) List(ctx context.Context, filter repository.SessionFilter) ([]*entity.ChatSession, error) {
	defer r.s.lock()()
	out := make([]*entity.ChatSession, 0)
	for _, s := range r.s.st.sessions {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.AssignedAgentID != 0 && !s.AssignedTo(filter.AssignedAgentID) {
			continue
		}
		cp := s
		out = append(out, &cp)
	}
	if filter.Status == entity.SessionWaiting {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].StartedAt.Equal(out[j].StartedAt) {
				return out[i].StartedAt.Before(out[j].StartedAt)
			}
			return out[i].ID < out[j].ID
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].LastActivity.Equal(out[j].LastActivity) {
				return out[i].LastActivity.After(out[j].LastActivity)
			}
			return out[i].ID > out[j].ID
		})
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memSessions) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	defer r.s.lock()()
	if s, ok := r.s.st.sessions[id]; ok {
		s.LastActivity = at
		r.s.st.sessions[id] = s
	}
	return nil
}

// === messages ===

type memMessages struct{ s *MemoryStore }

func (r memMessages) Append(ctx context.Context, message *entity.ChatMessage) error {
	defer r.s.lock()()
	st := r.s.st
	st.nextMessage++
	message.ID = st.nextMessage
	st.messages = append(st.messages, *message)
	return nil
}

func (r memMessages) ListAfter(ctx context.Context, sessionID, afterID uint, limit int) ([]*entity.ChatMessage, error) {
	defer r.s.lock()()
	out := make([]*entity.ChatMessage, 0)
	for _, m := range r.s.st.messages {
		if m.SessionID == sessionID && m.ID > afterID {
			cp := m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memMessages) MarkReadExcept(ctx context.Context, sessionID, readerID uint) (int64, error) {
	defer r.s.lock()()
	var n int64
	for i := range r.s.st.messages {
		m := &r.s.st.messages[i]
		if m.SessionID == sessionID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r memMessages) unread(sessionIDs []uint, readerID uint, each func(sessionID uint)) {
	want := make(map[uint]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		want[id] = true
	}
	for _, m := range r.s.st.messages {
		if want[m.SessionID] && !m.IsRead && m.SenderID != readerID && !m.IsSystem() {
			each(m.SessionID)
		}
	}
}

func (r memMessages) CountUnread(ctx context.Context, sessionIDs []uint, readerID uint) (int64, error) {
	defer r.s.lock()()
	var n int64
	r.unread(sessionIDs, readerID, func(uint) { n++ })
	return n, nil
}

func (r memMessages) UnreadBySession(ctx context.Context, sessionIDs []uint, readerID uint) (map[uint]int64, error) {
	defer r.s.lock()()
	counts := make(map[uint]int64, len(sessionIDs))
	r.unread(sessionIDs, readerID, func(id uint) { counts[id]++ })
	return counts, nil
}

// === participants ===

type memParticipants struct{ s *MemoryStore }

func (r memParticipants) Find(ctx context.Context, sessionID, userID uint) (*entity.ChatParticipant, error) {
	defer r.s.lock()()
	p, ok := r.s.st.participants[participantKey{sessionID, userID}]
	if !ok {
		return nil, errors.NewNotFoundError("participant not found")
	}
	return &p, nil
}

func (r memParticipants) Upsert(ctx context.Context, p *entity.ChatParticipant) error {
	defer r.s.lock()()
	st := r.s.st
	key := participantKey{p.SessionID, p.UserID}
	cur, ok := st.participants[key]
	if !ok {
		st.nextParticipant++
		cur = *p
		cur.ID = st.nextParticipant
	}
	cur.Role = p.Role
	cur.IsActive = true
	cur.LeftAt = nil
	st.participants[key] = cur

	p.ID = cur.ID
	p.IsActive = true
	p.LeftAt = nil
	return nil
}

func (r memParticipants) Deactivate(ctx context.Context, sessionID, userID uint, at time.Time) error {
	defer r.s.lock()()
	key := participantKey{sessionID, userID}
	if p, ok := r.s.st.participants[key]; ok && p.IsActive {
		left := at
		p.IsActive = false
		p.LeftAt = &left
		r.s.st.participants[key] = p
	}
	return nil
}

func (r memParticipants) DeactivateAll(ctx context.Context, sessionID uint, at time.Time) error {
	defer r.s.lock()()
	for key, p := range r.s.st.participants {
		if key.sessionID == sessionID && p.IsActive {
			left := at
			p.IsActive = false
			p.LeftAt = &left
			r.s.st.participants[key] = p
		}
	}
	return nil
}

func (r memParticipants) ListBySession(ctx context.Context, sessionID uint) ([]*entity.ChatParticipant, error) {
	defer r.s.lock()()
	out := make([]*entity.ChatParticipant, 0)
	for key, p := range r.s.st.participants {
		if key.sessionID == sessionID {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memParticipants) OpenSessionIDs(ctx context.Context, userID uint) ([]uint, error) {
	defer r.s.lock()()
	st := r.s.st
	ids := make([]uint, 0)
	for id, s := range st.sessions {
		if !s.Status.Open() {
			continue
		}
		p, joined := st.participants[participantKey{id, userID}]
		if s.RequesterID == userID || (joined && p.IsActive) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// === agents ===

type memAgents struct{ s *MemoryStore }

func (r memAgents) Find(ctx context.Context, agentID uint) (*entity.AgentStatus, error) {
	defer r.s.lock()()
	a, ok := r.s.st.agents[agentID]
	if !ok {
		return nil, errors.NewNotFoundError("agent status not found")
	}
	return &a, nil
}

func (r memAgents) Upsert(ctx context.Context, a *entity.AgentStatus) error {
	defer r.s.lock()()
	cur, ok := r.s.st.agents[a.AgentID]
	if !ok {
		cur = entity.AgentStatus{AgentID: a.AgentID}
	}
	cur.Status = a.Status
	cur.MaxConcurrentChats = a.MaxConcurrentChats
	cur.AutoAssign = a.AutoAssign
	cur.LastSeen = a.LastSeen
	r.s.st.agents[a.AgentID] = cur
	return nil
}

func (r memAgents) TouchLastSeen(ctx context.Context, agentID uint, at time.Time) error {
	defer r.s.lock()()
	a, ok := r.s.st.agents[agentID]
	if !ok {
		return errors.NewNotFoundError("agent status not found")
	}
	a.LastSeen = at
	r.s.st.agents[agentID] = a
	return nil
}

func (r memAgents) sorted(keep func(entity.AgentStatus) bool, byLoad bool) []*entity.AgentStatus {
	out := make([]*entity.AgentStatus, 0)
	for _, a := range r.s.st.agents {
		if keep(a) {
			cp := a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if byLoad {
			if a.CurrentChatCount != b.CurrentChatCount {
				return a.CurrentChatCount < b.CurrentChatCount
			}
			if !a.LastSeen.Equal(b.LastSeen) {
				return a.LastSeen.After(b.LastSeen)
			}
		}
		return a.AgentID < b.AgentID
	})
	return out
}

func (r memAgents) ListAssignable(ctx context.Context) ([]*entity.AgentStatus, error) {
	defer r.s.lock()()
	return r.sorted(func(a entity.AgentStatus) bool {
		return a.Status == entity.PresenceOnline && a.AutoAssign && a.HasCapacity()
	}, true), nil
}

func (r memAgents) List(ctx context.Context) ([]*entity.AgentStatus, error) {
	defer r.s.lock()()
	return r.sorted(func(entity.AgentStatus) bool { return true }, false), nil
}

func (r memAgents) ReserveSlot(ctx context.Context, agentID uint) (bool, error) {
	defer r.s.lock()()
	a, ok := r.s.st.agents[agentID]
	if !ok || !a.HasCapacity() {
		return false, nil
	}
	a.CurrentChatCount++
	r.s.st.agents[agentID] = a
	return true, nil
}

func (r memAgents) ReleaseSlot(ctx context.Context, agentID uint) error {
	defer r.s.lock()()
	a, ok := r.s.st.agents[agentID]
	if !ok {
		return nil
	}
	if a.CurrentChatCount > 0 {
		a.CurrentChatCount--
	}
	r.s.st.agents[agentID] = a
	return nil
}

// === quick responses / files / tags / users ===

type memQuick struct{ s *MemoryStore }

func (r memQuick) ListActive(ctx context.Context, category string) ([]*entity.QuickResponse, error) {
	defer r.s.lock()()
	out := make([]*entity.QuickResponse, 0)
	for _, q := range r.s.st.quick {
		if q.IsActive && (category == "" || q.Category == category) {
			cp := q
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memQuick) ReplaceAll(ctx context.Context, responses []*entity.QuickResponse) error {
	defer r.s.lock()()
	st := r.s.st
	st.quick = st.quick[:0]
	for _, q := range responses {
		st.nextQuick++
		q.ID = st.nextQuick
		st.quick = append(st.quick, *q)
	}
	return nil
}

type memFiles struct{ s *MemoryStore }

func (r memFiles) Create(ctx context.Context, f *entity.ChatFile) error {
	defer r.s.lock()()
	r.s.st.nextFile++
	f.ID = r.s.st.nextFile
	r.s.st.files = append(r.s.st.files, *f)
	return nil
}

func (r memFiles) ListBySession(ctx context.Context, sessionID uint) ([]*entity.ChatFile, error) {
	defer r.s.lock()()
	out := make([]*entity.ChatFile, 0)
	for _, f := range r.s.st.files {
		if f.SessionID == sessionID {
			cp := f
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memTags struct{ s *MemoryStore }

func (r memTags) Add(ctx context.Context, t *entity.SessionTag) error {
	defer r.s.lock()()
	tags, ok := r.s.st.tags[t.SessionID]
	if !ok {
		tags = make(map[string]entity.SessionTag)
		r.s.st.tags[t.SessionID] = tags
	}
	if _, exists := tags[t.Tag]; !exists {
		tags[t.Tag] = *t
	}
	return nil
}

func (r memTags) ListBySession(ctx context.Context, sessionID uint) ([]string, error) {
	defer r.s.lock()()
	out := make([]string, 0)
	for tag := range r.s.st.tags[sessionID] {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

type memUsers struct{ s *MemoryStore }

func (r memUsers) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	defer r.s.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("user not found")
	}
	return &u, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	defer r.s.lock()()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.st.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("user not found")
}

func (r memUsers) Create(ctx context.Context, u *entity.User) error {
	defer r.s.lock()()
	st := r.s.st
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range st.users {
		if existing.Email == email {
			return errors.NewAlreadyExistsError("email already registered")
		}
	}
	st.nextUser++
	u.ID = st.nextUser
	u.Email = email
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	st.users[u.ID] = *u
	return nil
}
