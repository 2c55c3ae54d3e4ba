package usecase_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/application/usecase"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/entity"
	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"go.uber.org/zap"
)

// === SendMessage ===

func TestSendMessage_ElevatedUsersJoinSilently(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)
	staff := h.user(t, "kofi", valueobject.RoleStaff)
	admin := h.user(t, "dean", valueobject.RoleAdmin)
	s := h.start(t, r)

	h.clock.Advance(time.Minute)
	msg, err := h.svc.SendMessage(h.ctx, staff, s.ID, "  How can I help?  ", "")
	if err != nil {
		t.Fatalf("staff send: %v", err)
	}
	if msg.Text != "How can I help?" || msg.Type != entity.MessageText || msg.SenderID != staff.ID() {
		t.Errorf("message: got %+v", msg)
	}
	part, err := h.store.Participants().Find(h.ctx, s.ID, staff.ID())
	if err != nil || part.Role != entity.RoleAgent || !part.IsActive {
		t.Errorf("staff participant: got %+v, %v", part, err)
	}

	if _, err := h.svc.SendMessage(h.ctx, admin, s.ID, "Supervising", "text"); err != nil {
		t.Fatalf("admin send: %v", err)
	}
	part, err = h.store.Participants().Find(h.ctx, s.ID, admin.ID())
	if err != nil || part.Role != entity.RoleSupervisor {
		t.Errorf("admin participant: got %+v, %v", part, err)
	}

	sess, _ := h.store.Sessions().FindByID(h.ctx, s.ID)
	if !sess.LastActivity.Equal(h.clock.Now()) {
		t.Errorf("last_activity: got %v, want %v", sess.LastActivity, h.clock.Now())
	}
	if sess.Status != entity.SessionWaiting {
		t.Errorf("sending must not change status: got %s", sess.Status)
	}
}

func TestSendMessage_Rejections(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)
	other := h.user(t, "yaw", valueobject.RoleStudent)
	s := h.start(t, r)

	tests := []struct {
		name  string
		p     valueobject.Principal
		text  string
		typ   string
		check func(error) bool
	}{
		{"stranger", other, "hi", "", domainErrors.IsForbidden},
		{"empty", r, "   ", "", domainErrors.IsInvalidInput},
		{"too long", r, strings.Repeat("x", entity.MaxMessageLength+1), "", domainErrors.IsInvalidInput},
		{"system type", r, "hi", "system", domainErrors.IsInvalidInput},
		{"unknown type", r, "hi", "video", domainErrors.IsInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.SendMessage(h.ctx, tt.p, s.ID, tt.text, tt.typ)
			if !tt.check(err) {
				t.Errorf("got %v", err)
			}
		})
	}

	if _, err := h.svc.SendMessage(h.ctx, r, 999, "hi", ""); !domainErrors.IsNotFound(err) {
		t.Errorf("unknown session: got %v", err)
	}
	if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.SendMessage(h.ctx, r, s.ID, "hi", ""); !domainErrors.IsInvalidInput(err) {
		t.Errorf("ended: got %v, want INVALID_INPUT", err)
	}
}

func TestSendMessage_DuplicatesAreKept(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)

	for i := 0; i < 2; i++ {
		if _, err := h.svc.SendMessage(h.ctx, r, s.ID, "same", ""); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(h.messages(t, s.ID)); n != 3 {
		t.Errorf("messages: got %d, want 3", n)
	}
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func TestSendMessage_RateLimit(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	h := newHarness(t, usecase.WithRateLimiter(limiter))
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)

	_, err := h.svc.SendMessage(h.ctx, r, s.ID, "hi", "")
	if domainErrors.CodeOf(err) != domainErrors.CodeRateLimited {
		t.Errorf("denied: got %v, want RATE_LIMITED", err)
	}
	if h.metrics.limited.Load() != 1 {
		t.Errorf("limited metric: got %d, want 1", h.metrics.limited.Load())
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "send:1" {
		t.Errorf("limiter key: got %v", limiter.keys)
	}

	// a broken limiter must not block chat
	limiter.err = errors.New("redis down")
	if _, err := h.svc.SendMessage(h.ctx, r, s.ID, "hi", ""); err != nil {
		t.Errorf("limiter error: got %v, want nil", err)
	}
}

// === GetMessages / MarkRead / UnreadCount ===

func TestGetMessages_Watermark(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)
	other := h.user(t, "yaw", valueobject.RoleStudent)
	s := h.start(t, r)

	var ids []uint
	for _, text := range []string{"one", "two", "three"} {
		h.clock.Advance(time.Second)
		m, err := h.svc.SendMessage(h.ctx, r, s.ID, text, "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}

	got, err := h.svc.GetMessages(h.ctx, r, s.ID, ids[0])
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(got) != 2 || got[0].Text != "two" || got[1].Text != "three" {
		t.Fatalf("after %d: got %d messages", ids[0], len(got))
	}
	for _, m := range got {
		if m.ID <= ids[0] {
			t.Errorf("message %d is not after the watermark %d", m.ID, ids[0])
		}
	}
	if !got[0].SentAt.Before(got[1].SentAt) {
		t.Error("messages must be ordered by sent_at")
	}

	all, _ := h.svc.GetMessages(h.ctx, r, s.ID, 0)
	if len(all) != 4 {
		t.Errorf("from zero: got %d, want 4", len(all))
	}
	if _, err := h.svc.GetMessages(h.ctx, other, s.ID, 0); !domainErrors.IsForbidden(err) {
		t.Errorf("stranger: got %v", err)
	}
}

func TestMarkRead_NeverFlipsOwnMessages(t *testing.T) {
	h := newHarness(t)
	a := h.user(t, "kofi", valueobject.RoleStaff)
	h.online(t, a, 5)
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)

	mustSend := func(p valueobject.Principal, text string) {
		if _, err := h.svc.SendMessage(h.ctx, p, s.ID, text, ""); err != nil {
			t.Fatal(err)
		}
	}
	mustSend(r, "mine 1")
	mustSend(r, "mine 2")
	mustSend(a, "reply")

	if n, _ := h.svc.UnreadCount(h.ctx, r); n != 1 {
		t.Errorf("requester unread: got %d, want 1", n)
	}
	if n, _ := h.svc.UnreadCount(h.ctx, a); n != 2 {
		t.Errorf("agent unread: got %d, want 2", n)
	}

	h.bus.reset()
	n, err := h.svc.MarkRead(h.ctx, r, s.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 1 {
		t.Errorf("flipped: got %d, want 1", n)
	}
	for _, m := range h.messages(t, s.ID) {
		if m.SenderID == r.ID() && m.IsRead {
			t.Errorf("own message %q was marked read", m.Text)
		}
	}
	if types := h.bus.types(); len(types) != 1 {
		t.Errorf("events: got %v, want one read receipt", types)
	}

	if n, _ := h.svc.UnreadCount(h.ctx, r); n != 0 {
		t.Errorf("requester unread after read: got %d, want 0", n)
	}
	if n, _ := h.svc.MarkRead(h.ctx, r, s.ID); n != 0 {
		t.Errorf("second MarkRead: got %d, want 0", n)
	}
}

func TestUnreadCount_IgnoresEndedSessions(t *testing.T) {
	h := newHarness(t)
	staff := h.user(t, "kofi", valueobject.RoleStaff)
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)
	if _, err := h.svc.SendMessage(h.ctx, staff, s.ID, "hello", ""); err != nil {
		t.Fatal(err)
	}
	if n, _ := h.svc.UnreadCount(h.ctx, r); n != 1 {
		t.Fatalf("before end: got %d, want 1", n)
	}
	if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID}); err != nil {
		t.Fatal(err)
	}
	if n, _ := h.svc.UnreadCount(h.ctx, r); n != 0 {
		t.Errorf("after end: got %d, want 0", n)
	}
	if n, err := h.svc.UnreadCount(h.ctx, h.user(t, "new", valueobject.RoleStudent)); n != 0 || err != nil {
		t.Errorf("no sessions: got %d, %v", n, err)
	}
}

// === UploadFile ===

type memStorage struct {
	saved   map[string]string
	onSave  func()
	removed []string
}

func (m *memStorage) Save(ctx context.Context, sessionID uint, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	path := "/uploads/chat/" + name
	m.saved[path] = string(b)
	if m.onSave != nil {
		m.onSave()
	}
	return path, nil
}

func (m *memStorage) Remove(ctx context.Context, storedPath string) error {
	delete(m.saved, storedPath)
	m.removed = append(m.removed, storedPath)
	return nil
}

func TestUploadFile(t *testing.T) {
	storage := &memStorage{saved: map[string]string{}}
	h := newHarness(t, usecase.WithFileStorage(storage))
	r := h.user(t, "ama", valueobject.RoleStudent)
	other := h.user(t, "yaw", valueobject.RoleStudent)
	s := h.start(t, r)

	body := "PNGDATA"
	msg, file, err := h.svc.UploadFile(h.ctx, r, s.ID, usecase.Upload{
		Name: "../receipt.png", MimeType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body),
	})
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if msg.Type != entity.MessageImage || msg.Text != "receipt.png" {
		t.Errorf("message: got %s %q", msg.Type, msg.Text)
	}
	if file.MessageID != msg.ID || file.StoredPath != "/uploads/chat/receipt.png" {
		t.Errorf("file: got %+v", file)
	}
	if storage.saved[file.StoredPath] != body {
		t.Errorf("stored body: got %q", storage.saved[file.StoredPath])
	}
	files, _ := h.store.Files().ListBySession(h.ctx, s.ID)
	if len(files) != 1 {
		t.Errorf("file rows: got %d, want 1", len(files))
	}

	pdf, _, err := h.svc.UploadFile(h.ctx, r, s.ID, usecase.Upload{Name: "form.pdf", MimeType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")})
	if err != nil || pdf.Type != entity.MessageFile {
		t.Errorf("pdf: got %v, %v", pdf, err)
	}

	big := usecase.Upload{Name: "big.bin", MimeType: "application/octet-stream", Size: 6 << 20, Body: strings.NewReader("")}
	if _, _, err := h.svc.UploadFile(h.ctx, r, s.ID, big); !domainErrors.IsInvalidInput(err) {
		t.Errorf("too large: got %v", err)
	}
	small := usecase.Upload{Name: "a.txt", MimeType: "text/plain", Size: 1, Body: strings.NewReader("a")}
	if _, _, err := h.svc.UploadFile(h.ctx, other, s.ID, small); !domainErrors.IsForbidden(err) {
		t.Errorf("stranger: got %v", err)
	}
	if len(storage.saved) != 2 {
		t.Errorf("rejected uploads must not be stored: got %d files", len(storage.saved))
	}
}

func TestUploadFile_DisabledAndFiltered(t *testing.T) {
	h := newHarness(t)
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)
	up := usecase.Upload{Name: "a.txt", MimeType: "text/plain", Size: 1, Body: strings.NewReader("a")}
	if _, _, err := h.svc.UploadFile(h.ctx, r, s.ID, up); domainErrors.CodeOf(err) != domainErrors.CodeServiceUnavail {
		t.Errorf("disabled: got %v", err)
	}

	svc := usecase.NewChatService(h.store, nil, nil, nil,
		usecase.Options{AllowedUploads: []string{"image/*", "application/pdf"}}, zap.NewNop(),
		usecase.WithFileStorage(&memStorage{saved: map[string]string{}}))
	if _, _, err := svc.UploadFile(h.ctx, r, s.ID, up); !domainErrors.IsInvalidInput(err) {
		t.Errorf("text/plain not allowed: got %v", err)
	}
	img := usecase.Upload{Name: "a.jpg", MimeType: "image/jpeg", Size: 1, Body: strings.NewReader("a")}
	if _, _, err := svc.UploadFile(h.ctx, r, s.ID, img); err != nil {
		t.Errorf("image/jpeg allowed: got %v", err)
	}
}

func TestUploadFile_RemovesFileWhenSessionEndsMidUpload(t *testing.T) {
	storage := &memStorage{saved: map[string]string{}}
	h := newHarness(t, usecase.WithFileStorage(storage))
	r := h.user(t, "ama", valueobject.RoleStudent)
	s := h.start(t, r)

	// session ends after the file is written but before its row is created
	storage.onSave = func() {
		if _, err := h.svc.EndSession(h.ctx, r, usecase.EndSessionInput{SessionID: s.ID}); err != nil {
			t.Errorf("EndSession: %v", err)
		}
	}
	up := usecase.Upload{Name: "late.txt", MimeType: "text/plain", Size: 4, Body: strings.NewReader("late")}
	if _, _, err := h.svc.UploadFile(h.ctx, r, s.ID, up); !domainErrors.IsInvalidInput(err) {
		t.Fatalf("upload into ended session: got %v, want INVALID_INPUT", err)
	}

	if len(storage.saved) != 0 {
		t.Errorf("orphaned files: got %v", storage.saved)
	}
	if len(storage.removed) != 1 || storage.removed[0] != "/uploads/chat/late.txt" {
		t.Errorf("removed: got %v", storage.removed)
	}
	files, _ := h.store.Files().ListBySession(h.ctx, s.ID)
	if len(files) != 0 {
		t.Errorf("file rows: got %d, want 0", len(files))
	}
}
