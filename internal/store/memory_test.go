package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
)

func TestGetSetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := m.Set(ctx, "chats/c1", doc{Name: "general", Count: 3}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got doc
	if err := m.Get(ctx, "chats/c1", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "general" || got.Count != 3 {
		t.Errorf("unexpected doc: %+v", got)
	}

	var name string
	if err := m.Get(ctx, "chats/c1/name", &name); err != nil {
		t.Fatalf("get sub-path: %v", err)
	}
	if name != "general" {
		t.Errorf("expected 'general', got %q", name)
	}
}

func TestGetAbsent(t *testing.T) {
	m := NewMemory()
	var v interface{}
	err := m.Get(context.Background(), "chats/missing", &v)
	if err != apperr.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSubPaths(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "chats/c1", map[string]interface{}{
		"unreadCount": map[string]int{"a": 1, "b": 2},
	})
	err := m.Update(ctx, "chats/c1", map[string]interface{}{
		"unreadCount/a": 5,
		"groupName":     "team",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var counts map[string]int
	if err := m.Get(ctx, "chats/c1/unreadCount", &counts); err != nil {
		t.Fatalf("get: %v", err)
	}
	if counts["a"] != 5 || counts["b"] != 2 {
		t.Errorf("unexpected counts: %v", counts)
	}
	var name string
	if err := m.Get(ctx, "chats/c1/groupName", &name); err != nil || name != "team" {
		t.Errorf("expected groupName 'team', got %q err %v", name, err)
	}
}

func TestListChildren(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "messages/c1/m1", map[string]string{"content": "hi"})
	m.Set(ctx, "messages/c1/m2", map[string]string{"content": "yo"})
	m.Set(ctx, "messages/c2/m3", map[string]string{"content": "other"})

	kids, err := m.List(ctx, "messages/c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(kids) != 2 {
		t.Errorf("expected 2 children, got %d", len(kids))
	}
	if _, ok := kids["m1"]; !ok {
		t.Error("expected m1 in listing")
	}
}

func TestDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "messages/c1/m1", map[string]string{"content": "hi"})
	if err := m.Delete(ctx, "messages/c1/m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var v interface{}
	if err := m.Get(ctx, "messages/c1/m1", &v); err != apperr.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	// deleting an absent path is not an error
	if err := m.Delete(ctx, "messages/c1/m1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestSwap(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "chats/c1/unreadCount/a", 2)

	ok, err := m.Swap(ctx, "chats/c1/unreadCount/a", 2, 3)
	if err != nil || !ok {
		t.Fatalf("expected swap to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = m.Swap(ctx, "chats/c1/unreadCount/a", 2, 9)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if ok {
		t.Error("swap with stale old value must fail")
	}

	var n int
	m.Get(ctx, "chats/c1/unreadCount/a", &n)
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestSwapCreateIfAbsent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.Swap(ctx, "chats/c1/unreadCount/a", nil, 1)
	if err != nil || !ok {
		t.Fatalf("expected create-if-absent to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = m.Swap(ctx, "chats/c1/unreadCount/a", nil, 7)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if ok {
		t.Error("create-if-absent must fail on an existing value")
	}
}

func TestSwapConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Set(ctx, "chats/c1/unreadCount/a", 0)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				var cur int
				if err := m.Get(ctx, "chats/c1/unreadCount/a", &cur); err != nil {
					t.Errorf("get: %v", err)
					return
				}
				ok, err := m.Swap(ctx, "chats/c1/unreadCount/a", cur, cur+1)
				if err != nil {
					t.Errorf("swap: %v", err)
					return
				}
				if ok {
					return
				}
			}
		}()
	}
	wg.Wait()

	var n int
	m.Get(ctx, "chats/c1/unreadCount/a", &n)
	if n != writers {
		t.Errorf("expected %d after %d CAS increments, got %d", writers, writers, n)
	}
}

func TestSubscribe(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var mu sync.Mutex
	fired := 0
	unsub, err := m.Subscribe(ctx, "chats", func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	m.Set(ctx, "chats/c1", map[string]string{"name": "x"})
	m.Set(ctx, "users/u1", map[string]string{"name": "y"}) // outside the subscription
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	got := fired
	mu.Unlock()
	if got != 1 {
		t.Errorf("expected 1 notification, got %d", got)
	}

	unsub()
	m.Set(ctx, "chats/c2", map[string]string{"name": "z"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	got = fired
	mu.Unlock()
	if got != 1 {
		t.Errorf("expected no notifications after unsubscribe, got %d", got)
	}
}

func TestDocRoot(t *testing.T) {
	cases := []struct {
		path, doc, sub string
	}{
		{"chats/c1", "chats/c1", ""},
		{"chats/c1/unreadCount/u1", "chats/c1", "unreadCount/u1"},
		{"users/u1", "users/u1", ""},
		{"messages/c1/m1", "messages/c1/m1", ""},
		{"messages/c1/m1/isRead", "messages/c1/m1", "isRead"},
	}
	for _, tc := range cases {
		doc, sub := docRoot(tc.path)
		if doc != tc.doc || sub != tc.sub {
			t.Errorf("docRoot(%q) = (%q, %q), want (%q, %q)", tc.path, doc, sub, tc.doc, tc.sub)
		}
	}
}
