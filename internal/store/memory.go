package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
)

// Memory keeps the whole hierarchy as one in-process JSON tree. It
// backs tests and single-node runs; the notification fanout matches
// the redis and mongo adapters so engine code cannot tell them apart.
type Memory struct {
	mu     sync.RWMutex
	root   map[string]interface{}
	subs   map[int]memSub
	nextID int
}

type memSub struct {
	path string
	fn   func()
}

func NewMemory() *Memory {
	return &Memory{
		root: map[string]interface{}{},
		subs: map[int]memSub{},
	}
}

func (m *Memory) Get(ctx context.Context, path string, dest interface{}) error {
	m.mu.RLock()
	node, ok := getSubPath(m.root, path)
	if !ok {
		m.mu.RUnlock()
		return apperr.ErrNotFound
	}
	b, err := json.Marshal(node)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (m *Memory) Set(ctx context.Context, path string, value interface{}) error {
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	setSubPath(m.root, path, norm)
	m.mu.Unlock()
	m.notify(path)
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	m.mu.Lock()
	node, ok := getSubPath(m.root, path)
	doc, isMap := node.(map[string]interface{})
	if !ok || !isMap {
		doc = map[string]interface{}{}
		setSubPath(m.root, path, doc)
	}
	for k, v := range fields {
		norm, err := normalize(v)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		setSubPath(doc, k, norm)
	}
	m.mu.Unlock()
	m.notify(path)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	deleteSubPath(m.root, path)
	m.mu.Unlock()
	m.notify(path)
	return nil
}

func (m *Memory) List(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := getSubPath(m.root, path)
	if !ok {
		return map[string]json.RawMessage{}, nil
	}
	children, ok := node.(map[string]interface{})
	if !ok {
		return map[string]json.RawMessage{}, nil
	}
	out := make(map[string]json.RawMessage, len(children))
	for k, v := range children {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return out, nil
}

func (m *Memory) Swap(ctx context.Context, path string, old, next interface{}) (bool, error) {
	nextNorm, err := normalize(next)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	cur, exists := getSubPath(m.root, path)
	if old == nil {
		if exists {
			m.mu.Unlock()
			return false, nil
		}
	} else {
		oldNorm, err := normalize(old)
		if err != nil {
			m.mu.Unlock()
			return false, err
		}
		if !exists || !reflect.DeepEqual(cur, oldNorm) {
			m.mu.Unlock()
			return false, nil
		}
	}
	setSubPath(m.root, path, nextNorm)
	m.mu.Unlock()
	m.notify(path)
	return true, nil
}

func (m *Memory) Subscribe(ctx context.Context, path string, fn func()) (func(), error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = memSub{path: path, fn: fn}
	m.mu.Unlock()

	unsub := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			unsub()
		}()
	}
	return unsub, nil
}

func (m *Memory) notify(changed string) {
	m.mu.RLock()
	var fns []func()
	for _, s := range m.subs {
		if underPath(s.path, changed) {
			fns = append(fns, s.fn)
		}
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		go fn()
	}
}
