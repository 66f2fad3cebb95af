// Package store is the persistence boundary of the engine: a keyed
// hierarchy of JSON documents addressed by slash-delimited paths
// (chats/<id>, users/<id>, messages/<chatId>/<msgId>), offering only
// single-key primitives. There are no multi-key transactions; the one
// concession to concurrent writers is Swap, a compare-and-set used by
// the unread counter reconciliation loop.
package store

import (
	"context"
	"encoding/json"
	"strings"
)

type Adapter interface {
	// Get decodes the value at path into dest. Returns
	// apperr.ErrNotFound when nothing is stored there.
	Get(ctx context.Context, path string, dest interface{}) error

	// Set overwrites the value at path entirely.
	Set(ctx context.Context, path string, value interface{}) error

	// Update merges fields into the value at path. Field keys may be
	// slash-delimited sub-paths ("unreadCount/u1"), each addressed
	// independently. Missing intermediate nodes are created.
	Update(ctx context.Context, path string, fields map[string]interface{}) error

	// Delete removes the value at path. Deleting an absent path is
	// not an error.
	Delete(ctx context.Context, path string) error

	// List returns the direct children of a collection path, keyed by
	// child name.
	List(ctx context.Context, path string) (map[string]json.RawMessage, error)

	// Swap writes next at path only if the current value equals old.
	// old == nil means "only if absent". Reports whether the write
	// happened.
	Swap(ctx context.Context, path string, old, next interface{}) (bool, error)

	// Subscribe fires fn after every change at or under path until the
	// returned unsubscribe func is called or ctx is done.
	Subscribe(ctx context.Context, path string, fn func()) (func(), error)
}

// docRoot maps a logical path onto the document that physically holds
// it. chats/ and users/ store one document per entity; messages/ nests
// one level deeper, one document per message.
func docRoot(path string) (doc, sub string) {
	segs := strings.Split(path, "/")
	depth := 2
	if segs[0] == "messages" {
		depth = 3
	}
	if len(segs) <= depth {
		return path, ""
	}
	return strings.Join(segs[:depth], "/"), strings.Join(segs[depth:], "/")
}

// normalize round-trips v through JSON so values read back from a
// backend and values freshly built in memory compare equal.
func normalize(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// setSubPath writes v at the slash-delimited sub-path inside doc,
// creating intermediate objects as needed.
func setSubPath(doc map[string]interface{}, sub string, v interface{}) {
	segs := strings.Split(sub, "/")
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[s] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// getSubPath walks the slash-delimited sub-path inside doc.
func getSubPath(doc interface{}, sub string) (interface{}, bool) {
	if sub == "" {
		return doc, true
	}
	cur := doc
	for _, s := range strings.Split(sub, "/") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func deleteSubPath(doc map[string]interface{}, sub string) {
	segs := strings.Split(sub, "/")
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]interface{})
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

// underPath reports whether a change at changed is visible to a
// subscriber of path (either contains the other).
func underPath(path, changed string) bool {
	return strings.HasPrefix(changed+"/", path+"/") || strings.HasPrefix(path+"/", changed+"/")
}
