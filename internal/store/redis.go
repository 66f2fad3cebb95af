package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
)

// redis transactions abort with TxFailedErr when a watched key moved;
// sub-document writes retry a few times before giving up, matching the
// adapter-boundary retry policy for transient failures.
const redisTxAttempts = 5

// Redis stores one key per document (prefix + document path) with JSON
// values. Sub-document reads and writes go through WATCH/MULTI
// optimistic transactions; change notifications ride a single pub/sub
// channel carrying the changed path.
type Redis struct {
	rdb     *redis.Client
	prefix  string
	channel string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, channel: prefix + "changes"}
}

func (r *Redis) key(docPath string) string { return r.prefix + docPath }

func (r *Redis) Get(ctx context.Context, path string, dest interface{}) error {
	doc, sub := docRoot(path)
	raw, err := r.rdb.Get(ctx, r.key(doc)).Bytes()
	if errors.Is(err, redis.Nil) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return err
	}
	if sub == "" {
		return json.Unmarshal(raw, dest)
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	node, ok := getSubPath(tree, sub)
	if !ok {
		return apperr.ErrNotFound
	}
	b, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (r *Redis) Set(ctx context.Context, path string, value interface{}) error {
	doc, sub := docRoot(path)
	if sub == "" {
		b, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if err := r.rdb.Set(ctx, r.key(doc), b, 0).Err(); err != nil {
			return err
		}
		r.publish(ctx, path)
		return nil
	}
	err := r.mutateDoc(ctx, doc, func(d map[string]interface{}) error {
		norm, err := normalize(value)
		if err != nil {
			return err
		}
		setSubPath(d, sub, norm)
		return nil
	})
	if err != nil {
		return err
	}
	r.publish(ctx, path)
	return nil
}

func (r *Redis) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	doc, sub := docRoot(path)
	err := r.mutateDoc(ctx, doc, func(d map[string]interface{}) error {
		for k, v := range fields {
			norm, err := normalize(v)
			if err != nil {
				return err
			}
			key := k
			if sub != "" {
				key = sub + "/" + k
			}
			setSubPath(d, key, norm)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.publish(ctx, path)
	return nil
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	doc, sub := docRoot(path)
	if sub == "" {
		if err := r.rdb.Del(ctx, r.key(doc)).Err(); err != nil {
			return err
		}
		r.publish(ctx, path)
		return nil
	}
	err := r.mutateDoc(ctx, doc, func(d map[string]interface{}) error {
		deleteSubPath(d, sub)
		return nil
	})
	if err != nil {
		return err
	}
	r.publish(ctx, path)
	return nil
}

func (r *Redis) List(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	pattern := r.key(path) + "/*"
	iter := r.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		raw, err := r.rdb.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		child := strings.TrimPrefix(k, r.key(path)+"/")
		out[child] = raw
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Redis) Swap(ctx context.Context, path string, old, next interface{}) (bool, error) {
	doc, sub := docRoot(path)
	nextNorm, err := normalize(next)
	if err != nil {
		return false, err
	}
	var oldNorm interface{}
	if old != nil {
		if oldNorm, err = normalize(old); err != nil {
			return false, err
		}
	}

	swapped := false
	txn := func(tx *redis.Tx) error {
		var tree interface{}
		raw, err := tx.Get(ctx, r.key(doc)).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			tree = map[string]interface{}{}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &tree); err != nil {
				return err
			}
		}
		cur, exists := getSubPath(tree, sub)
		if old == nil {
			if exists {
				return nil
			}
		} else if !exists || !reflect.DeepEqual(cur, oldNorm) {
			return nil
		}
		d, ok := tree.(map[string]interface{})
		if !ok {
			d = map[string]interface{}{}
		}
		if sub == "" {
			d = nextNorm.(map[string]interface{})
		} else {
			setSubPath(d, sub, nextNorm)
		}
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(doc), b, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	err = r.rdb.Watch(ctx, txn, r.key(doc))
	if errors.Is(err, redis.TxFailedErr) {
		// a concurrent writer moved the key: that is a failed compare,
		// not a transport error
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if swapped {
		r.publish(ctx, path)
	}
	return swapped, nil
}

func (r *Redis) Subscribe(ctx context.Context, path string, fn func()) (func(), error) {
	ps := r.rdb.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		ch := ps.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if underPath(path, msg.Payload) {
					fn()
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		_ = ps.Close()
	}, nil
}

// mutateDoc applies fn to the decoded document under an optimistic
// WATCH transaction, retrying on concurrent writers.
func (r *Redis) mutateDoc(ctx context.Context, doc string, fn func(map[string]interface{}) error) error {
	txn := func(tx *redis.Tx) error {
		d := map[string]interface{}{}
		raw, err := tx.Get(ctx, r.key(doc)).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
		}
		if err := fn(d); err != nil {
			return err
		}
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(doc), b, 0)
			return nil
		})
		return err
	}
	var err error
	for i := 0; i < redisTxAttempts; i++ {
		err = r.rdb.Watch(ctx, txn, r.key(doc))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (r *Redis) publish(ctx context.Context, path string) {
	_ = r.rdb.Publish(ctx, r.channel, path).Err()
}
