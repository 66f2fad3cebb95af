package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
)

// Mongo maps the path hierarchy onto collections: the first segment
// names the collection, the remaining document segments form the _id
// ("<chatId>/<msgId>" for messages), deeper segments become dotted
// field paths. Every write bumps a _rev counter so Swap can detect
// concurrent writers without relying on BSON document equality.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) locate(path string) (coll *mongo.Collection, id, sub string) {
	doc, sub := docRoot(path)
	segs := strings.SplitN(doc, "/", 2)
	coll = m.db.Collection(segs[0])
	if len(segs) > 1 {
		id = segs[1]
	}
	return coll, id, sub
}

func dotted(sub string) string { return strings.ReplaceAll(sub, "/", ".") }

func (m *Mongo) fetch(ctx context.Context, coll *mongo.Collection, id string) (map[string]interface{}, int64, error) {
	var d map[string]interface{}
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, apperr.ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	rev, _ := toInt64(d["_rev"])
	delete(d, "_id")
	delete(d, "_rev")
	return d, rev, nil
}

func (m *Mongo) Get(ctx context.Context, path string, dest interface{}) error {
	coll, id, sub := m.locate(path)
	d, _, err := m.fetch(ctx, coll, id)
	if err != nil {
		return err
	}
	norm, err := normalize(d)
	if err != nil {
		return err
	}
	node, ok := getSubPath(norm, sub)
	if !ok {
		return apperr.ErrNotFound
	}
	b, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (m *Mongo) Set(ctx context.Context, path string, value interface{}) error {
	coll, id, sub := m.locate(path)
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	if sub == "" {
		d, ok := norm.(map[string]interface{})
		if !ok {
			return errors.New("store: document root must be an object")
		}
		update := bson.M{"$set": withoutMeta(d), "$inc": bson.M{"_rev": 1}}
		_, err = coll.UpdateByID(ctx, id, update, options.Update().SetUpsert(true))
		return err
	}
	update := bson.M{"$set": bson.M{dotted(sub): norm}, "$inc": bson.M{"_rev": 1}}
	_, err = coll.UpdateByID(ctx, id, update, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	coll, id, sub := m.locate(path)
	set := bson.M{}
	for k, v := range fields {
		norm, err := normalize(v)
		if err != nil {
			return err
		}
		key := k
		if sub != "" {
			key = sub + "/" + k
		}
		set[dotted(key)] = norm
	}
	update := bson.M{"$set": set, "$inc": bson.M{"_rev": 1}}
	_, err := coll.UpdateByID(ctx, id, update, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) Delete(ctx context.Context, path string) error {
	coll, id, sub := m.locate(path)
	if sub == "" {
		_, err := coll.DeleteOne(ctx, bson.M{"_id": id})
		return err
	}
	update := bson.M{"$unset": bson.M{dotted(sub): ""}, "$inc": bson.M{"_rev": 1}}
	_, err := coll.UpdateByID(ctx, id, update)
	return err
}

func (m *Mongo) List(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	segs := strings.SplitN(path, "/", 2)
	coll := m.db.Collection(segs[0])
	filter := bson.M{}
	prefix := ""
	if len(segs) > 1 {
		prefix = segs[1] + "/"
		filter["_id"] = bson.M{"$regex": "^" + prefix}
	}
	cur, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := map[string]json.RawMessage{}
	for cur.Next(ctx) {
		var d map[string]interface{}
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		id, _ := d["_id"].(string)
		delete(d, "_id")
		delete(d, "_rev")
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(id, prefix)] = b
	}
	return out, cur.Err()
}

func (m *Mongo) Swap(ctx context.Context, path string, old, next interface{}) (bool, error) {
	coll, id, sub := m.locate(path)
	nextNorm, err := normalize(next)
	if err != nil {
		return false, err
	}

	d, rev, err := m.fetch(ctx, coll, id)
	if errors.Is(err, apperr.ErrNotFound) {
		if old != nil {
			return false, nil
		}
		d, rev = map[string]interface{}{}, 0
	} else if err != nil {
		return false, err
	}

	norm, err := normalize(d)
	if err != nil {
		return false, err
	}
	cur, exists := getSubPath(norm, sub)
	if old == nil {
		if exists && sub != "" {
			return false, nil
		}
		if rev != 0 && sub == "" {
			return false, nil
		}
	} else {
		oldNorm, err := normalize(old)
		if err != nil {
			return false, err
		}
		if !exists || !reflect.DeepEqual(cur, oldNorm) {
			return false, nil
		}
	}

	set := bson.M{}
	if sub == "" {
		doc, ok := nextNorm.(map[string]interface{})
		if !ok {
			return false, errors.New("store: document root must be an object")
		}
		for k, v := range withoutMeta(doc) {
			set[k] = v
		}
	} else {
		set[dotted(sub)] = nextNorm
	}
	filter := bson.M{"_id": id}
	if rev > 0 {
		filter["_rev"] = rev
	} else {
		filter["_rev"] = bson.M{"$exists": false}
	}
	res, err := coll.UpdateOne(ctx, filter,
		bson.M{"$set": set, "$inc": bson.M{"_rev": 1}},
		options.Update().SetUpsert(rev == 0))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

func (m *Mongo) Subscribe(ctx context.Context, path string, fn func()) (func(), error) {
	coll := m.db.Collection(strings.SplitN(path, "/", 2)[0])
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithCancel(ctx)
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(cctx) {
			var ev struct {
				DocumentKey struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := stream.Decode(&ev); err != nil {
				continue
			}
			changed := coll.Name() + "/" + ev.DocumentKey.ID
			if underPath(path, changed) {
				fn()
			}
		}
	}()
	return cancel, nil
}

func withoutMeta(d map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		if k == "_id" || k == "_rev" {
			continue
		}
		out[k] = v
	}
	return out
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
