package migrator

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mouradhm/mongo-migrate/pkg/models"
)

// memStore is an in-memory Store used by tests.
type memStore struct {
	docs    map[string]map[string][]bson.Raw
	indexes map[string]map[string][]models.IndexSpec

	countErr       map[string]error // by "db.coll"
	insertErr      error
	listIndexesErr error
	createIndexErr map[string]error // by index name
	dropPerInsert  int

	batches []int
	calls   []string
}

func newMemStore(dbs ...string) *memStore {
	s := &memStore{
		docs:           map[string]map[string][]bson.Raw{},
		indexes:        map[string]map[string][]models.IndexSpec{},
		countErr:       map[string]error{},
		createIndexErr: map[string]error{},
	}
	for _, db := range dbs {
		s.docs[db] = map[string][]bson.Raw{}
	}
	return s
}

func (s *memStore) put(db, coll string, docs []bson.Raw) {
	if s.docs[db] == nil {
		s.docs[db] = map[string][]bson.Raw{}
	}
	s.docs[db][coll] = append(s.docs[db][coll], docs...)
}

func (s *memStore) get(db, coll string) []bson.Raw {
	return s.docs[db][coll]
}

func (s *memStore) putIndexes(db, coll string, specs ...models.IndexSpec) {
	if s.indexes[db] == nil {
		s.indexes[db] = map[string][]models.IndexSpec{}
	}
	s.indexes[db][coll] = append(s.indexes[db][coll], specs...)
}

func (s *memStore) ListDatabaseNames(ctx context.Context) ([]string, error) {
	s.calls = append(s.calls, "listDatabases")

	var names []string
	for db := range s.docs {
		names = append(names, db)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) CountDocuments(ctx context.Context, db, coll string) (int64, error) {
	s.calls = append(s.calls, "count "+db+"."+coll)

	if err := s.countErr[db+"."+coll]; err != nil {
		return 0, err
	}
	return int64(len(s.docs[db][coll])), nil
}

func (s *memStore) DeleteAll(ctx context.Context, db, coll string) (int64, error) {
	s.calls = append(s.calls, "delete "+db+"."+coll)

	n := len(s.docs[db][coll])
	if s.docs[db] != nil {
		delete(s.docs[db], coll)
	}
	return int64(n), nil
}

func (s *memStore) ForEachBatch(ctx context.Context, db, coll string, batchSize int, fn func([]bson.Raw) error) error {
	s.calls = append(s.calls, "find "+db+"."+coll)

	all := append([]bson.Raw(nil), s.docs[db][coll]...)
	for len(all) > 0 {
		n := min(batchSize, len(all))
		if err := fn(all[:n]); err != nil {
			return err
		}
		all = all[n:]
	}
	return nil
}

func (s *memStore) InsertMany(ctx context.Context, db, coll string, docs []bson.Raw) error {
	s.calls = append(s.calls, "insert "+db+"."+coll)

	if s.insertErr != nil {
		return s.insertErr
	}

	s.batches = append(s.batches, len(docs))

	keep := len(docs) - s.dropPerInsert
	if keep < 0 {
		keep = 0
	}
	for _, d := range docs[:keep] {
		s.put(db, coll, []bson.Raw{append(bson.Raw(nil), d...)})
	}
	return nil
}

func (s *memStore) ListIndexes(ctx context.Context, db, coll string) ([]models.IndexSpec, error) {
	s.calls = append(s.calls, "listIndexes "+db+"."+coll)

	if s.listIndexesErr != nil {
		return nil, s.listIndexesErr
	}
	return append([]models.IndexSpec(nil), s.indexes[db][coll]...), nil
}

func (s *memStore) CreateIndex(ctx context.Context, db, coll string, spec models.IndexSpec) error {
	s.calls = append(s.calls, "createIndex "+db+"."+coll+" "+spec.Name)

	if err := s.createIndexErr[spec.Name]; err != nil {
		return err
	}
	s.putIndexes(db, coll, spec)
	return nil
}

// scriptedConfirmer returns prepared answers in order and records the questions.
type scriptedConfirmer struct {
	answers   []bool
	questions []string
	hook      func()
	err       error
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	c.questions = append(c.questions, question)

	if c.hook != nil {
		c.hook()
	}
	if c.err != nil {
		return false, c.err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(c.answers) == 0 {
		return false, nil
	}

	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

// makeDocs returns n distinct documents tagged with label.
func makeDocs(tb testing.TB, label string, n int) []bson.Raw {
	tb.Helper()

	docs := make([]bson.Raw, n)
	for i := range docs {
		raw, err := bson.Marshal(bson.D{
			{Key: "_id", Value: int32(i)},
			{Key: "label", Value: label},
			{Key: "nested", Value: bson.D{{Key: "z", Value: i}, {Key: "a", Value: "first"}}},
		})
		require.NoError(tb, err)
		docs[i] = raw
	}
	return docs
}

var errBoom = errors.New("boom")

// check interfaces
var _ Store = (*memStore)(nil)
