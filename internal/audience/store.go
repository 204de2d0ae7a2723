package audience

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"dripline/internal/rules"
)

// Store hands out lazy queries over the audience collection.
type Store struct {
	collection *mongo.Collection
}

func NewStore(db *mongo.Database, collection string) *Store {
	return &Store{collection: db.Collection(collection)}
}

func (s *Store) Snapshot(ctx context.Context) (rules.Queryable, error) {
	return &Query{collection: s.collection}, nil
}

// Materialize runs a query produced by Snapshot and returns the
// matching members.
func (s *Store) Materialize(ctx context.Context, q rules.Queryable) ([]Member, error) {
	query, ok := q.(*Query)
	if !ok {
		return nil, fmt.Errorf("queryable does not originate from this store")
	}
	return query.Members(ctx)
}

// Query is a lazy, composable view over the audience collection. Each
// operation returns a new query; nothing hits the server until Members
// is called.
type Query struct {
	collection  *mongo.Collection
	conditions  []bson.M
	annotations []rules.Annotation
}

func (q *Query) Filter(p rules.Predicate) (rules.Queryable, error) {
	cond, err := predicateToBSON(p)
	if err != nil {
		return nil, err
	}
	return q.with(cond), nil
}

func (q *Query) Exclude(p rules.Predicate) (rules.Queryable, error) {
	cond, err := predicateToBSON(p)
	if err != nil {
		return nil, err
	}
	return q.with(bson.M{"$nor": bson.A{cond}}), nil
}

// Annotate registers the count column. Re-annotating the same alias is
// a no-op, so repeated count rules do not stack stages.
func (q *Query) Annotate(a rules.Annotation) (rules.Queryable, error) {
	for _, existing := range q.annotations {
		if existing.Alias == a.Alias {
			return q, nil
		}
	}
	next := q.clone()
	next.annotations = append(next.annotations, a)
	return next, nil
}

func (q *Query) with(cond bson.M) *Query {
	next := q.clone()
	next.conditions = append(next.conditions, cond)
	return next
}

func (q *Query) clone() *Query {
	next := &Query{collection: q.collection}
	next.conditions = append(next.conditions, q.conditions...)
	next.annotations = append(next.annotations, q.annotations...)
	return next
}

// Members executes the accumulated query. Annotated queries go through
// the aggregation pipeline; plain ones use a find.
func (q *Query) Members(ctx context.Context) ([]Member, error) {
	var cursor *mongo.Cursor
	var err error

	if len(q.annotations) == 0 {
		cursor, err = q.collection.Find(ctx, combineConditions(q.conditions))
	} else {
		cursor, err = q.collection.Aggregate(ctx, q.pipeline())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audience: %w", err)
	}
	defer cursor.Close(ctx)

	var members []Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode audience members: %w", err)
	}

	return members, nil
}

// pipeline puts every $addFields first. Count columns only add data,
// so hoisting them ahead of the filters preserves the result while
// keeping the stage list flat.
func (q *Query) pipeline() mongo.Pipeline {
	var pipeline mongo.Pipeline
	for _, a := range q.annotations {
		pipeline = append(pipeline, toStageDoc(annotationToStage(a)))
	}
	if len(q.conditions) > 0 {
		pipeline = append(pipeline, toStageDoc(bson.M{"$match": combineConditions(q.conditions)}))
	}
	return pipeline
}

func toStageDoc(stage bson.M) bson.D {
	doc := make(bson.D, 0, len(stage))
	for k, v := range stage {
		doc = append(doc, bson.E{Key: k, Value: v})
	}
	return doc
}
