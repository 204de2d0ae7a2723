package audience

import (
	"context"
	"fmt"

	"dripline/internal/rules"
)

// MemorySource serves an in-process audience. It backs unit tests and
// small deployments that load their audience at startup.
type MemorySource struct {
	rows []rules.Row
}

func NewMemorySource(members []Member) *MemorySource {
	rows := make([]rules.Row, 0, len(members))
	for _, m := range members {
		row := make(rules.Row, len(m))
		for k, v := range m {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return &MemorySource{rows: rows}
}

func (s *MemorySource) Snapshot(ctx context.Context) (rules.Queryable, error) {
	return rules.NewCollection(s.rows), nil
}

func (s *MemorySource) Materialize(ctx context.Context, q rules.Queryable) ([]Member, error) {
	coll, ok := q.(*rules.Collection)
	if !ok {
		return nil, fmt.Errorf("queryable does not originate from this source")
	}
	rows := coll.Rows()
	members := make([]Member, 0, len(rows))
	for _, row := range rows {
		m := make(Member, len(row))
		for k, v := range row {
			m[k] = v
		}
		members = append(members, m)
	}
	return members, nil
}
