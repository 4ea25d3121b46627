package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helpline-hq/support-desk/internal/domain"
)

type workflowRow struct {
	id         string
	conditions string
	actions    string
}

// rowsDB serves a fixed workflow result set. Exec and QueryRow are not used.
type rowsDB struct {
	DBTX
	rows []workflowRow
}

func (db *rowsDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return &workflowRows{rows: db.rows, pos: -1}, nil
}

type workflowRows struct {
	pgx.Rows
	rows []workflowRow
	pos  int
}

func (r *workflowRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *workflowRows) Scan(dest ...any) error {
	if len(dest) != 9 {
		return fmt.Errorf("scan: got %d destinations", len(dest))
	}
	row := r.rows[r.pos]
	*dest[0].(*string) = row.id
	*dest[1].(*string) = "tenant-1"
	*dest[2].(*string) = row.id
	*dest[3].(*string) = domain.TriggerTicketUpdated
	*dest[4].(*bool) = true
	*dest[5].(*[]byte) = []byte(row.conditions)
	*dest[6].(*[]byte) = []byte(row.actions)
	*dest[7].(*time.Time) = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	*dest[8].(*time.Time) = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return nil
}

func (r *workflowRows) Close()     {}
func (r *workflowRows) Err() error { return nil }

func TestListActiveByTriggerSkipsMalformedRows(t *testing.T) {
	db := &rowsDB{rows: []workflowRow{
		{id: "wf-good", conditions: `[{"field":"priority","operator":"equals","value":"high"}]`, actions: `[{"type":"update_field","field":"priority","value":"urgent"}]`},
		{id: "wf-numeric-operator", conditions: `[{"field":"priority","operator":5,"value":"high"}]`, actions: `[]`},
		{id: "wf-broken-actions", conditions: `[]`, actions: `{"type":"update_field"}`},
		{id: "wf-broken-conditions", conditions: `[{"field":7}]`, actions: `[]`},
	}}
	repo := NewWorkflowRepository(db, nil)

	workflows, err := repo.ListActiveByTrigger(context.Background(), "tenant-1", domain.TriggerTicketUpdated)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(workflows) != 2 {
		t.Fatalf("workflows = %d, want 2: %+v", len(workflows), workflows)
	}
	if workflows[0].ID != "wf-good" || workflows[0].Conditions[0].Operator != domain.OperatorEquals {
		t.Fatalf("unexpected first workflow %+v", workflows[0])
	}
	numeric := workflows[1]
	if numeric.ID != "wf-numeric-operator" || numeric.Conditions[0].Operator != domain.OperatorUnknown {
		t.Fatalf("numeric operator should decode as unknown: %+v", numeric)
	}
}
