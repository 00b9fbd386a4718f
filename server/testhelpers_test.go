package server

import (
	"os"
	"testing"

	"github.com/GoCodeAlone/taskflow/classify"
	"github.com/GoCodeAlone/taskflow/internal/db"
	"github.com/GoCodeAlone/taskflow/provider/mock"
	"github.com/GoCodeAlone/taskflow/tag"
	"github.com/GoCodeAlone/taskflow/task"
	"github.com/GoCodeAlone/taskflow/workflow"
)

// newTestService returns a workflow service over a temp SQLite database
// whose provider classifies every task High and tags it Work.
func newTestService(t *testing.T) *workflow.Service {
	t.Helper()
	f, err := os.CreateTemp("", "taskflow-server-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	tasks, err := task.NewSQLiteStore(conn)
	if err != nil {
		t.Fatalf("task.NewSQLiteStore: %v", err)
	}
	tags, err := tag.NewSQLiteStore(conn, nil)
	if err != nil {
		t.Fatalf("tag.NewSQLiteStore: %v", err)
	}
	gw := classify.New(mock.New("**High**", `["Work"]`), classify.Config{}, nil)
	return workflow.New(tasks, tags, gw, nil, nil)
}
