package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) Catalog() *catalog.Catalog {
	return &catalog.Catalog{Service: s.name, Description: "stub", Actions: []catalog.ActionSpec{}}
}
func (s *stubAdapter) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	return "ran " + action, nil
}

func TestRegistryRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{name: "notes"})

	if r.Get("notes") == nil {
		t.Fatal("registered adapter not found")
	}
	if _, ok := r.CatalogFor("notes"); !ok {
		t.Error("CatalogFor should find the registered adapter")
	}
	if _, ok := r.CatalogFor("ghost"); ok {
		t.Error("CatalogFor should miss unregistered services")
	}

	result, err := r.Invoke(context.Background(), "notes", "addNote", nil)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result != "ran addNote" {
		t.Errorf("unexpected result %v", result)
	}

	_, err = r.Invoke(context.Background(), "ghost", "anything", nil)
	var ua *UnknownActionError
	if !errors.As(err, &ua) {
		t.Errorf("expected UnknownActionError for missing adapter, got %v", err)
	}
}

func TestAdapterCatalogsValidate(t *testing.T) {
	ws := NewWorkspaceAdapter(t.TempDir())
	sched := NewSchedulerAdapter(&fakeInstructionStore{})
	all := []Adapter{
		ws,
		sched,
		NewShellAdapter(),
		NewWebpageAdapter(),
		NewBrowserAdapter(),
	}
	if search, err := NewSearchAdapter(); err == nil {
		all = append(all, search)
	}
	for _, a := range all {
		cat := a.Catalog()
		if err := cat.Validate(); err != nil {
			t.Errorf("%s catalog invalid: %v", a.Name(), err)
		}
		if cat.Service != a.Name() {
			t.Errorf("%s catalog names service %q", a.Name(), cat.Service)
		}
	}
}

func TestWorkspaceAdapterFileLifecycle(t *testing.T) {
	w := NewWorkspaceAdapter(t.TempDir())
	ctx := context.Background()

	if _, err := w.Execute(ctx, "makeDirectory", map[string]any{"path": "reports"}); err != nil {
		t.Fatalf("makeDirectory failed: %v", err)
	}
	if _, err := w.Execute(ctx, "writeFile", map[string]any{"filename": "reports/today.txt", "content": "7 invoices"}); err != nil {
		t.Fatalf("writeFile failed: %v", err)
	}

	result, err := w.Execute(ctx, "readFile", map[string]any{"filename": "reports/today.txt"})
	if err != nil {
		t.Fatalf("readFile failed: %v", err)
	}
	m := result.(map[string]any)
	if m["content"] != "7 invoices" {
		t.Errorf("unexpected content %v", m["content"])
	}

	result, err = w.Execute(ctx, "listFiles", map[string]any{"path": "reports"})
	if err != nil {
		t.Fatalf("listFiles failed: %v", err)
	}
	entries := result.(map[string]any)["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].(map[string]any)["name"] != "today.txt" {
		t.Errorf("unexpected entry %v", entries[0])
	}

	if _, err := w.Execute(ctx, "deleteFile", map[string]any{"filename": "reports/today.txt"}); err != nil {
		t.Fatalf("deleteFile failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.Root, "reports", "today.txt")); !os.IsNotExist(err) {
		t.Error("file should be gone after deleteFile")
	}
}

func TestWorkspaceAdapterRejectsEscapes(t *testing.T) {
	w := NewWorkspaceAdapter(t.TempDir())
	_, err := w.Execute(context.Background(), "readFile", map[string]any{"filename": "../../etc/passwd"})
	if err == nil {
		t.Fatal("path escape should be rejected")
	}
}

func TestWorkspaceAdapterUnknownAction(t *testing.T) {
	w := NewWorkspaceAdapter(t.TempDir())
	_, err := w.Execute(context.Background(), "formatDisk", nil)
	var ua *UnknownActionError
	if !errors.As(err, &ua) {
		t.Errorf("expected UnknownActionError, got %v", err)
	}
}

type fakeInstructionStore struct {
	added   []string
	cleared []string
	err     error
}

func (f *fakeInstructionStore) AddInstruction(sessionID, description string, intervalSeconds int) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, sessionID+":"+description)
	return nil
}

func (f *fakeInstructionStore) ClearInstructions(sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func TestSchedulerAdapterUsesSessionFromContext(t *testing.T) {
	store := &fakeInstructionStore{}
	s := NewSchedulerAdapter(store)
	ctx := WithSession(context.Background(), "sess-1")

	_, err := s.Execute(ctx, "scheduleInstruction", map[string]any{
		"description":     "check the invoices",
		"intervalSeconds": float64(300),
	})
	if err != nil {
		t.Fatalf("scheduleInstruction failed: %v", err)
	}
	if len(store.added) != 1 || store.added[0] != "sess-1:check the invoices" {
		t.Errorf("unexpected stored instruction %v", store.added)
	}

	if _, err := s.Execute(ctx, "clearInstructions", nil); err != nil {
		t.Fatalf("clearInstructions failed: %v", err)
	}
	if len(store.cleared) != 1 || store.cleared[0] != "sess-1" {
		t.Errorf("unexpected cleared sessions %v", store.cleared)
	}
}

func TestSchedulerAdapterRejectsBadInput(t *testing.T) {
	s := NewSchedulerAdapter(&fakeInstructionStore{})
	ctx := WithSession(context.Background(), "sess-1")

	if _, err := s.Execute(ctx, "scheduleInstruction", map[string]any{"description": "x", "intervalSeconds": float64(5)}); err == nil {
		t.Error("sub-minute intervals should be rejected")
	}
	if _, err := s.Execute(context.Background(), "scheduleInstruction", map[string]any{"description": "x", "intervalSeconds": float64(300)}); err == nil {
		t.Error("missing session should be rejected")
	}
}

func TestShellAdapterRunCommand(t *testing.T) {
	s := NewShellAdapter()
	result, err := s.Execute(context.Background(), "runCommand", map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("runCommand failed: %v", err)
	}
	m := result.(map[string]any)
	if m["output"] != "hello" || m["failed"] != false {
		t.Errorf("unexpected result %v", m)
	}

	result, err = s.Execute(context.Background(), "runCommand", map[string]any{"command": "exit 3"})
	if err != nil {
		t.Fatalf("failing command should return data, got error: %v", err)
	}
	if result.(map[string]any)["failed"] != true {
		t.Errorf("non-zero exit should be flagged: %v", result)
	}
}

func TestWebpageAdapterRequiresURL(t *testing.T) {
	w := NewWebpageAdapter()
	if _, err := w.Execute(context.Background(), "fetchContent", nil); err == nil {
		t.Error("missing url should be rejected")
	}
}
