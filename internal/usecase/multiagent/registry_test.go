package multiagent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(agent("coach", "", "assignment-guidance")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := r.Get("coach")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "coach" {
		t.Errorf("ID = %q, want %q", got.ID, "coach")
	}
	if got.Health != domain.HealthUnknown {
		t.Errorf("Health = %q, want unknown", got.Health)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := newTestRegistry(t, agent("coach", domain.HealthHealthy))
	err := r.Register(agent("coach", domain.HealthHealthy))
	if !errors.Is(err, domain.ErrAgentDuplicate) {
		t.Errorf("expected ErrAgentDuplicate, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryRejectsEmptyID(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(domain.AgentDescriptor{Name: "nameless"}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Get("nonexistent")
	if !errors.Is(err, domain.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestRegistryListKeepsInsertionOrder(t *testing.T) {
	r := newTestRegistry(t,
		agent("zeta", domain.HealthHealthy),
		agent("alpha", domain.HealthHealthy),
		agent("mid", domain.HealthHealthy),
	)
	list := r.List()
	want := []string{"zeta", "alpha", "mid"}
	if len(list) != len(want) {
		t.Fatalf("List len = %d, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("List[%d] = %q, want %q", i, list[i].ID, id)
		}
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := newTestRegistry(t, agent("coach", domain.HealthHealthy, "a", "b"))

	got, _ := r.Get("coach")
	got.Capabilities[0] = "mutated"
	got.Health = domain.HealthOffline

	again, _ := r.Get("coach")
	if again.Capabilities[0] != "a" || again.Health != domain.HealthHealthy {
		t.Errorf("registry state leaked through a returned copy: %+v", again)
	}
}

func TestRegistrySetHealth(t *testing.T) {
	r := newTestRegistry(t, agent("coach", domain.HealthUnknown))

	for range 2 {
		if err := r.SetHealth("coach", domain.HealthDegraded); err != nil {
			t.Fatalf("SetHealth: %v", err)
		}
	}
	got, _ := r.Get("coach")
	if got.Health != domain.HealthDegraded {
		t.Errorf("Health = %q, want degraded", got.Health)
	}
	if got.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}

	if err := r.SetHealth("ghost", domain.HealthHealthy); !errors.Is(err, domain.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := newTestRegistry(t, agent("a", domain.HealthHealthy), agent("b", domain.HealthHealthy), agent("c", domain.HealthHealthy))

	if err := r.Remove("b"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	list := r.List()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "c" {
		t.Errorf("List after remove = %v", list)
	}
	if err := r.Remove("b"); !errors.Is(err, domain.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
	if err := r.Register(agent("b", domain.HealthHealthy)); err != nil {
		t.Errorf("re-register after remove: %v", err)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("agent-%d", i)
			_ = r.Register(agent(id, domain.HealthHealthy))
			_ = r.SetHealth(id, domain.HealthDegraded)
			_, _ = r.Get(id)
			_ = r.List()
		}()
	}
	wg.Wait()
	if r.Len() != 20 {
		t.Errorf("Len = %d, want 20", r.Len())
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	data := `[
  {"id": "AssignmentCoachAgent", "name": "Assignment Coach", "url": "http://localhost:5020/",
   "description": "Guides students", "capabilities": ["assignment-guidance"], "keywords": ["assignment"]},
  {"id": "quiz", "name": "Quiz", "url": "http://localhost:5021", "capabilities": ["quiz"], "status": "offline"}
]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	descs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("len = %d, want 2", len(descs))
	}
	if descs[0].Address != "http://localhost:5020" {
		t.Errorf("Address = %q, trailing slash not trimmed", descs[0].Address)
	}
	if descs[0].Health != domain.HealthUnknown {
		t.Errorf("Health = %q, want unknown", descs[0].Health)
	}
	if descs[1].Health != domain.HealthOffline {
		t.Errorf("Health = %q, want offline", descs[1].Health)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	data := `- id: coach
  name: Coach
  url: http://coach:5020
  capabilities: [assignment-guidance]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	descs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(descs) != 1 || descs[0].ID != "coach" || descs[0].Capabilities[0] != "assignment-guidance" {
		t.Errorf("descs = %+v", descs)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{not json`), 0o600)
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected parse error")
	}

	nourl := filepath.Join(dir, "nourl.json")
	_ = os.WriteFile(nourl, []byte(`[{"id":"x"}]`), 0o600)
	if _, err := LoadFile(nourl); err == nil {
		t.Error("expected error for entry without url")
	}
}

func TestDescriptorsFromConfig(t *testing.T) {
	descs := DescriptorsFromConfig([]config.AgentEntry{
		{ID: "coach", Name: "Coach", URL: "http://coach/", Capabilities: []string{"assignment-guidance"}},
	})
	if len(descs) != 1 {
		t.Fatalf("len = %d", len(descs))
	}
	if descs[0].Address != "http://coach" || descs[0].Health != domain.HealthUnknown {
		t.Errorf("desc = %+v", descs[0])
	}
}
