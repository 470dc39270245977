package integration

import (
	"sync"
	"testing"

	"github.com/smpeer/smpeer/internal/orchestrator"
)

func TestEqualSecretsEndToEnd(t *testing.T) {
	network := NewNetwork(t)
	defer network.Close()

	alice := network.NewOrchestrator("hunter2", "alice")
	bob := network.NewOrchestrator("hunter2", "bob")

	finished := make(chan orchestrator.Event, 1)
	if err := bob.On(orchestrator.EventSessionFinished, func(ev orchestrator.Event) {
		finished <- ev
	}); err != nil {
		t.Fatalf("On failed: %v", err)
	}

	if err := alice.ConnectToPeerServer(network.Context()); err != nil {
		t.Fatalf("alice: ConnectToPeerServer failed: %v", err)
	}
	if err := bob.ConnectToPeerServer(network.Context()); err != nil {
		t.Fatalf("bob: ConnectToPeerServer failed: %v", err)
	}

	result, err := alice.RunSMP(network.Context(), "bob")
	if err != nil {
		t.Fatalf("RunSMP failed: %v", err)
	}
	if !result {
		t.Error("expected true for equal secrets")
	}

	select {
	case ev := <-finished:
		if !ev.Result {
			t.Error("responder: expected result true for equal secrets")
		}
		if ev.RemoteID != "alice" {
			t.Errorf("expected remote id 'alice', got %q", ev.RemoteID)
		}
	case <-network.Context().Done():
		t.Fatal("Timeout waiting for session-finished event")
	}
}

func TestUnequalSecretsEndToEnd(t *testing.T) {
	network := NewNetwork(t)
	defer network.Close()

	alice := network.NewOrchestrator("hunter2", "alice")
	bob := network.NewOrchestrator("hunter3", "bob")

	if err := alice.ConnectToPeerServer(network.Context()); err != nil {
		t.Fatalf("alice: ConnectToPeerServer failed: %v", err)
	}
	if err := bob.ConnectToPeerServer(network.Context()); err != nil {
		t.Fatalf("bob: ConnectToPeerServer failed: %v", err)
	}

	result, err := alice.RunSMP(network.Context(), "bob")
	if err != nil {
		t.Fatalf("RunSMP failed: %v", err)
	}
	if result {
		t.Error("expected false for unequal secrets")
	}
}

func TestRepeatSessionsSamePair(t *testing.T) {
	network := NewNetwork(t)
	defer network.Close()

	alice := network.NewOrchestrator("hunter2", "alice")
	bob := network.NewOrchestrator("hunter2", "bob")

	if err := alice.ConnectToPeerServer(network.Context()); err != nil {
		t.Fatalf("alice: ConnectToPeerServer failed: %v", err)
	}
	if err := bob.ConnectToPeerServer(network.Context()); err != nil {
		t.Fatalf("bob: ConnectToPeerServer failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		result, err := alice.RunSMP(network.Context(), "bob")
		if err != nil {
			t.Fatalf("RunSMP %d failed: %v", i, err)
		}
		if !result {
			t.Errorf("RunSMP %d: expected true for equal secrets", i)
		}
	}
}

func TestConcurrentSessions(t *testing.T) {
	network := NewNetwork(t)
	defer network.Close()

	hub := network.NewOrchestrator("shared", "hub")
	matching := network.NewOrchestrator("shared", "matching")
	differing := network.NewOrchestrator("other", "differing")

	for _, o := range []*orchestrator.Orchestrator{hub, matching, differing} {
		if err := o.ConnectToPeerServer(network.Context()); err != nil {
			t.Fatalf("ConnectToPeerServer failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	results := make(map[string]bool, 2)
	var mu sync.Mutex

	for name, o := range map[string]*orchestrator.Orchestrator{
		"matching":  matching,
		"differing": differing,
	} {
		wg.Add(1)
		go func(name string, o *orchestrator.Orchestrator) {
			defer wg.Done()
			result, err := o.RunSMP(network.Context(), "hub")
			if err != nil {
				t.Errorf("%s: RunSMP failed: %v", name, err)
				return
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, o)
	}
	wg.Wait()

	if !results["matching"] {
		t.Error("expected true for the matching peer")
	}
	if results["differing"] {
		t.Error("expected false for the differing peer")
	}
}
