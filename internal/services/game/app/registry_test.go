package app

import (
	"testing"
	"time"
)

func TestRegistryScheduleReplacesNamedTask(t *testing.T) {
	bank := &timerBank{}
	registry := newSessionRegistry(bank.factory)

	var fired []string
	registry.schedule("sess1", "settle", time.Second, func() { fired = append(fired, "first") })
	registry.schedule("sess1", "settle", time.Second, func() { fired = append(fired, "second") })

	bank.fireAll(10)
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("fired = %v, want only the replacement", fired)
	}
}

func TestRegistryCancel(t *testing.T) {
	bank := &timerBank{}
	registry := newSessionRegistry(bank.factory)

	fired := false
	registry.schedule("sess1", "settle", time.Second, func() { fired = true })
	registry.cancel("sess1", "settle")
	registry.cancel("sess1", "missing")
	registry.cancel("other", "settle")

	bank.fireAll(10)
	if fired {
		t.Fatal("cancelled task must not fire")
	}
}

func TestRegistryRemoveStopsAllTasks(t *testing.T) {
	bank := &timerBank{}
	registry := newSessionRegistry(bank.factory)

	fired := 0
	registry.schedule("sess1", "a", time.Second, func() { fired++ })
	registry.schedule("sess1", "b", time.Second, func() { fired++ })
	registry.schedule("sess2", "a", time.Second, func() { fired++ })
	registry.remove("sess1")

	bank.fireAll(10)
	if fired != 1 {
		t.Fatalf("fired = %d, want only the other session's task", fired)
	}
}

func TestRegistryEntryIsStablePerSession(t *testing.T) {
	registry := newSessionRegistry(nil)
	a := registry.entry("sess1")
	b := registry.entry("sess1")
	if a != b {
		t.Fatal("expected the same entry for one session")
	}
	if registry.entry("sess2") == a {
		t.Fatal("expected distinct entries per session")
	}
}
