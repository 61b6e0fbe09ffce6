package hook

import (
	"sync"
	"testing"
)

func TestLookupExactMatch(t *testing.T) {
	reg, _ := NewRegistry([]Hook{
		{Path: "/deploy", Program: "echo"},
	})

	if _, ok := reg.Lookup("/deploy"); !ok {
		t.Fatal("expected /deploy to be registered")
	}

	// No prefix matching, no trailing-slash normalization.
	for _, path := range []string{"/deploy/", "/deploy/extra", "/dep", "/DEPLOY", ""} {
		if _, ok := reg.Lookup(path); ok {
			t.Errorf("Lookup(%q) matched, want miss", path)
		}
	}
}

func TestNewRegistryLastWins(t *testing.T) {
	reg, overwritten := NewRegistry([]Hook{
		{Path: "/deploy", Program: "first"},
		{Path: "/build", Program: "make"},
		{Path: "/deploy", Program: "second", Args: []string{"-v"}},
	})

	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
	h, ok := reg.Lookup("/deploy")
	if !ok {
		t.Fatal("expected /deploy to be registered")
	}
	if h.Program != "second" {
		t.Errorf("Program = %q, want the later entry to win", h.Program)
	}
	if len(overwritten) != 1 || overwritten[0] != "/deploy" {
		t.Errorf("overwritten = %v, want [/deploy]", overwritten)
	}
}

func TestAllSortedByPath(t *testing.T) {
	reg, _ := NewRegistry([]Hook{
		{Path: "/c", Program: "c"},
		{Path: "/a", Program: "a"},
		{Path: "/b", Program: "b"},
	})

	all := reg.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d hooks, want 3", len(all))
	}
	for i, want := range []string{"/a", "/b", "/c"} {
		if all[i].Path != want {
			t.Errorf("All()[%d].Path = %q, want %q", i, all[i].Path, want)
		}
	}
}

func TestCommandLine(t *testing.T) {
	h := &Hook{Program: "deploy.sh"}
	if got := h.CommandLine(); got != "deploy.sh" {
		t.Errorf("CommandLine() = %q", got)
	}

	h = &Hook{Program: "deploy.sh", Args: []string{"--env", "prod"}}
	if got := h.CommandLine(); got != "deploy.sh --env prod" {
		t.Errorf("CommandLine() = %q", got)
	}
}

func TestConcurrentLookups(t *testing.T) {
	t.Parallel()

	reg, _ := NewRegistry([]Hook{
		{Path: "/deploy", Program: "echo"},
		{Path: "/build", Program: "make"},
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				reg.Lookup("/deploy")
				reg.Lookup("/missing")
			}
		}()
	}
	wg.Wait()
}
