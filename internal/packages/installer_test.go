package packages

import (
	"context"
	"testing"
	"time"

	"github.com/iago/latex-orchestrator/internal/process"
)

func TestAvailabilityCacheTTLExpires(t *testing.T) {
	c := NewInMemoryCache(20*time.Millisecond, 10)
	c.Set("amsmath", true)
	if available, found := c.Get("amsmath"); !found || !available {
		t.Fatalf("expected cached hit, got found=%v available=%v", found, available)
	}
	time.Sleep(30 * time.Millisecond)
	if _, found := c.Get("amsmath"); found {
		t.Fatal("expected cache entry to expire")
	}
}

func TestAvailabilityCacheEvictsOldestOverBound(t *testing.T) {
	c := NewInMemoryCache(time.Minute, 2)
	c.Set("a", true)
	time.Sleep(time.Millisecond)
	c.Set("b", true)
	time.Sleep(time.Millisecond)
	c.Set("c", true)

	if _, found := c.Get("a"); found {
		t.Fatal("expected oldest entry evicted")
	}
	if _, found := c.Get("c"); !found {
		t.Fatal("expected newest entry retained")
	}
}

func TestInstallerNeverFailsWithoutTool(t *testing.T) {
	installer := NewInstaller(process.NewRunner(0, 0, "definitely-not-a-real-installer-binary"), "definitely-not-a-real-installer-binary", NewInMemoryCache(time.Minute, 100))
	result := installer.EnsureAvailable(context.Background(), []string{"amsmath"})
	if result.ToolAvailable {
		t.Fatal("expected tool unavailable")
	}
	if len(result.Results) != 1 || result.Results[0].Installed {
		t.Fatalf("expected one not-installed result, got %+v", result.Results)
	}
}
