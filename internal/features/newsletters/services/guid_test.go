package services

import (
	"strings"
	"testing"
	"time"
)

func TestHashGUIDStable(t *testing.T) {
	published := time.Date(2024, 4, 5, 6, 7, 8, 0, time.UTC)

	first := HashGUID("Weekly issue", published)
	if first != HashGUID("Weekly issue", published) {
		t.Fatal("Expected identical input to hash identically")
	}
	if !strings.HasPrefix(first, "h_") {
		t.Errorf("Expected h_ prefix, got %q", first)
	}

	// Same instant in another zone is the same input
	paris := time.FixedZone("CET", 3600)
	if HashGUID("Weekly issue", published.In(paris)) != first {
		t.Error("Expected hash to depend on the instant, not the zone")
	}
}

func TestHashGUIDUsesBothInputs(t *testing.T) {
	published := time.Date(2024, 4, 5, 6, 7, 8, 0, time.UTC)
	base := HashGUID("Weekly issue", published)

	if HashGUID("Weekly issue #2", published) == base {
		t.Error("Expected title to influence the hash")
	}
	if HashGUID("Weekly issue", published.Add(time.Second)) == base {
		t.Error("Expected publish time to influence the hash")
	}
}
