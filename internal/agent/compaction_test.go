package agent

import (
	"testing"

	"github.com/nextlevelbuilder/vargos/internal/store"
)

func TestEstimateTokensIsPositiveForNonEmptyText(t *testing.T) {
	if n := EstimateTokens("hello, world! this is a test sentence."); n <= 0 {
		t.Fatalf("EstimateTokens() = %d, want > 0", n)
	}
}

func TestShouldCompactUnderBudget(t *testing.T) {
	history := []store.Message{{Content: "hi"}, {Content: "how are you"}}
	if ShouldCompact(history, 100000) {
		t.Fatal("ShouldCompact reported true for a tiny history under a huge budget")
	}
}

func TestShouldCompactOverBudget(t *testing.T) {
	history := []store.Message{{Content: "hi"}, {Content: "how are you"}}
	if !ShouldCompact(history, 1) {
		t.Fatal("ShouldCompact reported false despite a budget of 1 token")
	}
}
