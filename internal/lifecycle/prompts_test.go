package lifecycle

import (
	"bytes"
	"strings"
	"testing"
)

// ============================================================================
// PromptNoEmbedder Tests
// ============================================================================

func TestPromptNoEmbedder_Choice1(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("1\n")

	choice, err := PromptNoEmbedder(&out, in, "JINA_API_KEY is not set")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice != ChoiceShowInstall {
		t.Errorf("expected ChoiceShowInstall, got %d", choice)
	}
}

func TestPromptNoEmbedder_Choice2(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("2\n")

	choice, err := PromptNoEmbedder(&out, in, "JINA_API_KEY is not set")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice != ChoiceOfflineMode {
		t.Errorf("expected ChoiceOfflineMode, got %d", choice)
	}
}

func TestPromptNoEmbedder_Choice3(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("3\n")

	choice, err := PromptNoEmbedder(&out, in, "JINA_API_KEY is not set")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice != ChoiceCancel {
		t.Errorf("expected ChoiceCancel, got %d", choice)
	}
}

func TestPromptNoEmbedder_DefaultChoice(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("\n") // Empty input = default

	choice, err := PromptNoEmbedder(&out, in, "JINA_API_KEY is not set")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice != ChoiceShowInstall {
		t.Errorf("expected ChoiceShowInstall (default), got %d", choice)
	}
}

func TestPromptNoEmbedder_InvalidChoice(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("invalid\n")

	choice, err := PromptNoEmbedder(&out, in, "JINA_API_KEY is not set")
	if err == nil {
		t.Fatal("expected error for invalid choice")
	}
	if choice != ChoiceCancel {
		t.Errorf("expected ChoiceCancel on error, got %d", choice)
	}
}

func TestPromptNoEmbedder_OutputFormat(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("1\n")

	_, err := PromptNoEmbedder(&out, in, "JINA_API_KEY is not set")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "JINA_API_KEY is not set") {
		t.Error("expected prompt to contain the readiness reason")
	}
	if !strings.Contains(output, "[1]") {
		t.Error("expected prompt to contain choice [1]")
	}
	if !strings.Contains(output, "[2]") {
		t.Error("expected prompt to contain choice [2]")
	}
	if !strings.Contains(output, "[3]") {
		t.Error("expected prompt to contain choice [3]")
	}
}

// ============================================================================
// ShowSetupInstructions Tests
// ============================================================================

func TestShowSetupInstructions_TEI(t *testing.T) {
	var out bytes.Buffer
	ShowSetupInstructions(&out, "tei")

	output := out.String()
	if output == "" {
		t.Error("expected non-empty output")
	}
	if !strings.Contains(output, "text-embeddings-inference") {
		t.Error("expected output to mention text-embeddings-inference")
	}
}

func TestShowSetupInstructions_Jina(t *testing.T) {
	var out bytes.Buffer
	ShowSetupInstructions(&out, "jina")

	output := out.String()
	if !strings.Contains(output, "JINA_API_KEY") {
		t.Error("expected output to mention JINA_API_KEY")
	}
}

// ============================================================================
// PromptChoice Constants Tests
// ============================================================================

func TestPromptChoiceValues(t *testing.T) {
	// Ensure choices are distinct
	choices := []PromptChoice{ChoiceShowInstall, ChoiceOfflineMode, ChoiceCancel}
	seen := make(map[PromptChoice]bool)

	for _, c := range choices {
		if seen[c] {
			t.Errorf("duplicate choice value: %d", c)
		}
		seen[c] = true
	}

	// Ensure they start at 1 (not 0) for better UX
	if ChoiceShowInstall != 1 {
		t.Errorf("expected ChoiceShowInstall to be 1, got %d", ChoiceShowInstall)
	}
}
