package lifecycle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PromptChoice represents user's choice from interactive prompt
type PromptChoice int

const (
	// ChoiceShowInstall shows setup instructions
	ChoiceShowInstall PromptChoice = iota + 1
	// ChoiceOfflineMode uses BM25-only search
	ChoiceOfflineMode
	// ChoiceCancel cancels the operation
	ChoiceCancel
)

// IsTTY returns true if stdin is a terminal
func IsTTY() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	// Check if stdin is a character device (terminal)
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// PromptNoEmbedder shows an interactive prompt when the configured embedding
// provider is not ready (missing API key, unreachable server). reason
// explains why, e.g. "JINA_API_KEY is not set".
func PromptNoEmbedder(w io.Writer, r io.Reader, reason string) (PromptChoice, error) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Semantic search is unavailable: %s\n", reason)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  [1] Show setup instructions (then retry)")
	fmt.Fprintln(w, "  [2] Use offline mode (BM25-only, no semantic search)")
	fmt.Fprintln(w, "  [3] Cancel")
	fmt.Fprintln(w, "")
	fmt.Fprint(w, "Choice [1]: ")

	reader := bufio.NewReader(r)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ChoiceCancel, fmt.Errorf("failed to read input: %w", err)
	}

	input = strings.TrimSpace(input)

	// Default to choice 1 if empty
	if input == "" {
		input = "1"
	}

	switch input {
	case "1":
		return ChoiceShowInstall, nil
	case "2":
		return ChoiceOfflineMode, nil
	case "3":
		return ChoiceCancel, nil
	default:
		return ChoiceCancel, fmt.Errorf("invalid choice: %s", input)
	}
}

// ShowSetupInstructions displays provider-specific setup instructions.
func ShowSetupInstructions(w io.Writer, provider string) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, SetupInstructions(provider))
	fmt.Fprintln(w, "")
}
