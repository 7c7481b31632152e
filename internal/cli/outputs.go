package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/andywolf/delimreport/internal/reporter"
)

// stepOutputs returns the GitHub Actions step outputs for result, in a stable
// order. Empty values are omitted.
func stepOutputs(result *reporter.Result) [][2]string {
	outputs := [][2]string{{"action", string(result.Action)}}
	if result.URL != "" {
		outputs = append(outputs, [2]string{"url", result.URL})
	}
	if result.IssueNumber > 0 {
		outputs = append(outputs, [2]string{"issue-number", strconv.Itoa(result.IssueNumber)})
	}
	if result.DryRun {
		outputs = append(outputs, [2]string{"dry-run", "true"})
	}
	return outputs
}

// writeOutputs appends result to the file named by GITHUB_OUTPUT (or
// --output-file) as name=value lines.
func writeOutputs(path string, result *reporter.Result) error {
	var b strings.Builder
	for _, kv := range stepOutputs(result) {
		fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	return nil
}
