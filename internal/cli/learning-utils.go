package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// formatJSON pretty-prints JSON for output.
func formatJSON(data interface{}) (string, error) {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func printJSON(w io.Writer, data interface{}) error {
	s, err := formatJSON(data)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateText shortens s to at most n runes, marking the cut with "...".
func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
