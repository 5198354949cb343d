package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic writes data next to path and renames it into place, so
// readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// FilterLineBreak replaces CR/LF sequences in s with instead.
func FilterLineBreak(s, instead string) string {
	s = strings.ReplaceAll(s, "\r\n", instead)
	return strings.ReplaceAll(s, "\n", instead)
}

// SplitIDs parses a comma and/or newline separated id list, dropping blanks.
func SplitIDs(s string) []string {
	fields := strings.Split(FilterLineBreak(s, ","), ",")
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			ids = append(ids, f)
		}
	}
	return ids
}

// ReadIDsFile loads customer ids from a local file.
func ReadIDsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ids file: %w", err)
	}
	return SplitIDs(string(data)), nil
}

// ZeroPad left-pads n with zeros to width digits. Wider numbers are returned as-is.
func ZeroPad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
