package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestSplitIDs(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "comma separated", input: "1,2,3", want: []string{"1", "2", "3"}},
		{name: "newline separated", input: "1\n2\r\n3\n", want: []string{"1", "2", "3"}},
		{name: "mixed with blanks", input: " 1 ,,2\n\n 3,", want: []string{"1", "2", "3"}},
		{name: "empty", input: "", want: []string{}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitIDs(tt.input)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("SplitIDs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZeroPad(t *testing.T) {
	tc := []struct {
		n     int
		width int
		want  string
	}{
		{1, 4, "0001"},
		{42, 4, "0042"},
		{1000, 4, "1000"},
		{12345, 4, "12345"},
	}

	for _, tt := range tc {
		if got := ZeroPad(tt.n, tt.width); got != tt.want {
			t.Errorf("ZeroPad(%d, %d) = %s, want %s", tt.n, tt.width, got, tt.want)
		}
	}
}

func TestFilterLineBreak(t *testing.T) {
	if got := FilterLineBreak("a\r\nb\nc", " "); got != "a b c" {
		t.Errorf("FilterLineBreak() = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("debug") != log.DebugLevel {
		t.Error("expected debug level")
	}
	if ParseLogLevel("WARN") != log.WarnLevel {
		t.Error("expected warn level")
	}
	if ParseLogLevel("") != log.InfoLevel || ParseLogLevel("loud") != log.InfoLevel {
		t.Error("expected info fallback")
	}
}

func TestFiles(t *testing.T) {
	t.Run("WriteFileAtomic and ReadJSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "doc.json")
		if err := WriteFileAtomic(path, []byte(`{"count":3}`), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("temp file should be renamed away")
		}

		var v struct {
			Count int `json:"count"`
		}
		if err := ReadJSON(path, &v); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if v.Count != 3 {
			t.Errorf("expected count 3, got %d", v.Count)
		}
	})

	t.Run("ReadIDsFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ids.txt")
		os.WriteFile(path, []byte("a1\na2,a3\n"), 0644)

		ids, err := ReadIDsFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 3 || ids[2] != "a3" {
			t.Errorf("unexpected ids: %v", ids)
		}
	})

	t.Run("OpenRunLog", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "log")
		f, err := OpenRunLog(dir, "event", "623", "all", "true")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer f.Close()

		name := filepath.Base(f.Name())
		if !strings.HasPrefix(name, "event-623-all-true-") || !strings.HasSuffix(name, ".log") {
			t.Errorf("unexpected log file name %s", name)
		}
	})
}
