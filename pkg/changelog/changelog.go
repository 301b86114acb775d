package changelog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudseal/secallow/pkg/resolver"
	"github.com/rs/zerolog/log"
)

// timeLayout is ISO-8601 with a numeric zone offset.
const timeLayout = "2006-01-02T15:04:05-07:00"

var header = []string{
	"# secallow address change log",
	"# timestamp: source: address",
}

// HasChanged reports whether candidate differs from the address recorded by
// the last entry of logFile. With no log file configured, or none written
// yet, there is no baseline and every address counts as changed.
func HasChanged(logFile, candidate string) bool {
	if logFile == "" {
		return true
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		return true
	}

	last, ok := lastAddress(string(data))
	if !ok {
		return true
	}
	return last != candidate
}

// lastAddress extracts the address field of the final entry line, skipping
// header comments and anything else that does not look like an entry.
func lastAddress(content string) (string, bool) {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ": ")
		if len(fields) < 3 {
			continue
		}
		last = fields[len(fields)-1]
	}
	return last, last != ""
}

// Record writes one entry for address to logFile. When no log file is
// configured this is a no-op. Without keepHistory the file is rewritten so
// it holds the header and the latest entry only.
func Record(logFile, address string, source resolver.Source, keepHistory bool) error {
	if logFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	entry := fmt.Sprintf("%s: %s: %s\n", time.Now().Format(timeLayout), source, address)

	_, statErr := os.Stat(logFile)
	appendEntry := statErr == nil && keepHistory

	if appendEntry {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open change log: %w", err)
		}
		defer f.Close()

		if _, err := f.WriteString(entry); err != nil {
			return fmt.Errorf("failed to append to change log: %w", err)
		}
	} else {
		content := strings.Join(header, "\n") + "\n" + entry
		if err := os.WriteFile(logFile, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write change log: %w", err)
		}
	}

	log.Debug().Msgf("Recorded %s address %s in %s", source, address, logFile)
	return nil
}
