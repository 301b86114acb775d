package ports

import (
	"fmt"
	"strconv"
	"strings"
)

// names maps well-known service names to their TCP port numbers.
// This is the full set accepted on the command line next to plain numbers.
var names = map[string]int{
	"ssh":        22,
	"http":       80,
	"https":      443,
	"squid":      3128,
	"mysql":      3306,
	"postgresql": 5432,
	"rdp":        3389,
}

// Default is the port set used when no --port flag is given.
var Default = []int{22, 80, 443}

// Lookup resolves a single port token, either a service name from the
// recognized table or a numeric value in 1..65535.
func Lookup(token string) (int, error) {
	if port, ok := names[strings.ToLower(token)]; ok {
		return port, nil
	}

	port, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("unrecognized port name %q", token)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range (1-65535)", port)
	}
	return port, nil
}

// Parse resolves a list of port arguments. Each argument may itself be a
// comma-separated list. Duplicates are dropped, first occurrence wins, and
// the original order is preserved.
func Parse(args []string) ([]int, error) {
	if len(args) == 0 {
		return append([]int(nil), Default...), nil
	}

	var result []int
	seen := make(map[int]bool)
	for _, arg := range args {
		for _, token := range strings.Split(arg, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			port, err := Lookup(token)
			if err != nil {
				return nil, err
			}
			if seen[port] {
				continue
			}
			seen[port] = true
			result = append(result, port)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no usable ports given")
	}
	return result, nil
}
