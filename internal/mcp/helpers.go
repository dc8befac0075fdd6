package mcpserver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ballpark/internal/domain"
)

// splitList splits a comma or whitespace separated argument.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

func parseIdentifiers(s string) ([]domain.Identifier, error) {
	var ids []domain.Identifier
	for _, f := range splitList(s) {
		if _, err := strconv.ParseInt(f, 10, 64); err != nil {
			return nil, fmt.Errorf("game id %q is not a number", f)
		}
		ids = append(ids, domain.Identifier(f))
	}
	return ids, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range splitList(s) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("team id %q is not a number", f)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD: %w", name, err)
	}
	return d, nil
}
