// Package parser parses the page selector mini-language used by page operations.
//
// A selector is a comma separated list of page numbers and inclusive ranges,
// for example "1-3,5,7-8".
package parser

import (
	"sort"
	"strconv"
	"strings"

	"pdf-editor/internal/logger"
	"pdf-editor/internal/types"
)

// ParseRanges returns the sorted, deduplicated page numbers named by spec,
// clamped to [1, maxPages]. Malformed tokens are skipped. Reversed ranges
// such as "5-3" are read as "3-5".
func ParseRanges(spec string, maxPages int) []int {
	pages := []int{}
	if maxPages < 1 {
		return pages
	}

	seen := make(map[int]bool)
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		start, end, ok := parseToken(token)
		if !ok {
			logger.Debug("skipping malformed page token", logger.String("token", token))
			continue
		}
		if start < 1 {
			start = 1
		}
		if end > maxPages {
			end = maxPages
		}
		for p := start; p <= end; p++ {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}

	sort.Ints(pages)
	return pages
}

// ParseRangesStrict is ParseRanges for callers that need at least one page.
// An empty result is reported as a validation error.
func ParseRangesStrict(spec string, maxPages int) ([]int, error) {
	pages := ParseRanges(spec, maxPages)
	if len(pages) == 0 {
		logger.Warn("page selection is empty", logger.String("spec", spec), logger.Int("maxPages", maxPages))
		return nil, types.NewAppErrorWithDetails(types.ErrValidation, "no pages selected", spec, nil)
	}
	return pages, nil
}

// ParseOrder expands spec into a page sequence keeping the written order,
// e.g. "3,1-2" is [3 1 2]. Unlike ParseRanges every token must be valid
// and inside [1, maxPages].
func ParseOrder(spec string, maxPages int) ([]int, error) {
	var order []int
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		start, end, ok := parseToken(token)
		if !ok || start < 1 || end > maxPages {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid page in order", token, nil)
		}
		step := 1
		if rangeReversed(token) {
			start, end, step = end, start, -1
		}
		for p := start; ; p += step {
			order = append(order, p)
			if p == end {
				break
			}
		}
	}
	if len(order) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "empty page order", nil)
	}
	return order, nil
}

// parseToken reads "n" or "a-b" and returns the range with start <= end.
// Numbers are plain digits; signs make the token malformed.
func parseToken(token string) (start, end int, ok bool) {
	lo, hi, isRange := strings.Cut(token, "-")
	if !isRange {
		n, ok := pageNumber(token)
		return n, n, ok
	}

	a, ok := pageNumber(lo)
	if !ok {
		return 0, 0, false
	}
	b, ok := pageNumber(hi)
	if !ok {
		return 0, 0, false
	}
	if a > b {
		a, b = b, a
	}
	return a, b, true
}

func pageNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func rangeReversed(token string) bool {
	lo, hi, isRange := strings.Cut(token, "-")
	if !isRange {
		return false
	}
	a, _ := strconv.Atoi(strings.TrimSpace(lo))
	b, _ := strconv.Atoi(strings.TrimSpace(hi))
	return a > b
}
