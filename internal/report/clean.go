package report

import (
	"strings"

	"github.com/newhook/cilog/internal/travis"
)

// CleanLines strips colour sequences and collapses carriage-return progress
// output to its final state.
//
//	"\x1b[31mFAIL\x1b[0m: test_x" -> "FAIL: test_x"
//	"10%\r50%\r100%"               -> "100%"
func CleanLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if j := strings.LastIndexByte(line, '\r'); j >= 0 {
			line = line[j+1:]
		}
		out[i] = strings.TrimRight(travis.StripANSI(line), " \t")
	}
	return out
}

// around returns up to n lines either side of index.
func around(lines []string, index, n int) []string {
	start := max(0, index-n)
	end := min(len(lines), index+n)
	return append([]string(nil), lines[start:end]...)
}
