package safety

import "regexp"

type LoopScanResult struct {
	Detected           bool
	PatternDescription string
}

var loopPatterns = map[string][]*regexp.Regexp{
	"python": {
		regexp.MustCompile(`while\s+True\s*:`),
		regexp.MustCompile(`while\s+1\s*:`),
		regexp.MustCompile(`for\s+\w+\s+in\s+iter\(\s*int\s*,\s*1\s*\)`),
	},
	"node": {
		regexp.MustCompile(`while\s*\(\s*true\s*\)`),
		regexp.MustCompile(`while\s*\(\s*1\s*\)`),
		regexp.MustCompile(`for\s*\(\s*;\s*;\s*\)`),
	},
	"gcc": {
		regexp.MustCompile(`while\s*\(\s*1\s*\)`),
		regexp.MustCompile(`while\s*\(\s*true\s*\)`),
		regexp.MustCompile(`for\s*\(\s*;\s*;\s*\)`),
	},
	"g++": {
		regexp.MustCompile(`while\s*\(\s*1\s*\)`),
		regexp.MustCompile(`while\s*\(\s*true\s*\)`),
		regexp.MustCompile(`for\s*\(\s*;\s*;\s*\)`),
	},
}

// ScanLoopPatterns is advisory only: a positive result is logged by the
// caller, never used to reject admission. The Runner's wall-clock timeout
// is the authoritative safeguard against infinite loops.
func ScanLoopPatterns(source, runtimeKey string) LoopScanResult {
	patterns, ok := loopPatterns[runtimeKey]
	if !ok {
		return LoopScanResult{}
	}
	for _, p := range patterns {
		if p.MatchString(source) {
			return LoopScanResult{Detected: true, PatternDescription: p.String()}
		}
	}
	return LoopScanResult{}
}
