// Package safety is the Safety Gate: pre-admission checks used by
// Admission. Every check here is pure or near-pure; none of
// them block on the Runner or the queue.
package safety

import "fmt"

const (
	MinTimeLimitMs = 100
	MaxTimeLimitMs = 60_000
	MinMemoryMB    = 32
	MaxMemoryMB    = 2048
)

// ValidateParams rejects unless 100<=timeLimitMs<=60000 and
// 32<=memoryLimitMB<=2048, returning every violation rather than the first.
func ValidateParams(timeLimitMs, memoryLimitMB int) []string {
	var violations []string
	if timeLimitMs < MinTimeLimitMs || timeLimitMs > MaxTimeLimitMs {
		violations = append(violations, fmt.Sprintf("time_limit_ms must be between %d and %d, got %d", MinTimeLimitMs, MaxTimeLimitMs, timeLimitMs))
	}
	if memoryLimitMB < MinMemoryMB || memoryLimitMB > MaxMemoryMB {
		violations = append(violations, fmt.Sprintf("memory_limit_mb must be between %d and %d, got %d", MinMemoryMB, MaxMemoryMB, memoryLimitMB))
	}
	return violations
}
