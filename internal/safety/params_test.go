package safety

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateParamsOK(t *testing.T) {
	require.Empty(t, ValidateParams(5000, 256))
	require.Empty(t, ValidateParams(MinTimeLimitMs, MinMemoryMB))
	require.Empty(t, ValidateParams(MaxTimeLimitMs, MaxMemoryMB))
}

func TestValidateParamsReportsAllViolations(t *testing.T) {
	violations := ValidateParams(50, 4096)
	require.Len(t, violations, 2)
}

func TestValidateParamsBelowMinTimeLimit(t *testing.T) {
	violations := ValidateParams(50, 256)
	require.Len(t, violations, 1)
}
