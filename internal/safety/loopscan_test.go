package safety

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanLoopPatternsPython(t *testing.T) {
	r := ScanLoopPatterns("while True:\n    pass\n", "python")
	require.True(t, r.Detected)

	r = ScanLoopPatterns("for i in range(10):\n    pass\n", "python")
	require.False(t, r.Detected)
}

func TestScanLoopPatternsNode(t *testing.T) {
	r := ScanLoopPatterns("while (true) { console.log(1) }", "node")
	require.True(t, r.Detected)
}

func TestScanLoopPatternsCAndCpp(t *testing.T) {
	require.True(t, ScanLoopPatterns("for(;;) { }", "gcc").Detected)
	require.True(t, ScanLoopPatterns("while(1) { }", "g++").Detected)
}

func TestScanLoopPatternsUnknownRuntime(t *testing.T) {
	r := ScanLoopPatterns("while(true){}", "ruby")
	require.False(t, r.Detected)
}
