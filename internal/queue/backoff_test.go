package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelayProducesDocumentedDefaults(t *testing.T) {
	require.Equal(t, 2*time.Second, backoffDelay(2000, 1))
	require.Equal(t, 4*time.Second, backoffDelay(2000, 2))
	require.Equal(t, 8*time.Second, backoffDelay(2000, 3))
}

func TestBackoffDelayZeroBaseFallsBackToDefault(t *testing.T) {
	require.Equal(t, 2*time.Second, backoffDelay(0, 1))
}
