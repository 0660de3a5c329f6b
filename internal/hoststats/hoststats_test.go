package hoststats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRead_ReturnsNonNegativeValues(t *testing.T) {
	s := Read()
	assert.GreaterOrEqual(t, s.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, s.MemPercent, 0.0)
}
