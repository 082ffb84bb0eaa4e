package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstSkipsBlankValues(t *testing.T) {
	t.Setenv("FARMOPS_TEST_A", "  ")
	t.Setenv("FARMOPS_TEST_B", " console ")

	assert.Equal(t, "console", First("FARMOPS_TEST_MISSING", "FARMOPS_TEST_A", "FARMOPS_TEST_B"))
	assert.Empty(t, First("FARMOPS_TEST_A"))
	assert.Equal(t, "json", Get("FARMOPS_TEST_A", "json"))
	assert.Equal(t, "console", Get("FARMOPS_TEST_B", "json"))
}
