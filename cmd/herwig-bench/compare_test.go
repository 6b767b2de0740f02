package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareCmd(t *testing.T) {
	baseline := writeReport(t, "base.csv", 1)
	current := writeReport(t, "curr.csv", 3)

	out, err := executeCommand(rootCmd, "compare", baseline, current)
	require.NoError(t, err)
	assert.Contains(t, out, "duration +100.00%")

	_, err = executeCommand(rootCmd, "compare", "--threshold", "50", baseline, current)
	assert.ErrorContains(t, err, "regression above 50.0%")

	_, err = executeCommand(rootCmd, "compare", "--threshold", "50", current, baseline)
	assert.NoError(t, err)
}
