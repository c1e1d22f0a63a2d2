package util

import (
	"os"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
)

func TestLogSuccessUsesSuccessPrefix(t *testing.T) {
	var buf strings.Builder
	pterm.SetDefaultOutput(&buf)
	defer pterm.SetDefaultOutput(os.Stderr)

	LogSuccess("room %s ready", "1234")

	out := buf.String()
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "room 1234 ready")
}
