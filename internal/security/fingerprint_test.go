package security

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceFingerprint(t *testing.T) {
	fp := DeviceFingerprint()
	require.NotNil(t, fp)

	assert.Regexp(t, regexp.MustCompile(`^HW-[0-9A-F]{16}$`), fp.HardwareID)
	assert.NotEmpty(t, fp.Hostname)
	assert.NotEmpty(t, fp.OS)
}

func TestDeviceFingerprint_IsStable(t *testing.T) {
	assert.Equal(t, DeviceFingerprint().HardwareID, DeviceFingerprint().HardwareID)
	assert.Equal(t, computeFingerprint().HardwareID, computeFingerprint().HardwareID)
}
