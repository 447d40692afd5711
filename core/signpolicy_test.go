package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUseRawSignatureDefaults(t *testing.T) {
	var policy SignaturePolicy

	assert.True(t, policy.UseRawSignature(324, ""))
	assert.True(t, policy.UseRawSignature(300, ""))
	assert.True(t, policy.UseRawSignature(531050104, ""))
	assert.False(t, policy.UseRawSignature(1, ""))
	assert.False(t, policy.UseRawSignature(137, "UPGRADEABLE_V5"))
}

func TestUseRawSignatureExtensions(t *testing.T) {
	policy := SignaturePolicy{
		RawSignChainIDs:            []uint64{4242},
		RawSignImplementationTypes: []string{"ZKSYNC_UPGRADEABLE_V2"},
	}

	assert.True(t, policy.UseRawSignature(4242, ""))
	assert.True(t, policy.UseRawSignature(1, "ZKSYNC_UPGRADEABLE_V2"))
	assert.False(t, policy.UseRawSignature(1, "UPGRADEABLE_V5"))

	// Extensions never shrink the built-in set.
	assert.True(t, policy.UseRawSignature(324, ""))
}
