package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextID_Unique(t *testing.T) {
	seen := make(map[int64]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := NextID()
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestGenerateReferenceNo_Prefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateReferenceNo("in"), "IN"))
	assert.True(t, strings.HasPrefix(GenerateReferenceNo("out"), "OUT"))
	assert.True(t, strings.HasPrefix(GenerateReferenceNo("transfer"), "TRF"))
	assert.True(t, strings.HasPrefix(GenerateReferenceNo("other"), "MVT"))
	assert.Len(t, GenerateReferenceNo("in"), len("IN")+14+8)
}
