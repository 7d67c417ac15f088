package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := NewInfo(11)
	assert.Equal(t, Version, info.Lightnode)
	assert.EqualValues(t, 11, info.BlockProtocol)
	assert.Equal(t, "lightnode "+Version+" (block protocol 11)", info.String())
}
