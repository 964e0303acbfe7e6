package wsi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampSize(t *testing.T) {
	assert.Equal(t, uint32(0), clampSize(-1))
	assert.Equal(t, uint32(0), clampSize(0))
	assert.Equal(t, uint32(640), clampSize(640))
}
