package pic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionOffset(t *testing.T) {
	assert := assert.New(t)
	xlate := RegionOffset(0x2000, 0x2400, 0x1000)

	assert.Equal(uint64(0x3000), xlate(0x2000))
	assert.Equal(uint64(0x33f8), xlate(0x23f8))
	assert.Equal(uint64(0x2400), xlate(0x2400), "end is exclusive")
	assert.Equal(uint64(0x1fff), xlate(0x1fff))
	assert.Equal(uint64(0x9000), xlate(0x9000), "unrelated regions do not move")
}

func TestFixedOffsetNegative(t *testing.T) {
	xlate := FixedOffset(-0x400)
	assert.Equal(t, uint64(0x0c00), xlate(0x1000))
}
