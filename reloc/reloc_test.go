package reloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableCodec(t *testing.T) {
	assert := assert.New(t)
	table := Table{
		{LinkAddr: 0x2008},
		{LinkAddr: 0x2010},
		{LinkAddr: 0x23f8},
	}
	b := EncodeTable(table)
	assert.Equal(table, DecodeTable(b))
}

func TestTableCodecEmpty(t *testing.T) {
	b := EncodeTable(Table{})
	assert.Len(t, DecodeTable(b), 0)
}

func TestSectionOrder(t *testing.T) {
	assert := assert.New(t)
	l := &Layout{
		ROData: Section{Src: 0x1000, Dst: 0x2000, Length: 0x400},
		Data:   Section{Src: 0x2400, Dst: 0x8000, Length: 0x100, Volatile: true},
		BssDst: 0x8100,
		BssLen: 0x80,
	}
	secs := l.Sections()
	assert.Equal(l.ROData, secs[0], "persisted section is processed first")
	assert.Equal(l.Data, secs[1])
	assert.True(secs[2].Volatile)
	assert.Equal(uint64(0x80), secs[2].Length)
}
