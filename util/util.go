package util

import (
	"log"

	"github.com/xyproto/env/v2"
)

var Debug = uint64(env.Int("PICBOOT_DEBUG", 1))

func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		log.Printf(format, a...)
	}
}

func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

func Min(n uint64, m uint64) uint64 {
	if n < m {
		return n
	} else {
		return m
	}
}

func SumOverflows(x uint64, y uint64) bool {
	return x+y < x
}

func CloneByteSlice(s []byte) []byte {
	b := make([]byte, len(s))
	copy(b, s)
	return b
}
