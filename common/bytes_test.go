package common

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32{}))

	type vertex struct {
		Position [2]float32
		ID       uint32
	}
	b := SliceToBytes([]vertex{{Position: [2]float32{1.5, -2}, ID: 7}, {ID: 9}})
	assert.Len(t, b, 24)
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.NativeEndian.Uint32(b[0:])))
	assert.Equal(t, float32(-2), math.Float32frombits(binary.NativeEndian.Uint32(b[4:])))
	assert.Equal(t, uint32(7), binary.NativeEndian.Uint32(b[8:]))
	assert.Equal(t, uint32(9), binary.NativeEndian.Uint32(b[20:]))
}
