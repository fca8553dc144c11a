package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

func Float32ArrayToByteArray(fa []float32) []byte {
	buf := bytes.Buffer{}
	_ = binary.Write(&buf, binary.LittleEndian, fa)
	return buf.Bytes()
}

func ByteArrayToFloat32Array(b []byte) (result []float32, err error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte array length %d is not a multiple of 4", len(b))
	}
	result = make([]float32, 0, len(b)/4)
	for i := 0; i < len(b); i += 4 {
		result = append(result, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
	}
	return
}

func StringToUInt64(in string) uint64 {
	i, _ := strconv.ParseUint(in, 10, 64)
	return i
}
