package geometry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// cubeTriangles returns an outward-facing cube [0,s]^3 split into 12 triangles
func cubeTriangles(s float64) []triangle {
	return []triangle{
		// z = 0
		{{0, 0, 0}, {0, s, 0}, {s, s, 0}},
		{{0, 0, 0}, {s, s, 0}, {s, 0, 0}},
		// z = s
		{{0, 0, s}, {s, 0, s}, {s, s, s}},
		{{0, 0, s}, {s, s, s}, {0, s, s}},
		// x = 0
		{{0, 0, 0}, {0, 0, s}, {0, s, s}},
		{{0, 0, 0}, {0, s, s}, {0, s, 0}},
		// x = s
		{{s, 0, 0}, {s, s, 0}, {s, s, s}},
		{{s, 0, 0}, {s, s, s}, {s, 0, s}},
		// y = 0
		{{0, 0, 0}, {s, 0, 0}, {s, 0, s}},
		{{0, 0, 0}, {s, 0, s}, {0, 0, s}},
		// y = s
		{{0, s, 0}, {0, s, s}, {s, s, s}},
		{{0, s, 0}, {s, s, s}, {s, s, 0}},
	}
}

func translate(tris []triangle, d vec3) []triangle {
	out := make([]triangle, len(tris))
	for i, t := range tris {
		for v := 0; v < 3; v++ {
			for axis := 0; axis < 3; axis++ {
				out[i][v][axis] = t[v][axis] + d[axis]
			}
		}
	}
	return out
}

func binarySTL(tris []triangle) []byte {
	var buf bytes.Buffer
	header := make([]byte, stlHeaderSize)
	copy(header, "solid exported by a binary writer")
	buf.Write(header)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, t := range tris {
		buf.Write(make([]byte, 12))
		for _, v := range t {
			for _, c := range v {
				_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(float32(c)))
			}
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func asciiSTL(tris []triangle) []byte {
	var b strings.Builder
	b.WriteString("solid part\n")
	for _, t := range tris {
		b.WriteString("  facet normal 0 0 0\n    outer loop\n")
		for _, v := range t {
			fmt.Fprintf(&b, "      vertex %g %g %g\n", v[0], v[1], v[2])
		}
		b.WriteString("    endloop\n  endfacet\n")
	}
	b.WriteString("endsolid part\n")
	return []byte(b.String())
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}
