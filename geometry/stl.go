package geometry

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	stlHeaderSize = 80
	stlCountSize  = 4
	stlRecordSize = 50

	stlEngine = "mesh-stl"
)

type vec3 [3]float64

type triangle [3]vec3

// stlHandler parses binary and ASCII STL meshes
type stlHandler struct{}

func (stlHandler) Format() Format { return FormatSTL }

func (h stlHandler) Extract(data []byte) (*Metrics, error) {
	tris, err := parseSTL(data)
	if err != nil {
		return nil, err
	}
	if len(tris) == 0 {
		return nil, newError(KindIncompleteGeometry, "STL mesh contains no triangles; volume, area and bounding box are unavailable.")
	}
	return measureMesh(tris), nil
}

func parseSTL(data []byte) ([]triangle, error) {
	if isBinarySTL(data) {
		return parseBinarySTL(data)
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("solid")) && isText(trimmed) {
		return parseASCIISTL(trimmed)
	}
	return nil, newError(KindCorruptFile, "STL file is truncated or malformed.")
}

// isText rejects control bytes other than whitespace. A binary file whose
// header starts with "solid" but whose size disagrees with its triangle count
// lands here and must read as corrupt rather than as an empty ASCII mesh.
func isText(data []byte) bool {
	for _, b := range data {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\v' && b != '\f' {
			return false
		}
		if b == 0x7f {
			return false
		}
	}
	return true
}

// isBinarySTL trusts the declared triangle count: ASCII files frequently
// start with "solid" but binary exporters write that into the header too.
func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+stlCountSize {
		return false
	}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize : stlHeaderSize+stlCountSize])
	return int64(len(data)) == int64(stlHeaderSize+stlCountSize)+int64(count)*stlRecordSize
}

func parseBinarySTL(data []byte) ([]triangle, error) {
	count := int(binary.LittleEndian.Uint32(data[stlHeaderSize : stlHeaderSize+stlCountSize]))
	tris := make([]triangle, 0, count)

	offset := stlHeaderSize + stlCountSize
	for i := 0; i < count; i++ {
		rec := data[offset : offset+stlRecordSize]
		var t triangle
		// skip the 12-byte facet normal; it is recomputed from vertices
		for v := 0; v < 3; v++ {
			for axis := 0; axis < 3; axis++ {
				pos := 12 + v*12 + axis*4
				f := math.Float32frombits(binary.LittleEndian.Uint32(rec[pos : pos+4]))
				if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
					return nil, newError(KindCorruptFile, fmt.Sprintf("STL triangle %d has a non-finite coordinate.", i))
				}
				t[v][axis] = float64(f)
			}
		}
		tris = append(tris, t)
		offset += stlRecordSize
	}
	return tris, nil
}

func parseASCIISTL(data []byte) ([]triangle, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)

	var (
		tris    []triangle
		current triangle
		nVert   int
		facets  int
		ended   bool
	)

	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}

	for {
		word, ok := next()
		if !ok {
			break
		}
		switch word {
		case "facet":
			if nVert != 0 {
				return nil, newError(KindCorruptFile, "STL facet started before the previous facet was closed.")
			}
			facets++
		case "vertex":
			if nVert == 3 {
				return nil, newError(KindCorruptFile, fmt.Sprintf("STL facet %d has more than three vertices.", facets))
			}
			for axis := 0; axis < 3; axis++ {
				tok, ok := next()
				if !ok {
					return nil, newError(KindCorruptFile, "STL file ends inside a vertex.")
				}
				f, err := strconv.ParseFloat(tok, 64)
				if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
					return nil, newError(KindCorruptFile, fmt.Sprintf("STL vertex coordinate %q is not a finite number.", tok))
				}
				// ASCII coordinates are single precision like their binary counterpart
				current[nVert][axis] = float64(float32(f))
			}
			nVert++
		case "endfacet":
			if nVert != 3 {
				return nil, newError(KindCorruptFile, fmt.Sprintf("STL facet %d has %d vertices.", facets, nVert))
			}
			tris = append(tris, current)
			current = triangle{}
			nVert = 0
		case "endsolid":
			ended = true
		}
		if ended {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, newError(KindCorruptFile, "STL file could not be read: "+err.Error())
	}
	if nVert != 0 || facets != len(tris) {
		return nil, newError(KindCorruptFile, "STL file ends inside an unterminated facet.")
	}
	if !ended {
		return nil, newError(KindCorruptFile, "STL file ends without an endsolid line.")
	}
	return tris, nil
}

// measureMesh accumulates signed tetrahedron volume and triangle areas in
// float64 and hands the totals to decimal for unit conversion and rounding.
func measureMesh(tris []triangle) *Metrics {
	var signedVolume, area float64
	minV := vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxV := vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}

	for _, t := range tris {
		a, b, c := t[0], t[1], t[2]
		signedVolume += dot(a, cross(b, c)) / 6
		area += norm(cross(sub(b, a), sub(c, a))) / 2
		for _, v := range t {
			for axis := 0; axis < 3; axis++ {
				minV[axis] = math.Min(minV[axis], v[axis])
				maxV[axis] = math.Max(maxV[axis], v[axis])
			}
		}
	}

	var bbox [3]decimal.Decimal
	for axis := 0; axis < 3; axis++ {
		// vertices are single precision; the shortest float32 form keeps 10.1 as 10.1
		extent := decimal.NewFromFloat32(float32(maxV[axis])).Sub(decimal.NewFromFloat32(float32(minV[axis])))
		bbox[axis] = RoundTo(extent, 1)
	}

	return &Metrics{
		VolumeCM3:       VolumeToCM3(decimal.NewFromFloat(math.Abs(signedVolume))),
		BBoxMM:          bbox,
		SurfaceAreaCM2:  AreaToCM2(decimal.NewFromFloat(area)),
		ComplexityScore: ComplexityScore(len(tris)),
		NumTriangles:    len(tris),
		AnalysisEngine:  stlEngine,
	}
}

func sub(a, b vec3) vec3 {
	return vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b vec3) vec3 {
	return vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm(a vec3) float64 {
	return math.Sqrt(dot(a, a))
}
