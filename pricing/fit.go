package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// FitsWithin reports whether a part with bounding box bbox fits a build
// envelope of maxSize in some axis-aligned orientation. Sorting both sides
// and comparing pairwise covers every permutation.
func FitsWithin(bbox [3]decimal.Decimal, maxSize []decimal.Decimal) bool {
	if len(maxSize) != 3 {
		return false
	}
	part := []decimal.Decimal{bbox[0], bbox[1], bbox[2]}
	envelope := append([]decimal.Decimal(nil), maxSize...)
	sort.Slice(part, func(i, j int) bool { return part[i].LessThan(part[j]) })
	sort.Slice(envelope, func(i, j int) bool { return envelope[i].LessThan(envelope[j]) })
	for i := range part {
		if part[i].GreaterThan(envelope[i]) {
			return false
		}
	}
	return true
}
