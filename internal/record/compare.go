package record

import (
	"math"
	"strings"
)

// Equal reports deep equality, which is defined as equality of the
// canonical serializations. Floats compare by canonical text, so 1 and 1.0
// are different. It panics if either side holds a NaN.
func Equal(a, b Record) bool {
	return equalNode(a.root, b.root)
}

func equalNode(a, b *node) bool {
	if a == nil || b == nil {
		if a != nil {
			checkNaN(a)
		}
		if b != nil {
			checkNaN(b)
		}
		return a == b
	}
	if a == b {
		checkNaN(a)
		return true
	}
	if a.kind != b.kind {
		checkNaN(a)
		checkNaN(b)
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return floatKey(a.f) == floatKey(b.f)
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			checkNaN(a)
			checkNaN(b)
			return false
		}
		eq := true
		for i := range a.arr {
			if !equalNode(a.arr[i], b.arr[i]) {
				eq = false
			}
		}
		return eq
	case KindHash:
		eq := len(a.hash) == len(b.hash)
		for k, av := range a.hash {
			bv, ok := b.hash[k]
			if !ok {
				checkNaN(av)
				eq = false
				continue
			}
			if !equalNode(av, bv) {
				eq = false
			}
		}
		if !eq {
			checkNaN(b)
		}
		return eq
	}
	return false
}

// checkNaN walks n so that a NaN anywhere in a compared value asserts no
// matter where the comparison would short-circuit.
func checkNaN(n *node) {
	if n == nil {
		return
	}
	switch n.kind {
	case KindFloat:
		floatKey(n.f)
	case KindArray:
		for _, c := range n.arr {
			checkNaN(c)
		}
	case KindHash:
		for _, c := range n.hash {
			checkNaN(c)
		}
	}
}

func floatKey(f float64) string {
	if math.IsNaN(f) {
		panic("record: NaN cannot be compared or hashed")
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return FormatFloat(f)
}

func kindRank(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return 2
	case KindString:
		return 3
	case KindArray:
		return 4
	default:
		return 5
	}
}

// Compare is a total order over records: null < bool < number < string <
// array < hash. Ints and floats compare numerically, with ints first on a
// numeric tie; arrays compare element-wise; hashes compare their entries in
// canonical key order. It panics on NaN.
func Compare(a, b Record) int {
	return compareNode(a.root, b.root)
}

func compareNode(a, b *node) int {
	ka, kb := kindOf(a), kindOf(b)
	if ra, rb := kindRank(ka), kindRank(kb); ra != rb {
		checkNaN(a)
		checkNaN(b)
		return cmpInt(ra, rb)
	}
	switch ka {
	case KindNull:
		return 0
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		}
		return 1
	case KindInt, KindFloat:
		return compareNumbers(a, b)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := compareNode(a.arr[i], b.arr[i]); c != 0 {
				checkNaN(a)
				checkNaN(b)
				return c
			}
		}
		return cmpInt(len(a.arr), len(b.arr))
	default:
		ak, bk := sortedKeys(a.hash), sortedKeys(b.hash)
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := compareKeys(ak[i], bk[i]); c != 0 {
				checkNaN(a)
				checkNaN(b)
				return c
			}
			if c := compareNode(a.hash[ak[i]], b.hash[bk[i]]); c != 0 {
				checkNaN(a)
				checkNaN(b)
				return c
			}
		}
		return cmpInt(len(ak), len(bk))
	}
}

func kindOf(n *node) Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func compareNumbers(a, b *node) int {
	if a.kind == KindInt && b.kind == KindInt {
		return cmpInt64(a.i, b.i)
	}
	af, bf := numberValue(a), numberValue(b)
	if math.IsNaN(af) || math.IsNaN(bf) {
		panic("record: NaN cannot be compared or hashed")
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	// numeric tie between int and float: ints sort first
	return cmpInt(kindRankNumber(a.kind), kindRankNumber(b.kind))
}

func kindRankNumber(k Kind) int {
	if k == KindInt {
		return 0
	}
	return 1
}

func numberValue(n *node) float64 {
	if n.kind == KindInt {
		return float64(n.i)
	}
	return n.f
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
