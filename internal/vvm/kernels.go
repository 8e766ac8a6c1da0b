// Table kernels implement spec §4.3's table-operation opcodes: filtering,
// grouping, sorting, gathering, equality/asof matching, column selection,
// concatenation, and reductions. Each kernel operates on Value's columnar
// representation directly rather than row-by-row boxed structs, following
// the vectorised shape spec §4.3 describes.
package vvm

import (
	"fmt"
	"sort"

	"vvm/internal/bytecode"
	"vvm/internal/langtypes"
)

func rowIndices(n int) []int64 {
	idx := make([]int64, n)
	for i := range idx {
		idx[i] = int64(i)
	}
	return idx
}

func gatherTable(t Value, idx []int64) Value {
	cols := make([]Value, len(t.Cols))
	for i, c := range t.Cols {
		cols[i] = Value{Type: c.Type, Vec: c.Vec.Take(idx)}
	}
	return Value{Type: t.Type, Cols: cols}
}

// kernelWhere implements WHERE: filters a table's rows by a parallel Bool
// vector.
func kernelWhere(table, mask Value) Value {
	var idx []int64
	for i := 0; i < mask.Vec.Len(); i++ {
		if mask.Vec.Get(i).Truthy() {
			idx = append(idx, int64(i))
		}
	}
	return gatherTable(table, idx)
}

// kernelGroup implements GROUP: partitions table's rows by byTable's key
// tuples, writing the unique key columns into result in place (result
// already holds an ALLOC'd zero Dataframe whose leading columns match
// byTable's fields) and returning the unique group count. result.Groups and
// result.GroupSource let a later dynamic MEMBER materialise each group's
// sub-table (spec §4.2 table.go "Grouped aggregation").
func kernelGroup(result *Value, table, byTable Value) int {
	n := byTable.RowCount()
	order := make(map[string]int)
	var groups [][]int
	for i := 0; i < n; i++ {
		key := rowKey(byTable, i)
		gi, ok := order[key]
		if !ok {
			gi = len(groups)
			order[key] = gi
			groups = append(groups, nil)
			for c := range byTable.Cols {
				result.Cols[c].Vec.Append(byTable.Cols[c].Vec.Get(i))
			}
		}
		groups[gi] = append(groups[gi], i)
	}
	result.Groups = groups
	srcCopy := table
	result.GroupSource = &srcCopy
	return len(groups)
}

func rowKey(t Value, row int) string {
	key := ""
	for _, c := range t.Cols {
		key += compareKey(c.Vec.Get(row)) + "\x1f"
	}
	return key
}

// kernelIsort implements ISORT: a stable ascending multi-key sort over
// byTable's columns, returning the Int64 row-permutation vector (spec §4.3
// "isort").
func kernelIsort(byTable Value) Value {
	n := byTable.RowCount()
	perm := rowIndices(n)
	sort.SliceStable(perm, func(a, b int) bool {
		ia, ib := int(perm[a]), int(perm[b])
		for _, c := range byTable.Cols {
			va, vb := c.Vec.Get(ia), c.Vec.Get(ib)
			r, _ := compareScalar(bytecode.FLt, va, vb)
			if r.B {
				return true
			}
			r, _ = compareScalar(bytecode.FGt, va, vb)
			if r.B {
				return false
			}
		}
		return false
	})
	out := newVector(langtypes.Int64)
	for _, p := range perm {
		out.Append(Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: p})
	}
	return Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Vector), Vec: out}
}

// kernelMultidx implements MULTIDX: gathers rows (a Dataframe target) or
// elements (a bare vector target) at the positions named by an Int64 index
// vector; an Int64-nil index produces a null row/element (spec §4.3
// "multidx").
func kernelMultidx(target, idxVec Value) (Value, error) {
	if idxVec.Vec == nil {
		return Value{}, fmt.Errorf("vvm: multidx: index operand is not a vector")
	}
	idx := make([]int64, idxVec.Vec.Len())
	for i := range idx {
		idx[i] = idxVec.Vec.Get(i).I
	}
	if target.Vec != nil {
		return Value{Type: target.Type, Vec: target.Vec.Take(idx)}, nil
	}
	if target.Cols != nil {
		return gatherTable(target, idx), nil
	}
	return Value{}, fmt.Errorf("vvm: multidx: target is neither a vector nor a table")
}

// kernelEqMatch implements EQMATCH: an inner equi-join producing aligned
// row-index vectors into left and right (spec §4.3 "eqmatch").
func kernelEqMatch(leftKey, rightKey Value) (Value, Value) {
	buckets := make(map[string][]int)
	n := rightKey.RowCount()
	for j := 0; j < n; j++ {
		k := rowKey(rightKey, j)
		buckets[k] = append(buckets[k], j)
	}
	li, ri := newVector(langtypes.Int64), newVector(langtypes.Int64)
	m := leftKey.RowCount()
	for i := 0; i < m; i++ {
		k := rowKey(leftKey, i)
		for _, j := range buckets[k] {
			li.Append(intScalar(int64(i)))
			ri.Append(intScalar(int64(j)))
		}
	}
	return vecVal(li), vecVal(ri)
}

func intScalar(v int64) Value {
	return Value{Type: langtypes.Builtin(langtypes.Int64, langtypes.Scalar), I: v}
}

func vecVal(v *Vector) Value { return Value{Type: langtypes.Builtin(v.Kind, langtypes.Vector), Vec: v} }

// Direction constants mirror ast.JoinDirection's encoding (backward=0,
// forward=1, nearest=2) as emitted by codegen's directionImm.
const (
	dirBackward = 0
	dirForward  = 1
	dirNearest  = 2
)

// asofSearch finds the right-side row index matching leftVal under an asof
// direction/strictness, assuming rightKey is sorted ascending (spec §4.3
// "asof match backward/forward"); -1 means no match.
func asofSearch(rightKey Value, leftVal Value, direction int, strict bool) int {
	n := rightKey.Vec.Len()
	switch direction {
	case dirForward:
		j := sort.Search(n, func(j int) bool {
			r, _ := compareScalar(bytecode.FGe, rightKey.Vec.Get(j), leftVal)
			if strict {
				r, _ = compareScalar(bytecode.FGt, rightKey.Vec.Get(j), leftVal)
			}
			return r.B
		})
		if j >= n {
			return -1
		}
		return j
	default: // backward
		j := sort.Search(n, func(j int) bool {
			r, _ := compareScalar(bytecode.FGt, rightKey.Vec.Get(j), leftVal)
			if strict {
				r, _ = compareScalar(bytecode.FGe, rightKey.Vec.Get(j), leftVal)
			}
			return r.B
		})
		j--
		if j < 0 {
			return -1
		}
		return j
	}
}

func absDiff(a, b Value) int64 {
	d := a.I - b.I
	if d < 0 {
		return -d
	}
	return d
}

// kernelAsofMatch implements ASOFMATCH: every left row keeps its slot, right
// side nil when unmatched (spec §4.3 "asof match backward/forward").
func kernelAsofMatch(leftKey, rightKey Value, direction int, strict bool) Value {
	out := newVector(langtypes.Int64)
	for i := 0; i < leftKey.Vec.Len(); i++ {
		j := asofSearch(rightKey, leftKey.Vec.Get(i), direction, strict)
		if j < 0 {
			out.Append(NullScalar(langtypes.Int64))
		} else {
			out.Append(intScalar(int64(j)))
		}
	}
	return vecVal(out)
}

// kernelAsofNear implements ASOFNEAR: nearest match by absolute key
// distance, ties resolved backward.
func kernelAsofNear(leftKey, rightKey Value) Value {
	out := newVector(langtypes.Int64)
	n := rightKey.Vec.Len()
	for i := 0; i < leftKey.Vec.Len(); i++ {
		lv := leftKey.Vec.Get(i)
		back := asofSearch(rightKey, lv, dirBackward, false)
		fwd := asofSearch(rightKey, lv, dirForward, false)
		switch {
		case back < 0 && fwd < 0:
			out.Append(NullScalar(langtypes.Int64))
		case back < 0:
			out.Append(intScalar(int64(fwd)))
		case fwd < 0 || fwd >= n:
			out.Append(intScalar(int64(back)))
		default:
			if absDiff(rightKey.Vec.Get(fwd), lv) < absDiff(rightKey.Vec.Get(back), lv) {
				out.Append(intScalar(int64(fwd)))
			} else {
				out.Append(intScalar(int64(back)))
			}
		}
	}
	return vecVal(out)
}

// kernelAsofWithin implements ASOFWITHIN: an asof match additionally bounded
// by a tolerance window.
func kernelAsofWithin(leftKey, rightKey Value, direction int, strict bool, within Value) Value {
	matched := kernelAsofMatch(leftKey, rightKey, direction, strict)
	out := newVector(langtypes.Int64)
	for i := 0; i < matched.Vec.Len(); i++ {
		j := matched.Vec.Get(i)
		if j.IsNull() {
			out.Append(NullScalar(langtypes.Int64))
			continue
		}
		if absDiff(rightKey.Vec.Get(int(j.I)), leftKey.Vec.Get(i)) > within.I {
			out.Append(NullScalar(langtypes.Int64))
			continue
		}
		out.Append(j)
	}
	return vecVal(out)
}

// kernelEqAsofMatch implements EQASOFMATCH/EQASOFWITHIN: bucket rows by
// equality key, then asof-match within each bucket; unmatched left rows are
// dropped (inner-join semantics, consistent with bare eqmatch), unlike the
// asof-only forms which keep every left row. within is nil for
// EQASOFMATCH, non-nil for EQASOFWITHIN.
func kernelEqAsofMatch(leftKey, rightKey, leftAsof, rightAsof Value, direction int, strict bool, within *Value) (Value, Value) {
	buckets := make(map[string][]int)
	n := rightKey.RowCount()
	for j := 0; j < n; j++ {
		buckets[rowKey(rightKey, j)] = append(buckets[rowKey(rightKey, j)], j)
	}
	li, ri := newVector(langtypes.Int64), newVector(langtypes.Int64)
	m := leftKey.RowCount()
	for i := 0; i < m; i++ {
		rows := buckets[rowKey(leftKey, i)]
		if len(rows) == 0 {
			continue
		}
		bucketKey := newVector(rightAsof.Vec.Kind)
		for _, j := range rows {
			bucketKey.Append(rightAsof.Vec.Get(j))
		}
		bj := asofSearch(vecVal(bucketKey), leftAsof.Vec.Get(i), direction, strict)
		if bj < 0 {
			continue
		}
		j := rows[bj]
		if within != nil && absDiff(rightAsof.Vec.Get(j), leftAsof.Vec.Get(i)) > within.I {
			continue
		}
		li.Append(intScalar(int64(i)))
		ri.Append(intScalar(int64(j)))
	}
	return vecVal(li), vecVal(ri)
}

// kernelEqAsofNear implements EQASOFNEAR: equality bucket, then nearest
// asof match within the bucket.
func kernelEqAsofNear(leftKey, rightKey, leftAsof, rightAsof Value) (Value, Value) {
	buckets := make(map[string][]int)
	n := rightKey.RowCount()
	for j := 0; j < n; j++ {
		buckets[rowKey(rightKey, j)] = append(buckets[rowKey(rightKey, j)], j)
	}
	li, ri := newVector(langtypes.Int64), newVector(langtypes.Int64)
	m := leftKey.RowCount()
	for i := 0; i < m; i++ {
		rows := buckets[rowKey(leftKey, i)]
		if len(rows) == 0 {
			continue
		}
		bucketKey := newVector(rightAsof.Vec.Kind)
		for _, j := range rows {
			bucketKey.Append(rightAsof.Vec.Get(j))
		}
		bj := kernelAsofNear(vecVal(newVectorSingle(leftAsof.Vec.Get(i))), vecVal(bucketKey))
		v := bj.Vec.Get(0)
		if v.IsNull() {
			continue
		}
		j := rows[int(v.I)]
		li.Append(intScalar(int64(i)))
		ri.Append(intScalar(int64(j)))
	}
	return vecVal(li), vecVal(ri)
}

func newVectorSingle(v Value) *Vector {
	k, _, _ := v.Type.Decode()
	vec := newVector(k)
	vec.Append(v)
	return vec
}

// kernelTake implements TAKE: projects src's columns down to t's field set
// by name (spec §4.3 "take"; used by join to drop the right side's on-keys).
func kernelTake(types *langtypes.Registry, t langtypes.TypeCode, src Value) (Value, error) {
	ud, ok := types.Lookup(t)
	if !ok {
		return Value{}, fmt.Errorf("vvm: take: %v is not a record type", t)
	}
	srcUD, ok := types.Lookup(src.Type)
	if !ok {
		return Value{}, fmt.Errorf("vvm: take: source value has no record type")
	}
	cols := make([]Value, len(ud.Fields))
	for i, f := range ud.Fields {
		idx := srcUD.FieldIndex(f.Name)
		if idx < 0 {
			return Value{}, fmt.Errorf("vvm: take: field %q not found on source", f.Name)
		}
		cols[i] = src.Cols[idx]
	}
	return Value{Type: t, Cols: cols}, nil
}

// kernelConcat implements CONCAT as used by join: a horizontal concatenation
// of two row-aligned tables' columns into one combined-field table (spec
// §4.3 "concat"). The combined type is derived (and structurally interned,
// matching whatever type sema already computed for the join's result) from
// left's and right's field lists, since codegen does not pass an explicit
// result type operand here.
func kernelConcat(types *langtypes.Registry, left, right Value) (Value, error) {
	leftUD, ok := types.Lookup(left.Type)
	if !ok {
		return Value{}, fmt.Errorf("vvm: concat: left value has no record type")
	}
	rightUD, ok := types.Lookup(right.Type)
	if !ok {
		return Value{}, fmt.Errorf("vvm: concat: right value has no record type")
	}
	fields := append(append([]langtypes.Field{}, leftUD.Fields...), rightUD.Fields...)
	t := types.Intern("!joinResult", fields)
	cols := append(append([]Value{}, left.Cols...), right.Cols...)
	return Value{Type: t, Cols: cols}, nil
}

// kernelReduce implements RSUM/RPROD/RMIN/RMAX/RCOUNT (spec §4.3
// "Reductions": "sum([]) == 0; prod([]) == 1").
func kernelReduce(op bytecode.Opcode, v Value) (Value, error) {
	if v.Vec == nil {
		return Value{}, fmt.Errorf("vvm: reduce: operand is not a vector")
	}
	if op == bytecode.OpReduceCount {
		return intScalar(int64(v.Vec.Len())), nil
	}
	k := v.Vec.Kind
	n := v.Vec.Len()
	switch op {
	case bytecode.OpReduceSum:
		acc := Value{Type: langtypes.Builtin(k, langtypes.Scalar)}
		for i := 0; i < n; i++ {
			e := v.Vec.Get(i)
			if e.IsNull() {
				continue
			}
			acc, _ = applyBinaryScalar(bytecode.FAdd, acc, e)
		}
		return acc, nil
	case bytecode.OpReduceProd:
		acc := Value{Type: langtypes.Builtin(k, langtypes.Scalar)}
		if k == langtypes.Float64 {
			acc.F = 1
		} else {
			acc.I = 1
		}
		for i := 0; i < n; i++ {
			e := v.Vec.Get(i)
			if e.IsNull() {
				continue
			}
			acc, _ = applyBinaryScalar(bytecode.FMul, acc, e)
		}
		return acc, nil
	case bytecode.OpReduceMin, bytecode.OpReduceMax:
		var acc Value
		has := false
		for i := 0; i < n; i++ {
			e := v.Vec.Get(i)
			if e.IsNull() {
				continue
			}
			if !has {
				acc, has = e, true
				continue
			}
			fam := bytecode.FLt
			if op == bytecode.OpReduceMax {
				fam = bytecode.FGt
			}
			r, _ := compareScalar(fam, e, acc)
			if r.B {
				acc = e
			}
		}
		if !has {
			return NullScalar(k), nil
		}
		return acc, nil
	}
	return Value{}, fmt.Errorf("vvm: unreachable reduce opcode %s", op)
}
