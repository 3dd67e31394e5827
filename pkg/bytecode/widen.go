package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// gotoWLen is the encoded length of OpGotoW.
const gotoWLen = 5

// widenJumps lays out code again with every jump whose displacement does
// not fit in 16 bits rewritten to a wide form. far maps the offset of each
// jump already known to be out of range to its absolute target; the
// placeholder operand of those jumps is ignored.
//
// GOTO becomes GOTO_W. A conditional jump becomes its negation branching
// over a GOTO_W to the original target. Widening moves code, so the pass
// repeats until no remaining short jump overflows. The source map is
// remapped to the new offsets.
func widenJumps(code []byte, far map[int]int, sourceMap []SourceLocation) ([]byte, []SourceLocation, error) {
	if len(far) == 0 {
		return code, sourceMap, nil
	}
	instrs, err := Decode(code)
	if err != nil {
		return nil, nil, err
	}

	index := make(map[int]int, len(instrs)+1) // old offset -> instruction index
	for i, in := range instrs {
		index[in.Offset] = i
	}
	index[len(code)] = len(instrs)

	targets := make([]int, len(instrs)) // jump -> target instruction index
	wide := make([]bool, len(instrs))
	for i, in := range instrs {
		if !in.Op.IsJump() {
			continue
		}
		target, ok := far[in.Offset]
		if ok {
			wide[i] = true
		} else {
			target = in.Target()
		}
		t, ok := index[target]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s at %04X -> %04X", ErrBadJumpTarget, in.Op, in.Offset, target)
		}
		targets[i] = t
	}

	offsets := make([]int, len(instrs)+1) // instruction index -> new offset
	for {
		pos := 0
		for i, in := range instrs {
			offsets[i] = pos
			pos += widenedLen(in, wide[i])
		}
		offsets[len(instrs)] = pos

		grown := false
		for i, in := range instrs {
			if !in.Op.IsJump() || wide[i] {
				continue
			}
			delta := offsets[targets[i]] - (offsets[i] + in.Len())
			if delta < math.MinInt16 || delta > math.MaxInt16 {
				wide[i] = true
				grown = true
			}
		}
		if !grown {
			break
		}
	}

	out := make([]byte, 0, offsets[len(instrs)])
	for i, in := range instrs {
		switch {
		case !in.Op.IsJump():
			out = append(out, code[in.Offset:in.Next()]...)
		case !wide[i]:
			delta := offsets[targets[i]] - (offsets[i] + in.Len())
			out = append(out, byte(in.Op))
			out = binary.BigEndian.AppendUint16(out, uint16(int16(delta)))
		case in.Op.IsGoto():
			out = appendGotoW(out, offsets[targets[i]])
		default:
			out = append(out, byte(in.Op.Negate()))
			out = binary.BigEndian.AppendUint16(out, gotoWLen)
			out = appendGotoW(out, offsets[targets[i]])
		}
	}

	remapped := make([]SourceLocation, len(sourceMap))
	for i, loc := range sourceMap {
		loc.BytecodeOffset = uint32(remapOffset(instrs, offsets, int(loc.BytecodeOffset)))
		remapped[i] = loc
	}
	return out, remapped, nil
}

// widenedLen returns the length of in after widening.
func widenedLen(in Instruction, wide bool) int {
	switch {
	case !wide:
		return in.Len()
	case in.Op.IsGoto():
		return gotoWLen
	default:
		return in.Len() + gotoWLen
	}
}

// appendGotoW appends a GOTO_W at the end of out jumping to target.
func appendGotoW(out []byte, target int) []byte {
	delta := target - (len(out) + gotoWLen)
	out = append(out, byte(OpGotoW))
	return binary.BigEndian.AppendUint32(out, uint32(int32(delta)))
}

// remapOffset moves an old code offset to the new layout. Offsets inside
// an instruction keep their distance from its start.
func remapOffset(instrs []Instruction, offsets []int, off int) int {
	i := sort.Search(len(instrs), func(i int) bool { return instrs[i].Offset > off }) - 1
	if i < 0 {
		return off
	}
	if i == len(instrs)-1 && off >= instrs[i].Next() {
		return offsets[len(instrs)] + off - instrs[i].Next()
	}
	return offsets[i] + off - instrs[i].Offset
}
