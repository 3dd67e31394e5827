// Package bytecode defines the stack-machine instruction set that lxg
// programs compile to, the container those instructions ship in, and the
// host that executes them.
//
// # Architecture Overview
//
//   - Opcodes: a small JVM-style set. Compact integer pushes (ICONST_M1..5,
//     BIPUSH, SIPUSH, LDC), typed slot access (ILOAD/ISTORE for ints and
//     booleans, ALOAD/ASTORE for strings), integer arithmetic, relative
//     conditional jumps, and a print host call with three overloads.
//
//   - Chunk: an instruction stream under construction. It owns the
//     deduplicating constant pool, forward labels, the local variable table
//     and the source map.
//
//   - Assemble: turns a Chunk into an immutable Method and sizes its frame.
//     MaxStack is computed by walking every control-flow path with an
//     abstract operand stack.
//
//   - Module: the container with a single no-argument entry procedure,
//     serialized as the "LXGM" magic followed by canonical CBOR, so the same
//     Method always encodes to the same bytes.
//
//   - Load/Verify: the loader side. Rejects unknown opcodes, bad operands,
//     misused slots and frames whose MaxStack disagrees with the code.
//
//   - VM: executes the entry procedure. Slots start zeroed by kind; slot 0
//     holds the empty argument vector.
//
// # Jump Encoding
//
// Jump operands are signed 16-bit big-endian offsets relative to the end of
// the jump instruction:
//
//	0000  ILOAD      1 ; x
//	0003  IFEQ       +4 ; -> 000A
//	0006  ICONST_1
//	0007  GOTO       +1 ; -> 000B
//	000A  ICONST_0
//	000B  ...
//
// Jumps are emitted in the short form. When a target lies outside the
// 16-bit range, Assemble widens the jump: GOTO becomes GOTO_W with a 32-bit
// offset, and a conditional jump becomes its negation skipping over a
// GOTO_W to the original target:
//
//	0003  IFNE       +5 ; -> 000B
//	0006  GOTO_W     +40000 ; -> 9C4B
//	000B  ...
package bytecode
