// Package bytecode provides the compiled core of the Groove language:
// a single-pass compiler that lowers tokens directly to bytecode, and a
// stack-based virtual machine that executes it.
//
// The bytecode format is designed for:
//   - Compact representation (typically 1-3 bytes per instruction)
//   - Fast decoding (one-byte opcodes, simple operand formats)
//   - Easy serialization (chunks can be cached in SQLite between runs)
//
// # Architecture Overview
//
// The package consists of several components:
//
//   - Opcodes: 29 stack-based instructions covering constants, variable
//     access, arithmetic, comparison, control flow, calls and closures
//
//   - Chunk: a compiled bytecode unit holding code, per-byte source line
//     numbers, and a deduplicated constant pool of at most 255 entries.
//     Chunks serialize to the "GVBC" binary format for caching.
//
//   - Compiler: a Pratt parser over the token stream that emits bytecode
//     as it goes. No AST is built. A stack of per-function compilation
//     contexts tracks local slots, scope depth and upvalue references.
//
//   - VM: the dispatch loop. It maintains a value stack, a call-frame
//     stack and a globals table, and performs closure construction,
//     upvalue capture and native function dispatch.
//
// # Capture Semantics
//
// Closures capture enclosing locals by snapshot: creating a closure
// allocates a cell initialized from the enclosing frame's slot. A
// closure nested inside another shares its ancestor's cell, but writes
// through a cell never flow back into the originating stack slot.
package bytecode
