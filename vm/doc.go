// Package vm implements the Leola virtual machine.
//
// This package contains:
//   - Interface-based value representation
//   - 32-bit instruction encoding and opcode metadata
//   - Chunks and their persisted binary format
//   - Closure cells, runtime scopes, class and namespace registries
//   - The stack-based bytecode engine (closures, exceptions, generators,
//     tail calls, named arguments)
package vm
