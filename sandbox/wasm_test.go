// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// Hand-assembled WASM binaries for tests. Each is the binary encoding
// of a tiny module; offsets and section lengths are spelled out so
// the fixtures can be checked against the WebAssembly binary format
// by eye.

// emptyModule is a module with no sections: just magic and version.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// mainModule exports one function: main() -> i32, returning 42.
var mainModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f, // type: () -> i32
	0x03, 0x02, 0x01, 0x00, // function: one func of type 0
	0x07, 0x08, 0x01, 0x04, 0x6d, 0x61, 0x69, 0x6e, 0x00, 0x00, // export "main" func 0
	0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b, // code: i32.const 42
}

// addModule exports add(i32, i32) -> i32.
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // type: (i32, i32) -> i32
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, // export "add" func 0
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // local.get 0, local.get 1, i32.add
}

// allocModule exports main() -> i32 plus an allocate(i32) -> i32 that
// the tool listing must hide.
var allocModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0a, 0x02, // type section: two types
	0x60, 0x00, 0x01, 0x7f, // () -> i32
	0x60, 0x01, 0x7f, 0x01, 0x7f, // (i32) -> i32
	0x03, 0x03, 0x02, 0x00, 0x01, // functions: func 0 type 0, func 1 type 1
	0x07, 0x13, 0x02, // export section: two exports
	0x04, 0x6d, 0x61, 0x69, 0x6e, 0x00, 0x00, // "main" func 0
	0x08, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x61, 0x74, 0x65, 0x00, 0x01, // "allocate" func 1
	0x0a, 0x0b, 0x02, // code section: two bodies
	0x04, 0x00, 0x41, 0x2a, 0x0b, // main: i32.const 42
	0x04, 0x00, 0x20, 0x00, 0x0b, // allocate: local.get 0
}

// memoryModule exports a linear memory with a two-page (128 KiB)
// minimum and no functions.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x02, // memory: min 2 pages, no max
	0x07, 0x0a, 0x01, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // export "memory"
}
