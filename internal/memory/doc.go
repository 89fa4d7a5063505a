// Package memory models the address space of the process being patched.
//
// Everything that touches foreign memory (the pattern scanner, the address
// resolver, the dispatch-table interceptor and the reset flag writer) goes
// through the Memory interface. Two implementations exist:
//
//   - Buffer: a synthetic, page-protected byte range used by tests and by
//     offline tooling that loads an executable image from disk.
//   - Process: the live address space of the current process (Windows only),
//     backed by VirtualQuery/VirtualProtect from golang.org/x/sys/windows.
//
// Addresses are plain 64-bit integers (Addr). Nothing in this package keeps a
// Go pointer into foreign memory beyond the duration of a single call.
package memory
