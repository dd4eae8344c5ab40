// Package wasmmem encodes and decodes formula values in WebAssembly guest
// memory through wazero.
//
// Buffer writes an encoding directly into a window of api.Memory, so a host
// can hand a guest its arguments without an intermediate Go copy. Decoding
// reads guest bytes through api.Memory.Read views; with codec.Options.Borrow
// the decoded bytes and strings keep aliasing the guest.
package wasmmem
