// Package mmap maps read-only segment files into memory.
//
// Segment files are immutable once written, so a mapping never observes a
// concurrent write. Decoders slice the mapped bytes directly; the mapping must
// stay open for as long as any decoded view refers to it.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
//
// Unix uses mmap(2) via golang.org/x/sys/unix. Windows uses
// CreateFileMapping/MapViewOfFile.
package mmap
