// Package fs provides the file system abstraction behind the local blob
// store, for testability and fault injection.
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test wrapper that fails writes, syncs, renames or removes
//     of matching paths
//
// Tests inject [FaultyFS] to simulate a crash between writing a segment and
// publishing the operation link that refers to it:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("op_links", fs.Fault{FailOnRename: true})
//	blobs := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Operations take no context.Context; local file system calls cannot be
// interrupted at the syscall level.
package fs
