// Package dirpack writes a directory tree into a single archive file.
//
// The work is split in three parts:
//   - [Build] turns a filesystem path into an [Entry]: the archive [Record]
//     (pathname, type, size, permissions) and, for regular files, a chunked
//     [Body] over the open file.
//   - [Session] owns one open [archive.Writer] and commits entries in the
//     order it receives them.
//   - [Walk] traverses a root depth-first and feeds every entry to a session
//     in pre-order, so a directory always precedes its contents.
//
// [Pack] ties them together for the common case:
//
//	res, err := dirpack.Pack(ctx, "./src", "src.tar.zst", archive.FormatTarZstd,
//	    dirpack.WithPrefix("src"),
//	    dirpack.WithManifestPath("src.manifest.json"),
//	)
//
// Only directories and regular files are archived. Symbolic links, devices,
// sockets and FIFOs fail with [ErrUnsupportedKind]; the [ErrorPolicy] decides
// whether such failures abort the walk or are skipped and reported.
package dirpack
