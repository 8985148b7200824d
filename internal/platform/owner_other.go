//go:build !unix

package platform

import "io/fs"

// FileOwner returns zero UID/GID on non-Unix systems.
func FileOwner(_ fs.FileInfo) (uid, gid int) {
	return 0, 0
}
