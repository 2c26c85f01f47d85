package kerrors

// Linux errno values used as error codes by the filesystem service
const (
	EPERM  int64 = 1  // Operation not permitted
	ENOENT int64 = 2  // No such file or directory
	EBADF  int64 = 9  // Bad file descriptor
	EEXIST int64 = 17 // File exists
	ENODEV int64 = 19 // No such device
	EINVAL int64 = 22 // Invalid argument
	EFBIG  int64 = 27 // File too large
	ENOSPC int64 = 28 // No space left on device
	ELOOP  int64 = 40 // Too many levels of symbolic links
)

var names = map[int64]string{
	EPERM:  "EPERM",
	ENOENT: "ENOENT",
	EBADF:  "EBADF",
	EEXIST: "EEXIST",
	ENODEV: "ENODEV",
	EINVAL: "EINVAL",
	EFBIG:  "EFBIG",
	ENOSPC: "ENOSPC",
	ELOOP:  "ELOOP",
}

// Name returns the symbolic name of code, or "E?" for unknown codes.
func Name(code int64) string {
	if n, ok := names[code]; ok {
		return n
	}
	return "E?"
}
