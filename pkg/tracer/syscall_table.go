package tracer

import "strconv"

// syscallNames covers the x86-64 syscalls that show up in practice on
// the >10ms-latency slow path the syscall probe filters for — blocking
// IO, futex, and process control. An unrecognized number falls back to
// "sys_<nr>" rather than failing the record.
var syscallNames = map[int32]string{
	0:   "read",
	1:   "write",
	2:   "open",
	3:   "close",
	4:   "stat",
	5:   "fstat",
	6:   "lstat",
	7:   "poll",
	8:   "lseek",
	9:   "mmap",
	10:  "mprotect",
	11:  "munmap",
	16:  "ioctl",
	17:  "pread64",
	18:  "pwrite64",
	21:  "access",
	23:  "select",
	32:  "dup",
	33:  "dup2",
	35:  "nanosleep",
	41:  "socket",
	42:  "connect",
	43:  "accept",
	44:  "sendto",
	45:  "recvfrom",
	47:  "recvmsg",
	54:  "setsockopt",
	55:  "getsockopt",
	56:  "clone",
	57:  "fork",
	59:  "execve",
	61:  "wait4",
	62:  "kill",
	72:  "fcntl",
	73:  "flock",
	74:  "fsync",
	75:  "fdatasync",
	78:  "getdents",
	82:  "rename",
	83:  "mkdir",
	84:  "rmdir",
	86:  "link",
	87:  "unlink",
	90:  "chmod",
	92:  "chown",
	95:  "umask",
	137: "statfs",
	202: "futex",
	217: "getdents64",
	221: "fadvise64",
	230: "clock_nanosleep",
	232: "epoll_wait",
	257: "openat",
	281: "epoll_pwait",
	292: "dup3",
	293: "pipe2",
	318: "getrandom",
	332: "statx",
}

func syscallName(nr int32) string {
	if n, ok := syscallNames[nr]; ok {
		return n
	}
	return "sys_" + strconv.Itoa(int(nr))
}
