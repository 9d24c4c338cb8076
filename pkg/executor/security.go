package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// allowedBinaryPaths are the directories the executor is willing to spawn
// a binary from. A command whose first argv token does not resolve to a
// binary under one of these directories is refused before it ever runs.
var allowedBinaryPaths = []string{
	"/usr/sbin",
	"/usr/bin",
	"/usr/local/bin",
	"/usr/local/sbin",
	"/sbin",
	"/bin",
}

// security resolves and verifies the binaries the action catalog's
// command templates name, and builds the minimal environment they run
// under.
type security struct {
	allowedPaths []string
}

func newSecurity() *security {
	return &security{allowedPaths: allowedBinaryPaths}
}

// resolve finds bin on the allowed paths, preferring the first match.
func (s *security) resolve(bin string) (string, error) {
	if strings.ContainsRune(bin, filepath.Separator) {
		return "", fmt.Errorf("binary name %q must not contain a path separator", bin)
	}
	for _, dir := range s.allowedPaths {
		path := filepath.Join(dir, bin)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("binary %q not found under allowed paths %v", bin, s.allowedPaths)
}

// verify checks the resolved binary is owned by root and not
// world-writable, mirroring the trust model for any other
// security-sensitive subprocess launcher.
func (s *security) verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", path)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok && stat.Uid != 0 {
		return fmt.Errorf("binary %q is not owned by root (uid=%d)", path, stat.Uid)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("binary %q is world-writable (mode=%s)", path, info.Mode())
	}
	return nil
}

// sanitizedEnv returns a minimal subprocess environment, carrying only
// the variables a spawned action binary plausibly needs.
func sanitizedEnv() []string {
	keep := map[string]bool{
		"PATH": true, "HOME": true, "LANG": true, "LC_ALL": true, "TMPDIR": true,
	}
	var env []string
	hasPath := false
	for _, e := range os.Environ() {
		k, _, ok := strings.Cut(e, "=")
		if ok && keep[k] {
			env = append(env, e)
			if k == "PATH" {
				hasPath = true
			}
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	return env
}
