package driver

import (
	"os"
	"os/exec"
)

var (
	cmakeNames = []string{"cmake", "cmake3"}
	// what CMake would pick up on its own, for reporting
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "cl"}
	commonCxxCompilers = []string{"clang++", "g++", "icpx", "icpc", "cl"}
)

// findExecutable returns the value of the environment variable env if set,
// else the first of names found on PATH, else "".
func findExecutable(env string, names []string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// FindCompiler reports the C or C++ compiler a configure step would most
// likely use, honoring CC and CXX.
func FindCompiler(needCxx bool) string {
	if needCxx {
		return findExecutable("CXX", commonCxxCompilers)
	}
	return findExecutable("CC", commonCCompilers)
}
