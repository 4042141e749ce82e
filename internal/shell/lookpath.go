package shell

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// LookPath searches for an executable named file in the directories of
// path, a list in the os.PathListSeparator format. Unlike exec.LookPath it
// takes the search path as an argument, so that directories added to the
// shell's environment (for example by an installer) are honoured without
// touching the process environment. On Windows the extensions in
// fileExtensions (PATHEXT) are tried as well.
func LookPath(file, path, fileExtensions string) (string, error) {
	exts := []string{""}
	if runtime.GOOS == "windows" {
		for ext := range strings.SplitSeq(strings.ToLower(fileExtensions), ";") {
			if ext != "" {
				exts = append(exts, ext)
			}
		}
	}

	if strings.ContainsAny(file, `/\`) {
		f, err := findExecutable(file, exts)
		if err != nil {
			return "", &exec.Error{Name: file, Err: err}
		}
		return f, nil
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		if f, err := findExecutable(filepath.Join(dir, file), exts); err == nil {
			return f, nil
		}
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

func findExecutable(file string, exts []string) (string, error) {
	var lastErr error = os.ErrNotExist
	for _, ext := range exts {
		d, err := os.Stat(file + ext)
		if err != nil {
			lastErr = err
			continue
		}
		if m := d.Mode(); !m.IsDir() && (runtime.GOOS == "windows" || m&0o111 != 0) {
			return file + ext, nil
		}
		lastErr = os.ErrPermission
	}
	return "", lastErr
}
