package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrSpawnFailure is returned when the input script cannot be started.
var ErrSpawnFailure = errors.New("spawn failed")

// Spawner starts a new instance of a script.
type Spawner interface {
	Spawn(script string) (pid int, err error)
}

// Interpreters used for scripts when none is configured.
var interpreters = map[string]string{
	".py":  "python",
	".js":  "node",
	".mjs": "node",
	".sh":  "sh",
	".rb":  "ruby",
}

// ExecSpawner launches scripts as new OS processes. It does not keep the
// process around: output goes straight to Stdout and Stderr (discarded when
// nil) and the exit status is never looked at.
type ExecSpawner struct {
	// Interpreter overrides the interpreter picked from the script extension.
	// It may carry its own arguments, e.g. "python3 -u".
	Interpreter string
	Dir         string
	Stdout      io.Writer
	Stderr      io.Writer
}

// Spawn starts script and returns the PID of the new process.
func (s *ExecSpawner) Spawn(script string) (int, error) {
	if _, err := os.Stat(script); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	name, args := s.command(script)
	cmd := exec.Command(name, args...)
	cmd.Dir = s.Dir
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSpawnFailure, script, err)
	}
	pid := cmd.Process.Pid

	// Reap the child so it does not linger as a zombie.
	go cmd.Wait() //nolint:errcheck

	return pid, nil
}

func (s *ExecSpawner) command(script string) (string, []string) {
	interpreter := s.Interpreter
	if interpreter == "" {
		interpreter = interpreters[strings.ToLower(filepath.Ext(script))]
	}
	fields := strings.Fields(interpreter)
	if len(fields) == 0 {
		// A bare name would be looked up in PATH.
		if !filepath.IsAbs(script) && !strings.ContainsRune(script, filepath.Separator) {
			script = "." + string(filepath.Separator) + script
		}
		return script, nil
	}
	return fields[0], append(fields[1:], script)
}
