package action

import (
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/google/shlex"
)

// ExecRunner spawns commands as child processes. Spawn returns once the
// process has started; the exit status is collected in the background and
// only logged.
type ExecRunner struct {
	log *slog.Logger

	// OnExit, when set, is called after a spawned command finishes.
	// Used by tests to observe completion.
	OnExit func(command string, err error)
}

func NewExecRunner(log *slog.Logger) *ExecRunner {
	if log == nil {
		log = slog.Default()
	}
	return &ExecRunner{log: log}
}

func (r *ExecRunner) Spawn(command string) error {
	argv, err := shlex.Split(command)
	if err != nil {
		return fmt.Errorf("parsing command: %w", err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %q: %w", argv[0], err)
	}
	r.log.Debug("command started", "command", command, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		if err != nil {
			r.log.Warn("command exited with error", "command", command, "err", err)
		} else {
			r.log.Debug("command finished", "command", command)
		}
		if r.OnExit != nil {
			r.OnExit(command, err)
		}
	}()
	return nil
}
