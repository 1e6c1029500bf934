package chromium

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// process is a launched browser whose exit is observed by a waiter goroutine.
type process struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
}

func startProcess(path string, args []string) (*process, error) {
	// Not bound to a context: the browser outlives the call that created it
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start browser %s: %w", path, err)
	}

	p := &process{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// stop waits up to grace for a voluntary exit, then kills the process.
func (p *process) stop(grace time.Duration) error {
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-p.exited:
		return nil
	case <-t.C:
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill browser: %w", err)
	}
	<-p.exited
	return nil
}
