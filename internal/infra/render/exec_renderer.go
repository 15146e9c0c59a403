// Package render runs assembly scripts with an external interpreter.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
)

var _ adapter.AssemblyRenderer = (*ExecRenderer)(nil)

const stderrTail = 2048

// ExecRenderer runs `<interpreter> <script>` and treats exit 0 as success.
// The script gets OUTPUT_PATH and AUDIO_PATH in its environment.
type ExecRenderer struct {
	interpreter string
	timeout     time.Duration
	dir         string
	log         *zerolog.Logger
}

func NewExecRenderer(interpreter string, timeout time.Duration, workDir string, logger *zerolog.Logger) *ExecRenderer {
	if interpreter == "" {
		interpreter = "python3"
	}
	return &ExecRenderer{interpreter: interpreter, timeout: timeout, dir: workDir, log: logging.Component(logger, "render")}
}

func (r *ExecRenderer) Render(ctx context.Context, req adapter.RenderRequest) (string, error) {
	if req.ScriptPath == "" {
		return "", fmt.Errorf("render %s: no script: %w", req.ProjectID, domain.ErrInvalidArgument)
	}
	if _, err := exec.LookPath(r.interpreter); err != nil {
		return "", &domain.ConfigurationMissingError{Key: "render.interpreter"}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.interpreter, req.ScriptPath)
	cmd.Dir = r.dir
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(), "OUTPUT_PATH="+req.OutputPath, "AUDIO_PATH="+req.AudioPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := logging.With(ctx, r.log)
	started := time.Now()
	log.Info().Str("script", req.ScriptPath).Str("output", req.OutputPath).Msg("render started")

	err := cmd.Run()
	elapsed := time.Since(started)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", &domain.ProducerTimeoutError{Producer: "render", JobID: req.ProjectID, Elapsed: elapsed}
		case errors.Is(ctx.Err(), context.Canceled):
			return "", fmt.Errorf("render %s: %w", req.ProjectID, domain.ErrCanceled)
		}
		state := "ERROR"
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			state = fmt.Sprintf("EXIT_%d", ee.ExitCode())
		}
		detail := tail(stderr.String(), stderrTail)
		log.Error().Err(err).Str("stderr", detail).Dur("elapsed", elapsed).Msg("render failed")
		return "", &domain.ProducerFailureError{Producer: "render", JobID: req.ProjectID, State: state, Detail: detail}
	}
	log.Info().Dur("elapsed", elapsed).Int("stdout_bytes", stdout.Len()).Msg("render finished")
	return req.OutputPath, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
