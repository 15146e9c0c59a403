//go:build !integration

package render_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/render"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "render.sh")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExecRenderer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("should pass output path to the script and return it", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "final.mp4")
		script := writeScript(t, `printf done > "$OUTPUT_PATH"`)
		r := render.NewExecRenderer("sh", time.Minute, "", nil)

		got, err := r.Render(ctx, adapter.RenderRequest{ProjectID: "p1", ScriptPath: script, OutputPath: out})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if got != out {
			t.Fatalf("got %s", got)
		}
		if b, _ := os.ReadFile(out); string(b) != "done" {
			t.Fatalf("output %q", b)
		}
	})

	t.Run("should fail on a non-zero exit with stderr detail", func(t *testing.T) {
		script := writeScript(t, "echo 'moviepy missing' >&2\nexit 3\n")
		_, err := render.NewExecRenderer("sh", time.Minute, "", nil).Render(ctx, adapter.RenderRequest{ProjectID: "p1", ScriptPath: script})
		var pf *domain.ProducerFailureError
		if !errors.As(err, &pf) || pf.State != "EXIT_3" || pf.Detail != "moviepy missing" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("should time out long scripts", func(t *testing.T) {
		script := writeScript(t, "exec sleep 5\n")
		_, err := render.NewExecRenderer("sh", 50*time.Millisecond, "", nil).Render(ctx, adapter.RenderRequest{ProjectID: "p1", ScriptPath: script})
		if !errors.Is(err, domain.ErrProducerTimeout) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("should report a missing interpreter as configuration", func(t *testing.T) {
		_, err := render.NewExecRenderer("no-such-interpreter-xyz", time.Minute, "", nil).Render(ctx, adapter.RenderRequest{ScriptPath: "x"})
		if !errors.Is(err, domain.ErrConfigurationMissing) {
			t.Fatalf("got %v", err)
		}
	})
}
