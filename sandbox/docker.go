// Package sandbox provides a container-isolated Execute path for Backend,
// for deployments where the bare-subprocess HostBackend.Execute is too
// permissive (it runs "sh -c" directly against the backend's root
// directory on the host). Grounded on docker/docker + docker/go-connections
// appearing in the teacher's go.mod with no in-tree consumer before this
// expansion gave them one.
package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// Runner executes shell commands inside a short-lived container, mounting
// no host paths: inputs arrive via CopyToContainer and output is read
// back from the container's logs, so a blocked or malicious command cannot escape to
// the host filesystem the way HostBackend.Execute's direct os/exec can.
type Runner struct {
	cli         *client.Client
	image       string
	workdir     string
	execTimeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithImage overrides the default "alpine:3.20" container image.
func WithImage(image string) Option {
	return func(r *Runner) { r.image = image }
}

// WithExecTimeout bounds how long a single command may run before its
// container is killed.
func WithExecTimeout(d time.Duration) Option {
	return func(r *Runner) { r.execTimeout = d }
}

// NewRunner dials the Docker daemon via the environment (DOCKER_HOST, TLS
// vars, or the default socket) and returns a ready Runner.
func NewRunner(opts ...Option) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: connect to docker: %w", err)
	}
	r := &Runner{
		cli:         cli,
		image:       "alpine:3.20",
		workdir:     "/workspace",
		execTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the underlying Docker client.
func (r *Runner) Close() error { return r.cli.Close() }

// Result mirrors agentrt.ExecResult without importing the root package
// (sandbox is a leaf dependency of it, not the reverse).
type Result struct {
	ExitCode int
	Output   string
}

// EnsureImage pulls the configured image if it is not already present
// locally. Safe to call before every Run; the daemon no-ops a redundant
// pull of an image already cached.
func (r *Runner) EnsureImage(ctx context.Context) error {
	rc, err := r.cli.ImagePull(ctx, r.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("sandbox: pull image %s: %w", r.image, err)
	}
	defer rc.Close()
	_, _ = io.Copy(io.Discard, rc)
	return nil
}

// Run creates a fresh container from the configured image, stages files
// into it, runs command under "sh -c", and tears the container down
// unconditionally — no container survives a Run call, resumable or not.
func (r *Runner) Run(ctx context.Context, command string, files map[string]string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.execTimeout)
	defer cancel()

	resp, err := r.cli.ContainerCreate(runCtx, &container.Config{
		Image:      r.image,
		Cmd:        []string{"sh", "-c", command},
		WorkingDir: r.workdir,
		Tty:        false,
	}, &container.HostConfig{
		NetworkMode:  "none",
		AutoRemove:   false,
		PortBindings: nat.PortMap{},
		Resources:    container.Resources{Memory: 256 * 1024 * 1024, NanoCPUs: 1_000_000_000},
		SecurityOpt:  []string{"no-new-privileges"},
		CapDrop:      []string{"ALL"},
	}, nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: create container: %w", err)
	}
	id := resp.ID
	defer func() {
		_ = r.cli.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true})
	}()

	if len(files) > 0 {
		tarball, err := buildTar(files)
		if err != nil {
			return Result{}, err
		}
		if err := r.cli.CopyToContainer(runCtx, id, r.workdir, tarball, container.CopyToContainerOptions{}); err != nil {
			return Result{}, fmt.Errorf("sandbox: stage files: %w", err)
		}
	}

	if err := r.cli.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("sandbox: start container: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(runCtx, id, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			if runCtx.Err() == context.DeadlineExceeded {
				return Result{ExitCode: -1}, fmt.Errorf("sandbox: command timed out after %s", r.execTimeout)
			}
			return Result{}, fmt.Errorf("sandbox: wait container: %w", err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	logs, err := r.cli.ContainerLogs(context.Background(), id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return Result{ExitCode: exitCode}, fmt.Errorf("sandbox: read logs: %w", err)
	}
	defer logs.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, logs)

	return Result{ExitCode: exitCode, Output: buf.String()}, nil
}

// buildTar packages files (path -> content) into a tar stream suitable
// for CopyToContainer.
func buildTar(files map[string]string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("sandbox: tar header for %s: %w", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("sandbox: tar write for %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("sandbox: close tar: %w", err)
	}
	return &buf, nil
}
