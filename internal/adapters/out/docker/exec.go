package docker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/zerowrap"
	"github.com/docker/docker/api/types/container"

	"github.com/rcarmo/guerite/internal/boundaries/out"
)

// ExecInContainer runs a lifecycle hook command inside a running container
// (§4.9) and waits for it to finish. The caller is expected to bound the
// hook's own timeout with context.WithTimeout before calling this.
func (r *Runtime) ExecInContainer(ctx context.Context, nameOrID string, cmd []string) (*out.ExecResult, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("exec: empty command")
	}

	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "ExecInContainer",
		zerowrap.FieldEntityID: nameOrID,
	})
	log := zerowrap.FromCtx(ctx)

	created, err := r.client.ContainerExecCreate(ctx, nameOrID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, log.WrapErr(err, "failed to create exec")
	}

	attach, err := r.client.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, log.WrapErr(err, "failed to attach to exec")
	}
	defer attach.Close()

	stdout, stderr, err := parseExecOutput(attach.Reader)
	if err != nil {
		return nil, log.WrapErr(err, "failed to read exec output")
	}

	inspect, err := r.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, log.WrapErr(err, "failed to inspect exec")
	}

	log.Debug().Int("exit_code", inspect.ExitCode).Msg("hook exec finished")
	return &out.ExecResult{ExitCode: inspect.ExitCode, Stdout: stdout, Stderr: stderr}, nil
}

// parseExecOutput demultiplexes the Docker stdcopy stream format: each
// frame is an 8-byte header (stream id, 3 reserved bytes, big-endian
// uint32 payload size) followed by the payload. Stream id 1 is stdout, 2
// is stderr.
func parseExecOutput(r io.Reader) (stdout, stderr []byte, err error) {
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, err
		}
		size := binary.BigEndian.Uint32(header[4:8])
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, err
		}
		switch header[0] {
		case 1:
			stdout = append(stdout, payload...)
		case 2:
			stderr = append(stderr, payload...)
		}
	}
	return stdout, stderr, nil
}
