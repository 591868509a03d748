package audio

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// FFmpeg decodes any media URL to raw PCM with an ffmpeg subprocess.
type FFmpeg struct {
	Path string // executable, "ffmpeg" when empty
}

// Args returns the ffmpeg arguments used for url.
func (f FFmpeg) Args(url string) []string {
	return []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

// Open starts ffmpeg; closing the reader kills the process and reaps it.
func (f FFmpeg) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, path, f.Args(url)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}

	return &ffmpegReader{ReadCloser: stdout, cmd: cmd, stderr: &stderr}, nil
}

type ffmpegReader struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

func (r *ffmpegReader) Close() error {
	_ = r.ReadCloser.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	if err := r.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(r.stderr.String()); msg != "" {
			zlog.Debug().Msgf("ffmpeg exited: %v: %s", err, msg)
		}
	}
	return nil
}
