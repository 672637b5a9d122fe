package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Decrypter is an optional last-resort capability that recovers text from
// files protected by a vendor DRM product. ok is false when it could not.
type Decrypter interface {
	TryDecrypt(ctx context.Context, path string) (text string, ok bool, err error)
}

// CommandDecrypter runs an external helper with the file path as its last
// argument and reads the plain text from stdout
type CommandDecrypter struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewCommandDecrypter parses a helper command line such as "drm-helper --text"
func NewCommandDecrypter(commandLine string) (*CommandDecrypter, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty decrypt helper command")
	}
	bin, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("decrypt helper not available: %w", err)
	}
	return &CommandDecrypter{Command: bin, Args: fields[1:], Timeout: 2 * time.Minute}, nil
}

func (d *CommandDecrypter) TryDecrypt(ctx context.Context, path string) (string, bool, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, d.Args...), path)
	cmd := exec.CommandContext(ctx, d.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", false, fmt.Errorf("decrypt helper failed: %v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := stdout.String()
	if isBlank(text) {
		return "", false, nil
	}
	return text, true, nil
}
