// Package compiler turns finished LaTeX source into PDF bytes by shelling out
// to pdflatex. Each call is stateless: a fresh temp directory, two compile
// passes, and cleanup on return.
package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AmyLu0828/the-resume-hub/internal/config"
)

// CompileError carries the human-readable detail extracted from the pdflatex
// log instead of a bare exit status.
type CompileError struct {
	Detail string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("latex compilation failed: %s", e.Detail)
	}
	return fmt.Sprintf("latex compilation failed: %v", e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Compiler runs pdflatex with a bounded timeout.
type Compiler struct {
	command string
	timeout time.Duration
}

// New builds a Compiler from config.
func New(cfg config.LaTeXConfig) *Compiler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Compiler{command: cfg.Command, timeout: timeout}
}

// Compile writes source to a temp dir, runs pdflatex twice (second pass for
// references) and returns the PDF bytes. pdflatex exits nonzero on mere
// warnings, so a run only counts as failed when the log lacks the
// "Output written" line.
func (c *Compiler) Compile(ctx context.Context, source string) ([]byte, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &CompileError{Detail: "empty latex source"}
	}

	tempDir, err := os.MkdirTemp("", "resumehub-latex-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	texFile := filepath.Join(tempDir, "resume.tex")
	if err := os.WriteFile(texFile, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write tex file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for pass := 1; pass <= 2; pass++ {
		if err := c.runPass(ctx, tempDir, texFile); err != nil {
			return nil, err
		}
	}

	pdfFile := filepath.Join(tempDir, "resume.pdf")
	pdfBytes, err := os.ReadFile(pdfFile)
	if err != nil {
		return nil, &CompileError{Detail: "pdf file was not generated", Err: err}
	}

	return pdfBytes, nil
}

func (c *Compiler) runPass(ctx context.Context, dir, texFile string) error {
	cmd := exec.CommandContext(ctx, c.command,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", dir,
		texFile,
	)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return &CompileError{Detail: "compilation timed out", Err: ctx.Err()}
	}
	if err != nil && !strings.Contains(string(output), "Output written") {
		return &CompileError{Detail: extractDetail(output), Err: err}
	}
	return nil
}

// extractDetail pulls the first error lines out of a pdflatex log. LaTeX
// errors start with "!"; when none are present the log tail is returned.
func extractDetail(output []byte) string {
	lines := strings.Split(string(output), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "!") {
			end := i + 3
			if end > len(lines) {
				end = len(lines)
			}
			return strings.TrimSpace(strings.Join(lines[i:end], "\n"))
		}
	}

	const tail = 600
	text := strings.TrimSpace(string(output))
	if len(text) > tail {
		text = text[len(text)-tail:]
	}
	return text
}
