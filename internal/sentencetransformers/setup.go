package sentencetransformers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	scriptName       = "encode_server.py"
	requirementsName = "requirements.txt"
	requirementsMark = ".requirements.sha256"
)

// environment is the on-disk layout under Config.CacheDir:
//
//	python/encode_server.py
//	python/requirements.txt
//	venv/
//	models/   (sentence-transformers cache_folder)
type environment struct {
	dir        string
	basePython string
	logger     *slog.Logger
}

func (e *environment) pythonDir() string { return filepath.Join(e.dir, "python") }
func (e *environment) scriptPath() string {
	return filepath.Join(e.pythonDir(), scriptName)
}
func (e *environment) requirementsPath() string {
	return filepath.Join(e.pythonDir(), requirementsName)
}
func (e *environment) venvDir() string   { return filepath.Join(e.dir, "venv") }
func (e *environment) modelsDir() string { return filepath.Join(e.dir, "models") }

func (e *environment) venvBin(name string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.venvDir(), "Scripts", name+".exe")
	}

	return filepath.Join(e.venvDir(), "bin", name)
}

// prepare writes the embedded script, creates the venv and installs requirements.
// Each step is skipped when already done, so restarts are cheap.
func (e *environment) prepare(ctx context.Context) error {
	if err := os.MkdirAll(e.pythonDir(), 0o755); err != nil {
		return fmt.Errorf("create python directory: %w", err)
	}

	if err := os.MkdirAll(e.modelsDir(), 0o755); err != nil {
		return fmt.Errorf("create models directory: %w", err)
	}

	if err := writeIfChanged(e.scriptPath(), encodeServerScript, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}

	if err := writeIfChanged(e.requirementsPath(), requirements, 0o644); err != nil {
		return fmt.Errorf("write requirements: %w", err)
	}

	if err := e.checkPython(ctx); err != nil {
		return err
	}

	if err := e.createVenv(ctx); err != nil {
		return err
	}

	return e.installRequirements(ctx)
}

func (e *environment) checkPython(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, e.basePython, "--version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("python interpreter %q not usable: %w", e.basePython, err)
	}

	e.logger.Debug("python found", "python", e.basePython, "version", strings.TrimSpace(string(out)))

	return nil
}

func (e *environment) createVenv(ctx context.Context) error {
	if _, err := os.Stat(e.venvBin("python")); err == nil {
		e.logger.Debug("virtual environment already exists", "path", e.venvDir())

		return nil
	}

	e.logger.Info("creating virtual environment", "path", e.venvDir())

	out, err := exec.CommandContext(ctx, e.basePython, "-m", "venv", e.venvDir()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("create venv: %s: %w", bytes.TrimSpace(out), err)
	}

	return nil
}

// installRequirements runs pip only when requirements.txt changed since the last successful install.
func (e *environment) installRequirements(ctx context.Context) error {
	sum := sha256.Sum256(requirements)
	want := hex.EncodeToString(sum[:])
	mark := filepath.Join(e.venvDir(), requirementsMark)

	if got, err := os.ReadFile(mark); err == nil && strings.TrimSpace(string(got)) == want {
		e.logger.Debug("python requirements up to date")

		return nil
	}

	e.logger.Info("installing python requirements (first start may take several minutes)")

	cmd := exec.CommandContext(ctx, e.venvBin("python"), "-m", "pip", "install", "--quiet", "-r", e.requirementsPath())

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pip install: %s: %w", bytes.TrimSpace(out), err)
	}

	if err := os.WriteFile(mark, []byte(want+"\n"), 0o644); err != nil {
		return fmt.Errorf("write requirements marker: %w", err)
	}

	e.logger.Info("python requirements installed")

	return nil
}

// writeIfChanged writes data to path unless the file already holds exactly data.
func writeIfChanged(path string, data []byte, perm os.FileMode) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
