// Package sentencetransformers runs sentence-transformers models in a pool of long-lived
// Python worker processes and exposes them as an embedding provider.
//
// Each worker loads the model once and then answers JSON-line requests on stdin/stdout.
// A worker serves one request at a time; the pool hands idle workers to callers.
package sentencetransformers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrPoolClosed is returned by CreateEmbedding after Close.
	ErrPoolClosed = errors.New("sentencetransformers: pool is closed")
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("sentencetransformers: input text is empty")
	// ErrWorkerStartup is returned when a worker process fails to load the model.
	ErrWorkerStartup = errors.New("sentencetransformers: worker failed to start")

	// errWorkerDied marks failures that leave the worker's stdio unusable; the worker is replaced.
	errWorkerDied = errors.New("worker process failed")
)

const (
	// DefaultModel is the model used when Config.Model is empty.
	DefaultModel = "all-MiniLM-L6-v2"

	defaultPython         = "python3"
	defaultStartupTimeout = 10 * time.Minute
	defaultStopTimeout    = 5 * time.Second
	maxLineBytes          = 16 << 20
)

// Config configures the worker pool.
type Config struct {
	// Model is a sentence-transformers model name or local path (default: DefaultModel).
	Model string
	// CacheDir holds the generated venv, the extracted script and downloaded models.
	// Default: <user cache dir>/similarity.
	CacheDir string
	// Python is the interpreter used to create the venv, or to run workers when SkipSetup is set.
	Python string
	// Workers is the number of worker processes (default: 1). Each holds its own copy of the model.
	Workers int
	// Device is passed to SentenceTransformer (e.g. "cpu", "cuda"). Empty lets the library choose.
	Device string
	// SkipSetup runs workers with Python directly instead of a managed venv
	// (for images where sentence-transformers is preinstalled).
	SkipSetup bool
	// StartupTimeout bounds model loading per worker, including the first download (default: 10m).
	StartupTimeout time.Duration
	// StopTimeout is how long a worker may take to exit after stdin is closed before it is killed (default: 5s).
	StopTimeout time.Duration
	Logger      *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}

	if c.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}

		c.CacheDir = filepath.Join(base, "similarity")
	}

	if c.Python == "" {
		c.Python = defaultPython
	}

	if c.Workers <= 0 {
		c.Workers = 1
	}

	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}

	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return c
}

// Pool is an embedding provider backed by Python worker processes. Safe for concurrent use.
type Pool struct {
	cfg       Config
	logger    *slog.Logger
	command   func() *exec.Cmd
	modelsDir string
	dims      int

	idle      chan *slot
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	live map[*worker]struct{}
}

// slot is a stable position in the pool; w is nil after its worker died and until it is restarted.
type slot struct {
	id int
	w  *worker
}

type worker struct {
	id       int
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *os.File
	scanner  *bufio.Scanner
	dims     int
	exited   chan struct{}
	stopOnce sync.Once
}

type workerConfig struct {
	Model       string `json:"model"`
	CacheFolder string `json:"cache_folder"`
	Device      string `json:"device,omitempty"`
}

type readyMessage struct {
	Status       string `json:"status"`
	EmbeddingDim int    `json:"embedding_dim"`
	Error        string `json:"error,omitempty"`
}

type encodeRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// New prepares the Python environment, starts cfg.Workers processes and waits until every
// one has loaded the model. It fails if any worker cannot start.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	env := &environment{dir: cfg.CacheDir, basePython: cfg.Python, logger: cfg.Logger}

	python := cfg.Python

	if cfg.SkipSetup {
		if err := os.MkdirAll(env.pythonDir(), 0o755); err != nil {
			return nil, fmt.Errorf("create python directory: %w", err)
		}

		if err := writeIfChanged(env.scriptPath(), encodeServerScript, 0o644); err != nil {
			return nil, fmt.Errorf("write script: %w", err)
		}
	} else {
		if err := env.prepare(ctx); err != nil {
			return nil, fmt.Errorf("prepare python environment: %w", err)
		}

		python = env.venvBin("python")
	}

	script := env.scriptPath()
	command := func() *exec.Cmd {
		return exec.Command(python, script) //nolint:gosec // interpreter and script are controlled by config
	}

	return start(ctx, cfg, env.modelsDir(), command)
}

func start(ctx context.Context, cfg Config, modelsDir string, command func() *exec.Cmd) (*Pool, error) {
	p := &Pool{
		cfg:       cfg,
		logger:    cfg.Logger,
		command:   command,
		modelsDir: modelsDir,
		idle:      make(chan *slot, cfg.Workers),
		closed:    make(chan struct{}),
		live:      make(map[*worker]struct{}),
	}

	p.logger.Info("starting sentence-transformers workers", "model", cfg.Model, "workers", cfg.Workers)

	workers := make([]*worker, cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		g.Go(func() error {
			w, err := p.startWorker(gctx, i)
			if err != nil {
				return err
			}

			workers[i] = w

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, w := range workers {
			if w != nil {
				p.stopWorker(w)
			}
		}

		return nil, err
	}

	p.dims = workers[0].dims
	for i, w := range workers {
		if w.dims != p.dims {
			p.logger.Warn("worker reported a different embedding dimension", "worker", i, "dims", w.dims, "want", p.dims)
		}

		p.idle <- &slot{id: i, w: w}
	}

	p.logger.Info("sentence-transformers workers ready", "model", cfg.Model, "embedding_dim", p.dims)

	return p, nil
}

// Dimensions returns the embedding size reported by the model.
func (p *Pool) Dimensions() int {
	return p.dims
}

// Model returns the configured model name.
func (p *Pool) Model() string {
	return p.cfg.Model
}

// CreateEmbedding encodes input on an idle worker. Input is sent as-is.
// If ctx ends while the worker is busy, CreateEmbedding returns ctx.Err() and the worker
// rejoins the pool once its reply has been read.
func (p *Pool) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	s, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if s.w == nil {
		w, err := p.startWorker(ctx, s.id)
		if err != nil {
			p.release(s)

			return nil, fmt.Errorf("restart worker %d: %w", s.id, err)
		}

		s.w = w
	}

	type result struct {
		vec []float32
		err error
	}

	done := make(chan result, 1)

	go func() {
		vec, err := s.w.encode(input)
		if errors.Is(err, errWorkerDied) {
			p.logger.Warn("sentence-transformers worker failed, will restart on next use", "worker", s.id, "error", err)
			p.stopWorker(s.w)
			s.w = nil
		}

		p.release(s)
		done <- result{vec: vec, err: err}
	}()

	select {
	case r := <-done:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops every worker. In-flight requests finish or fail; later calls return ErrPoolClosed.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)

		p.mu.Lock()
		workers := make([]*worker, 0, len(p.live))
		for w := range p.live {
			workers = append(workers, w)
		}
		p.mu.Unlock()

		var wg sync.WaitGroup
		for _, w := range workers {
			wg.Add(1)

			go func() {
				defer wg.Done()
				p.stopWorker(w)
			}()
		}

		wg.Wait()
		p.logger.Info("sentence-transformers workers stopped")
	})

	return nil
}

func (p *Pool) acquire(ctx context.Context) (*slot, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case s := <-p.idle:
		select {
		case <-p.closed:
			p.idle <- s

			return nil, ErrPoolClosed
		default:
			return s, nil
		}
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(s *slot) {
	select {
	case <-p.closed:
		if s.w != nil {
			p.stopWorker(s.w)
		}
	default:
	}

	p.idle <- s
}

// workerEnv is added to every worker's environment. Requests are UTF-8 JSON regardless of the
// host locale, so stdio encoding is pinned.
var workerEnv = []string{
	"PYTHONUNBUFFERED=1",
	"PYTHONIOENCODING=utf-8",
	"TOKENIZERS_PARALLELISM=false",
}

// startWorker launches one process, sends it the model config and waits for its ready line.
func (p *Pool) startWorker(ctx context.Context, id int) (*worker, error) {
	cmd := p.command()
	cmd.Env = append(cmd.Environ(), workerEnv...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// An explicit pipe keeps cmd.Wait from closing stdout before buffered lines are read.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()

		return nil, fmt.Errorf("start worker %d: %w", id, err)
	}

	_ = stdoutW.Close()

	scanner := bufio.NewScanner(stdoutR)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	w := &worker{
		id:      id,
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdoutR,
		scanner: scanner,
		exited:  make(chan struct{}),
	}

	go func() {
		_ = cmd.Wait()
		close(w.exited)
	}()

	p.mu.Lock()
	p.live[w] = struct{}{}
	p.mu.Unlock()

	if err := p.handshake(ctx, w); err != nil {
		p.stopWorker(w)

		return nil, fmt.Errorf("worker %d: %w", id, err)
	}

	p.logger.Debug("sentence-transformers worker ready", "worker", id, "embedding_dim", w.dims)

	return w, nil
}

func (p *Pool) handshake(ctx context.Context, w *worker) error {
	cfgLine, err := json.Marshal(workerConfig{
		Model:       p.cfg.Model,
		CacheFolder: p.modelsDir,
		Device:      p.cfg.Device,
	})
	if err != nil {
		return fmt.Errorf("marshal worker config: %w", err)
	}

	if _, err := w.stdin.Write(append(cfgLine, '\n')); err != nil {
		return fmt.Errorf("send worker config: %w", err)
	}

	type readResult struct {
		msg readyMessage
		err error
	}

	done := make(chan readResult, 1)

	go func() {
		var r readResult

		line, err := w.readLine()
		if err != nil {
			r.err = err
		} else if err := json.Unmarshal(line, &r.msg); err != nil {
			r.err = fmt.Errorf("parse ready message: %w", err)
		}

		done <- r
	}()

	timer := time.NewTimer(p.cfg.StartupTimeout)
	defer timer.Stop()

	var r readResult

	select {
	case r = <-done:
	case <-timer.C:
		_ = w.cmd.Process.Kill()
		<-done

		return fmt.Errorf("%w: model not loaded within %s", ErrWorkerStartup, p.cfg.StartupTimeout)
	case <-ctx.Done():
		_ = w.cmd.Process.Kill()
		<-done

		return fmt.Errorf("wait for worker: %w", ctx.Err())
	}

	if r.err != nil {
		return fmt.Errorf("%w: %w", ErrWorkerStartup, r.err)
	}

	if r.msg.Status != "ready" {
		if r.msg.Error != "" {
			return fmt.Errorf("%w: %s", ErrWorkerStartup, r.msg.Error)
		}

		return fmt.Errorf("%w: unexpected status %q", ErrWorkerStartup, r.msg.Status)
	}

	w.dims = r.msg.EmbeddingDim

	return nil
}

// stopWorker closes stdin so the script exits its read loop, and kills it after StopTimeout.
func (p *Pool) stopWorker(w *worker) {
	w.stopOnce.Do(func() {
		p.mu.Lock()
		delete(p.live, w)
		p.mu.Unlock()

		_ = w.stdin.Close()

		select {
		case <-w.exited:
		case <-time.After(p.cfg.StopTimeout):
			p.logger.Warn("sentence-transformers worker did not exit, killing", "worker", w.id)

			_ = w.cmd.Process.Kill()
			<-w.exited
		}

		_ = w.stdout.Close()
	})
}

func (w *worker) readLine() ([]byte, error) {
	if w.scanner.Scan() {
		return w.scanner.Bytes(), nil
	}

	if err := w.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdout: %w", err)
	}

	return nil, io.ErrUnexpectedEOF
}

// encode sends one request and reads one reply. Errors that desynchronize the stream
// are wrapped with errWorkerDied.
func (w *worker) encode(text string) ([]float32, error) {
	req, err := json.Marshal(encodeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := w.stdin.Write(append(req, '\n')); err != nil {
		return nil, fmt.Errorf("%w: write request: %w", errWorkerDied, err)
	}

	line, err := w.readLine()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errWorkerDied, err)
	}

	var resp encodeResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", errWorkerDied, err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("python error: %s", resp.Error)
	}

	return resp.Embedding, nil
}
