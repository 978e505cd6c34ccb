package engine

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// SubprocessProvider creates engines backed by an external inference
// service process. Frames are streamed to the service as length-prefixed
// JPEG payloads; results come back as one JSON line per frame.
type SubprocessProvider struct {
	// ScriptPath overrides service script discovery.
	ScriptPath string
	// Python overrides interpreter discovery.
	Python string
	// Log receives engine diagnostics. Defaults to the standard logger.
	Log *logrus.Logger
}

func (p *SubprocessProvider) logger() *logrus.Logger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

func (p *SubprocessProvider) newProcess(opts Options, mode string) (*serviceProcess, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model path %q: %w", opts.ModelPath, err)
	}

	scriptPath := p.ScriptPath
	if scriptPath == "" {
		scriptPath = findServiceScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("inference service script not found")
	}

	python := p.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	return &serviceProcess{
		python: python,
		script: scriptPath,
		args: []string{
			"--mode", mode,
			"--model", opts.ModelPath,
			"--num-hands", fmt.Sprintf("%d", opts.NumHands),
			"--min-detection-confidence", fmt.Sprintf("%g", opts.MinDetectionConfidence),
			"--min-presence-confidence", fmt.Sprintf("%g", opts.MinPresenceConfidence),
			"--min-tracking-confidence", fmt.Sprintf("%g", opts.MinTrackingConfidence),
		},
		log: p.logger().WithField("mode", mode),
	}, nil
}

// NewLandmarker starts a live-stream service process. Results are read by
// a dedicated goroutine and handed to onResult; that goroutine is the
// engine-owned result thread of the async path.
func (p *SubprocessProvider) NewLandmarker(opts Options, onResult ResultFunc) (Landmarker, error) {
	proc, err := p.newProcess(opts, "livestream")
	if err != nil {
		return nil, fmt.Errorf("create landmarker: %w", err)
	}
	if err := proc.start(); err != nil {
		return nil, fmt.Errorf("create landmarker: %w", err)
	}
	lm := &subprocessLandmarker{proc: proc, onResult: onResult}
	go lm.readLoop()
	return lm, nil
}

// NewRecognizer starts a video-mode service process. Recognition is
// synchronous: one response line per submitted frame, read on the caller's
// goroutine.
func (p *SubprocessProvider) NewRecognizer(opts Options) (Recognizer, error) {
	proc, err := p.newProcess(opts, "video")
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	if err := proc.start(); err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	return &subprocessRecognizer{proc: proc}, nil
}

// serviceProcess manages the external service child process and its pipes.
type serviceProcess struct {
	python string
	script string
	args   []string
	log    *logrus.Entry

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func (sp *serviceProcess) start() error {
	sp.cmd = exec.Command(sp.python, append([]string{sp.script}, sp.args...)...)

	stdin, err := sp.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := sp.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	sp.cmd.Stderr = os.Stderr

	if err := sp.cmd.Start(); err != nil {
		return fmt.Errorf("start inference service: %w", err)
	}

	sp.stdin = stdin
	sp.stdout = bufio.NewReader(stdout)
	return nil
}

// writeFrame encodes the image as JPEG and sends it with a length and
// timestamp header. The caller keeps ownership of the image either way;
// paths that consume frames close it themselves.
func (sp *serviceProcess) writeFrame(img *Image, timestampMs int64) error {
	buf, err := gocv.IMEncode(".jpg", *img.Mat())
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(data)))
	binary.BigEndian.PutUint64(header[4:12], uint64(timestampMs))

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.stdin == nil {
		return fmt.Errorf("inference service not running")
	}
	if _, err := sp.stdin.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := sp.stdin.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readLine reads one raw response line. An error here means the pipe is
// gone, not that a frame failed. The reader is snapshotted under the lock
// so a concurrent close cannot pull it out from under a blocked read.
func (sp *serviceProcess) readLine() (string, error) {
	sp.mu.Lock()
	stdout := sp.stdout
	sp.mu.Unlock()
	if stdout == nil {
		return "", fmt.Errorf("inference service not running")
	}

	line, err := stdout.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// parseResponse decodes one JSON response line. A service-reported error
// comes back as a per-frame error with its timestamp intact.
func parseResponse(line string) (*Result, int64, error) {
	var response struct {
		TimestampMs int64  `json:"timestamp_ms"`
		Error       string `json:"error"`
		Hands       []struct {
			Handedness []Category `json:"handedness"`
			Gestures   []Category `json:"gestures"`
			Points     []Point    `json:"points"`
		} `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, 0, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, response.TimestampMs, fmt.Errorf("inference service: %s", response.Error)
	}

	res := &Result{}
	for _, h := range response.Hands {
		res.Handedness = append(res.Handedness, h.Handedness)
		res.Landmarks = append(res.Landmarks, h.Points)
		res.Gestures = append(res.Gestures, h.Gestures)
	}
	return res, response.TimestampMs, nil
}

func (sp *serviceProcess) close() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.cmd == nil {
		return nil
	}
	if sp.stdin != nil {
		sp.stdin.Close()
	}
	err := sp.cmd.Wait()
	sp.cmd = nil
	sp.stdin = nil
	sp.stdout = nil
	return err
}

type subprocessLandmarker struct {
	proc     *serviceProcess
	onResult ResultFunc

	closeOnce sync.Once
	closeErr  error
}

// DetectAsync submits a frame without waiting for the result. On success
// the frame has been handed off and ownership passes to the engine, so the
// image is closed here; on failure the caller keeps it.
func (l *subprocessLandmarker) DetectAsync(img *Image, timestampMs int64) error {
	if err := l.proc.writeFrame(img, timestampMs); err != nil {
		return err
	}
	img.Close()
	return nil
}

// readLoop pumps responses into the result callback until the service
// pipe closes. Per-frame service errors are delivered as failed results;
// only a broken pipe ends the loop.
func (l *subprocessLandmarker) readLoop() {
	for {
		line, err := l.proc.readLine()
		if err != nil {
			l.proc.log.WithError(err).Debug("result stream ended")
			return
		}
		res, ts, err := parseResponse(line)
		if l.onResult != nil {
			l.onResult(res, ts, err)
		}
	}
}

func (l *subprocessLandmarker) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.proc.close()
	})
	return l.closeErr
}

type subprocessRecognizer struct {
	proc *serviceProcess

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// RecognizeForVideo submits a frame and blocks until the service answers.
func (r *subprocessRecognizer) RecognizeForVideo(img *Image, timestampMs int64) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.proc.writeFrame(img, timestampMs); err != nil {
		return nil, err
	}
	line, err := r.proc.readLine()
	if err != nil {
		return nil, err
	}
	res, _, err := parseResponse(line)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *subprocessRecognizer) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.proc.close()
	})
	return r.closeErr
}

// findServiceScript looks for the inference service script in common
// locations, mirroring how the binary is deployed.
func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/handtrack_service.py",
		"../scripts/handtrack_service.py",
		filepath.Join(execDir, "scripts/handtrack_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/handtrack_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
