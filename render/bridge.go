package render

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

//go:embed bridge.py
var bridgeScript []byte

const replyPrefix = "@@water "

// ErrBridgeClosed is returned by calls made after the renderer exited.
var ErrBridgeClosed = errors.New("renderer bridge closed")

type bridgeRequest struct {
	ID   int            `json:"id"`
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`
}

type bridgeReply struct {
	ID     int             `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// BridgeOptions configures NewBridgeHost.
type BridgeOptions struct {
	Blender   string
	BlendFile string
	// Script overrides the embedded bridge script.
	Script string
	// Log receives every renderer output line that is not a bridge reply.
	Log io.Writer
}

// Args is the renderer command line for running script in batch mode. Device
// selection is not passed here; workers send select_device over the bridge.
func (o BridgeOptions) Args(script string) []string {
	return []string{"-b", o.BlendFile, "-P", script}
}

// BridgeHost is a Host backed by a renderer process running the bridge
// script. Requests are JSON lines on the renderer's stdin; replies are
// prefixed lines on its stdout.
type BridgeHost struct {
	mu      sync.Mutex
	in      io.WriteCloser
	lines   *bufio.Scanner
	log     io.Writer
	nextID  int
	closed  bool
	cmd     *exec.Cmd
	tmpFile string
	Version string
}

// NewBridgeHost starts the renderer in batch mode and waits for the bridge
// to announce itself.
func NewBridgeHost(ctx context.Context, opts BridgeOptions) (*BridgeHost, error) {
	script := opts.Script
	var tmpFile string
	if script == "" {
		f, err := os.CreateTemp("", "water-bridge-*.py")
		if err != nil {
			return nil, fmt.Errorf("write bridge script: %w", err)
		}
		if _, err := f.Write(bridgeScript); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("write bridge script: %w", err)
		}
		f.Close()
		script, tmpFile = f.Name(), f.Name()
	}

	logw := opts.Log
	if logw == nil {
		logw = os.Stderr
	}

	cmd := exec.CommandContext(ctx, opts.Blender, opts.Args(script)...)
	cmd.Stderr = logw
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		if tmpFile != "" {
			os.Remove(tmpFile)
		}
		return nil, fmt.Errorf("start renderer %s: %w", opts.Blender, err)
	}

	h := newBridgeHost(stdout, stdin, logw)
	h.cmd = cmd
	h.tmpFile = tmpFile
	if err := h.handshake(); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

func newBridgeHost(out io.Reader, in io.WriteCloser, logw io.Writer) *BridgeHost {
	sc := bufio.NewScanner(out)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &BridgeHost{in: in, lines: sc, log: logw, nextID: 1}
}

func (h *BridgeHost) handshake() error {
	rep, err := h.readReply()
	if err != nil {
		return fmt.Errorf("renderer bridge did not start: %w", err)
	}
	if rep.ID != 0 || !rep.OK {
		return fmt.Errorf("unexpected bridge greeting %+v", rep)
	}
	_ = json.Unmarshal(rep.Result, &h.Version)
	return nil
}

// readReply returns the next bridge reply, forwarding other output lines to the log.
func (h *BridgeHost) readReply() (bridgeReply, error) {
	for h.lines.Scan() {
		line := h.lines.Text()
		rest, ok := strings.CutPrefix(line, replyPrefix)
		if !ok {
			fmt.Fprintln(h.log, line)
			continue
		}
		var rep bridgeReply
		if err := json.Unmarshal([]byte(rest), &rep); err != nil {
			return rep, fmt.Errorf("decode bridge reply: %w", err)
		}
		return rep, nil
	}
	if err := h.lines.Err(); err != nil {
		return bridgeReply{}, err
	}
	return bridgeReply{}, ErrBridgeClosed
}

func (h *BridgeHost) call(op string, args map[string]any, result any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrBridgeClosed
	}

	req := bridgeRequest{ID: h.nextID, Op: op, Args: args}
	h.nextID++
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := h.in.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rep, err := h.readReply()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rep.ID != req.ID {
		return fmt.Errorf("%s: reply id %d does not match request %d", op, rep.ID, req.ID)
	}
	if !rep.OK {
		return fmt.Errorf("%s: %s", op, rep.Error)
	}
	if result != nil && len(rep.Result) > 0 {
		if err := json.Unmarshal(rep.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", op, err)
		}
	}
	return nil
}

func (h *BridgeHost) Lookup(material, node string) (Handle, error) {
	var out Handle
	err := h.call("lookup", map[string]any{"material": material, "node": node}, &out)
	return out, err
}

func (h *BridgeHost) SetFrameRange(first, last int) error {
	if first > last {
		return fmt.Errorf("frame range %d > %d", first, last)
	}
	return h.call("set_frame_range", map[string]any{"first": first, "last": last}, nil)
}

func (h *BridgeHost) SelectDevice(gpu int) ([]string, error) {
	var used []string
	err := h.call("select_device", map[string]any{"gpu": gpu}, &used)
	return used, err
}

func (h *BridgeHost) LoadImage(path string) (Handle, error) {
	var out Handle
	err := h.call("load_image", map[string]any{"path": path}, &out)
	return out, err
}

func (h *BridgeHost) BindImage(slot, image Handle) (Handle, error) {
	var prev Handle
	err := h.call("bind_image", map[string]any{"slot": slot, "image": image}, &prev)
	return prev, err
}

func (h *BridgeHost) ReleaseImage(image Handle) error {
	return h.call("release_image", map[string]any{"image": image}, nil)
}

func (h *BridgeHost) SetInput(node Handle, input int, value float64) error {
	return h.call("set_input", map[string]any{"node": node, "input": input, "value": value}, nil)
}

func (h *BridgeHost) InsertKeyframe(node Handle, input int, frame int, value float64) error {
	return h.call("insert_keyframe", map[string]any{"node": node, "input": input, "frame": frame, "value": value}, nil)
}

func (h *BridgeHost) Unlink(node Handle, output int) error {
	return h.call("unlink", map[string]any{"node": node, "output": output}, nil)
}

func (h *BridgeHost) Link(from Handle, output int, to Handle, input int) error {
	return h.call("link", map[string]any{"from": from, "output": output, "to": to, "input": input}, nil)
}

func (h *BridgeHost) RenderStill(path string) error {
	return h.call("render_still", map[string]any{"path": path}, nil)
}

func (h *BridgeHost) RenderAnimation(pattern string) error {
	return h.call("render_animation", map[string]any{"path": pattern}, nil)
}

// Close asks the bridge to exit and waits for the renderer process.
func (h *BridgeHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	req, _ := json.Marshal(bridgeRequest{ID: h.nextID, Op: "close"})
	_, _ = h.in.Write(append(req, '\n'))
	_, _ = h.readReply()
	h.closed = true
	err := h.in.Close()
	h.mu.Unlock()

	if h.cmd != nil {
		if werr := h.cmd.Wait(); werr != nil {
			err = errors.Join(err, fmt.Errorf("renderer exited: %w", werr))
		}
	}
	if h.tmpFile != "" {
		_ = os.Remove(h.tmpFile)
	}
	return err
}
