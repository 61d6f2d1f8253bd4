package render

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeBridge serves the bridge protocol from a goroutine. handle gets
// each request and returns the result or an error message.
func startFakeBridge(t *testing.T, handle func(req bridgeRequest) (any, string)) (*BridgeHost, *bytes.Buffer) {
	t.Helper()

	reqR, reqW := io.Pipe()
	repR, repW := io.Pipe()
	logs := &bytes.Buffer{}

	go func() {
		defer repW.Close()
		fmt.Fprintln(repW, "Blender 3.6.0 (hash abc)")
		fmt.Fprintln(repW, replyPrefix+`{"id":0,"ok":true,"result":"3.6.0"}`)
		sc := bufio.NewScanner(reqR)
		for sc.Scan() {
			var req bridgeRequest
			if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
				return
			}
			if req.Op == "close" {
				fmt.Fprintf(repW, "%s{\"id\":%d,\"ok\":true}\n", replyPrefix, req.ID)
				return
			}
			fmt.Fprintln(repW, "Fra:1 Mem:12.00M | Rendering")
			result, errMsg := handle(req)
			rep := bridgeReply{ID: req.ID, OK: errMsg == "", Error: errMsg}
			if result != nil {
				rep.Result, _ = json.Marshal(result)
			}
			data, _ := json.Marshal(rep)
			fmt.Fprintln(repW, replyPrefix+string(data))
		}
	}()

	h := newBridgeHost(repR, reqW, logs)
	require.NoError(t, h.handshake())
	t.Cleanup(func() { _ = h.Close() })
	return h, logs
}

func TestBridgeHostRoundTrip(t *testing.T) {
	var seen []bridgeRequest
	h, logs := startFakeBridge(t, func(req bridgeRequest) (any, string) {
		seen = append(seen, req)
		switch req.Op {
		case "lookup":
			return "node:1", ""
		case "select_device":
			return []string{"RTX A"}, ""
		case "bind_image":
			return "", ""
		}
		return nil, ""
	})
	assert.Equal(t, "3.6.0", h.Version)

	node, err := h.Lookup("Material.Water", "Amplifier")
	require.NoError(t, err)
	assert.Equal(t, Handle("node:1"), node)

	used, err := h.SelectDevice(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"RTX A"}, used)

	prev, err := h.BindImage("node:1", "image:1")
	require.NoError(t, err)
	assert.Equal(t, Handle(""), prev)

	require.NoError(t, h.InsertKeyframe(node, NoiseWInput, 100, 42.5))
	require.Len(t, seen, 4)
	last := seen[3]
	assert.Equal(t, "insert_keyframe", last.Op)
	assert.Equal(t, 4, last.ID)
	assert.EqualValues(t, 100, last.Args["frame"])
	assert.EqualValues(t, 42.5, last.Args["value"])

	assert.Contains(t, logs.String(), "Blender 3.6.0")
	assert.Contains(t, logs.String(), "Rendering")
}

func TestBridgeHostReportsRemoteError(t *testing.T) {
	h, _ := startFakeBridge(t, func(req bridgeRequest) (any, string) {
		return nil, "KeyError: 'Material.Missing'"
	})

	_, err := h.Lookup("Material.Missing", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup: KeyError")
}

func TestBridgeHostClosed(t *testing.T) {
	h, _ := startFakeBridge(t, func(req bridgeRequest) (any, string) { return nil, "" })
	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.RenderStill("x"), ErrBridgeClosed)
	require.NoError(t, h.Close())
}

func TestBridgeHostRejectsBadFrameRange(t *testing.T) {
	h, _ := startFakeBridge(t, func(req bridgeRequest) (any, string) { return nil, "" })
	assert.Error(t, h.SetFrameRange(10, 1))
	assert.NoError(t, h.SetFrameRange(1, 100))
}

func TestBridgeOptionsArgsLeaveDeviceToBridge(t *testing.T) {
	t.Parallel()

	opts := BridgeOptions{Blender: "blender", BlendFile: "water.blend"}
	args := opts.Args("/tmp/bridge.py")
	assert.Equal(t, []string{"-b", "water.blend", "-P", "/tmp/bridge.py"}, args)
	assert.NotContains(t, args, "--gpu_id")
}
