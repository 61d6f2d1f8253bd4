package render

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// fakeHost records every call as a short string and keeps just enough state
// to check the texture and link invariants.
type fakeHost struct {
	calls []string

	bound   Handle
	loaded  map[Handle]bool
	linked  bool
	nextImg int

	// animDelay stands in for time spent inside the renderer process.
	animDelay time.Duration

	failStill  error
	failAnim   error
	failBind   error
	failLookup string
}

func newFakeHost() *fakeHost {
	return &fakeHost{loaded: map[Handle]bool{}, linked: true}
}

func (f *fakeHost) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeHost) Lookup(material, node string) (Handle, error) {
	f.record("lookup %s/%s", material, node)
	if node == f.failLookup {
		return "", errors.New("no such node")
	}
	return Handle(node), nil
}

func (f *fakeHost) SetFrameRange(first, last int) error {
	f.record("frames %d %d", first, last)
	return nil
}

func (f *fakeHost) SelectDevice(gpu int) ([]string, error) {
	f.record("device %d", gpu)
	return []string{"fake"}, nil
}

func (f *fakeHost) LoadImage(path string) (Handle, error) {
	f.nextImg++
	h := Handle(fmt.Sprintf("image:%d", f.nextImg))
	f.loaded[h] = true
	f.record("load %s", path)
	return h, nil
}

func (f *fakeHost) BindImage(slot, image Handle) (Handle, error) {
	f.record("bind %s", image)
	if f.failBind != nil {
		return "", f.failBind
	}
	prev := f.bound
	f.bound = image
	return prev, nil
}

func (f *fakeHost) ReleaseImage(image Handle) error {
	f.record("release %s", image)
	if !f.loaded[image] {
		return errors.New("unknown image")
	}
	delete(f.loaded, image)
	return nil
}

func (f *fakeHost) SetInput(node Handle, input int, value float64) error {
	f.record("set %s[%d]=%.3f", node, input, value)
	return nil
}

func (f *fakeHost) InsertKeyframe(node Handle, input int, frame int, value float64) error {
	f.record("key %s[%d]@%d=%.3f", node, input, frame, value)
	return nil
}

func (f *fakeHost) Unlink(node Handle, output int) error {
	f.record("unlink %s[%d]", node, output)
	f.linked = false
	return nil
}

func (f *fakeHost) Link(from Handle, output int, to Handle, input int) error {
	f.record("link %s[%d]->%s[%d]", from, output, to, input)
	f.linked = true
	return nil
}

func (f *fakeHost) RenderStill(path string) error {
	f.record("still %s", path)
	return f.failStill
}

func (f *fakeHost) RenderAnimation(pattern string) error {
	f.record("anim %s", pattern)
	time.Sleep(f.animDelay)
	return f.failAnim
}

func (f *fakeHost) Close() error {
	f.record("close")
	return nil
}

func (f *fakeHost) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func testNodes() Nodes {
	return Nodes{Texture: "tex", Coarse: "coarse", Fine: "fine", Amplifier: "amp", Output: "out"}
}
