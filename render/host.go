// Package render drives the external renderer for one sample at a time.
//
// The renderer's scene graph is never modelled here. Components only see
// opaque Handles returned by a Host, and every mutation goes through the
// narrow Host capability interface.
package render

import "fmt"

// Handle is an opaque reference to an object living inside the renderer.
type Handle string

// Socket indices of the water material nodes.
const (
	NoiseWInput          = 1
	NoiseScaleInput      = 2
	AmplifierValueInput  = 1
	AmplifierOutput      = 0
	DisplacementInput    = 2
	defaultKeyframeFirst = 1
	defaultKeyframeLast  = 100
	framePlaceholder     = "####"
)

// Host is the subset of the renderer the invoker needs. Every call is
// synchronous: it returns once the renderer has applied the change or
// finished the render.
type Host interface {
	Lookup(material, node string) (Handle, error)
	SetFrameRange(first, last int) error
	SelectDevice(gpu int) ([]string, error)

	LoadImage(path string) (Handle, error)
	// BindImage points slot at image and returns the previously bound image,
	// or "" when the slot was empty.
	BindImage(slot, image Handle) (Handle, error)
	ReleaseImage(image Handle) error

	SetInput(node Handle, input int, value float64) error
	InsertKeyframe(node Handle, input int, frame int, value float64) error
	Unlink(node Handle, output int) error
	Link(from Handle, output int, to Handle, input int) error

	RenderStill(path string) error
	RenderAnimation(pattern string) error
	Close() error
}

// Nodes are the handles the invoker touches on every sample.
type Nodes struct {
	Texture   Handle
	Coarse    Handle
	Fine      Handle
	Amplifier Handle
	Output    Handle
}

// NodeNames locate Nodes inside the renderer's materials.
type NodeNames struct {
	TextureMaterial string
	TextureNode     string
	WaterMaterial   string
	CoarseNode      string
	FineNode        string
	AmplifierNode   string
	OutputNode      string
}

// ResolveNodes looks every node up once.
func ResolveNodes(host Host, names NodeNames) (Nodes, error) {
	var n Nodes
	lookups := []struct {
		dst            *Handle
		material, node string
	}{
		{&n.Texture, names.TextureMaterial, names.TextureNode},
		{&n.Coarse, names.WaterMaterial, names.CoarseNode},
		{&n.Fine, names.WaterMaterial, names.FineNode},
		{&n.Amplifier, names.WaterMaterial, names.AmplifierNode},
		{&n.Output, names.WaterMaterial, names.OutputNode},
	}
	for _, l := range lookups {
		h, err := host.Lookup(l.material, l.node)
		if err != nil {
			return Nodes{}, fmt.Errorf("lookup %s/%s: %w", l.material, l.node, err)
		}
		*l.dst = h
	}
	return n, nil
}
