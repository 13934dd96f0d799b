package training

import (
	"encoding/json"
	"fmt"

	"github.com/openfluke/loom/nn"
)

// Model is the classifier collaborator. Forward produces raw per-class
// scores; the trainer softmaxes them before anything downstream sees them.
type Model interface {
	// Forward runs a batch of flattened inputs and returns raw scores of
	// length batchSize * NumClasses().
	Forward(input []float32, batchSize int) ([]float32, error)
	// Backward propagates the loss gradient with respect to the raw scores.
	Backward(grad []float32) error
	// ApplyGradients updates the weights with the given learning rate.
	ApplyGradients(lr float64)
	NumClasses() int
	// Snapshot serializes the current weights; Restore loads them back.
	// Used for best-validation-accuracy checkpoint retention.
	Snapshot() (string, error)
	Restore(state string) error
}

// LoomModel wraps a loom grid network as a Model. The final layer is linear,
// so Forward yields logits and the combined softmax/cross-entropy gradient
// (probability minus one-hot target) back-propagates correctly.
type LoomModel struct {
	net        *nn.Network
	numClasses int
	momentum   float64
}

type layerDef struct {
	Type          string `json:"type"`
	Activation    string `json:"activation,omitempty"`
	InputHeight   int    `json:"input_height,omitempty"`
	OutputHeight  int    `json:"output_height,omitempty"`
	InputWidth    int    `json:"input_width,omitempty"`
	OutputWidth   int    `json:"output_width,omitempty"`
	InputChannels int    `json:"input_channels,omitempty"`
	Filters       int    `json:"filters,omitempty"`
	KernelSize    int    `json:"kernel_size,omitempty"`
	Stride        int    `json:"stride,omitempty"`
	Padding       int    `json:"padding,omitempty"`
}

type networkDef struct {
	BatchSize     int        `json:"batch_size"`
	GridRows      int        `json:"grid_rows"`
	GridCols      int        `json:"grid_cols"`
	LayersPerCell int        `json:"layers_per_cell"`
	Layers        []layerDef `json:"layers"`
}

func buildNetwork(def networkDef) (*nn.Network, error) {
	def.GridRows = len(def.Layers)
	def.GridCols = 1
	def.LayersPerCell = 1

	config, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal network config: %w", err)
	}

	net, err := nn.BuildNetworkFromJSON(string(config))
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}
	net.InitializeWeights()

	return net, nil
}

// NewMLPClassifier builds a fully-connected classifier: ReLU hidden layers
// and a linear output layer of numClasses logits.
func NewMLPClassifier(inputSize int, hiddenSizes []int, numClasses, batchSize int, momentum float64) (*LoomModel, error) {
	if inputSize <= 0 || numClasses < 2 || batchSize <= 0 {
		return nil, fmt.Errorf("invalid classifier dimensions: input %d, classes %d, batch %d", inputSize, numClasses, batchSize)
	}

	var layers []layerDef
	prev := inputSize
	for _, h := range hiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("hidden size must be positive, got %d", h)
		}
		layers = append(layers, layerDef{
			Type:         "dense",
			Activation:   "relu",
			InputHeight:  prev,
			OutputHeight: h,
		})
		prev = h
	}
	layers = append(layers, layerDef{
		Type:         "dense",
		Activation:   "linear",
		InputHeight:  prev,
		OutputHeight: numClasses,
	})

	net, err := buildNetwork(networkDef{BatchSize: batchSize, Layers: layers})
	if err != nil {
		return nil, err
	}

	return &LoomModel{net: net, numClasses: numClasses, momentum: momentum}, nil
}

// NewConvClassifier builds a small convolutional classifier for CHW image
// input: a strided conv feature extractor followed by a ReLU dense layer and
// a linear output layer.
func NewConvClassifier(channels, height, width, numClasses, batchSize int, momentum float64) (*LoomModel, error) {
	if channels <= 0 || height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid input shape %dx%dx%d", channels, height, width)
	}
	if numClasses < 2 || batchSize <= 0 {
		return nil, fmt.Errorf("invalid classifier dimensions: classes %d, batch %d", numClasses, batchSize)
	}

	const (
		filters = 8
		kernel  = 3
		stride  = 2
		padding = 1
	)
	outH := (height+2*padding-kernel)/stride + 1
	outW := (width+2*padding-kernel)/stride + 1
	flat := filters * outH * outW

	layers := []layerDef{
		{
			Type:          "conv2d",
			Activation:    "relu",
			InputChannels: channels,
			Filters:       filters,
			KernelSize:    kernel,
			Stride:        stride,
			Padding:       padding,
			InputHeight:   height,
			InputWidth:    width,
			OutputHeight:  outH,
			OutputWidth:   outW,
		},
		{
			Type:         "dense",
			Activation:   "relu",
			InputHeight:  flat,
			OutputHeight: 128,
		},
		{
			Type:         "dense",
			Activation:   "linear",
			InputHeight:  128,
			OutputHeight: numClasses,
		},
	}

	net, err := buildNetwork(networkDef{BatchSize: batchSize, Layers: layers})
	if err != nil {
		return nil, err
	}

	return &LoomModel{net: net, numClasses: numClasses, momentum: momentum}, nil
}

// Forward runs the network on a flattened batch and returns raw scores.
func (m *LoomModel) Forward(input []float32, batchSize int) ([]float32, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if len(input)%batchSize != 0 {
		return nil, fmt.Errorf("input length %d not divisible by batch size %d", len(input), batchSize)
	}

	m.net.BatchSize = batchSize
	output, _ := m.net.ForwardCPU(input)
	if len(output) != batchSize*m.numClasses {
		return nil, fmt.Errorf("network produced %d outputs, expected %d", len(output), batchSize*m.numClasses)
	}

	return output, nil
}

// Backward propagates the score gradient through the network.
func (m *LoomModel) Backward(grad []float32) error {
	if len(grad) == 0 {
		return fmt.Errorf("gradient must be non-empty")
	}
	m.net.BackwardCPU(grad)
	return nil
}

// ApplyGradients performs an SGD step, with momentum when configured.
func (m *LoomModel) ApplyGradients(lr float64) {
	if m.momentum > 0 {
		m.net.ApplyGradientsSGDMomentum(float32(lr), float32(m.momentum), 0, false)
		return
	}
	m.net.ApplyGradients(float32(lr))
}

// NumClasses returns the number of output classes.
func (m *LoomModel) NumClasses() int {
	return m.numClasses
}

// Snapshot serializes the network weights and architecture.
func (m *LoomModel) Snapshot() (string, error) {
	state, err := m.net.SaveModelToString("classifier")
	if err != nil {
		return "", fmt.Errorf("failed to serialize model: %w", err)
	}
	return state, nil
}

// Restore replaces the network with a previously serialized state.
func (m *LoomModel) Restore(state string) error {
	net, err := nn.LoadModelFromString(state, "classifier")
	if err != nil {
		return fmt.Errorf("failed to load model state: %w", err)
	}
	m.net = net
	return nil
}
