package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

const inputSize = 224

// ImageNet normalization used by the exported classifier
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Classifier is a two-class image model (index 0 = bad, 1 = good). It
// ignores the question text and answers "good" or "bad".
type Classifier struct {
	logger  zerolog.Logger
	session *ort.DynamicAdvancedSession
	shape   ort.Shape

	// sessions are not safe for concurrent Run calls
	mu sync.Mutex
}

// NewClassifier loads an ONNX model with one "input" and one "logits" tensor
func NewClassifier(logger zerolog.Logger, modelPath string) (*Classifier, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	sess, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"logits"},
		nil,
	)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create classifier session: %w", err)
	}

	logger.Info().Str("model", modelPath).Msg("frame classifier loaded")

	return &Classifier{
		logger:  logger.With().Str("component", "onnx-classifier").Logger(),
		session: sess,
		shape:   ort.NewShape(1, 3, inputSize, inputSize),
	}, nil
}

// Ask classifies the image at imagePath
func (c *Classifier) Ask(ctx context.Context, imagePath, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := decodeFile(imagePath)
	if err != nil {
		return "", err
	}

	input, err := ort.NewTensor(c.shape, pixelValues(img))
	if err != nil {
		return "", fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		return "", fmt.Errorf("failed to create logits tensor: %w", err)
	}
	defer logits.Destroy()

	c.mu.Lock()
	err = c.session.Run([]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{logits})
	c.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("classifier inference failed: %w", err)
	}

	out := logits.GetData()
	if len(out) < 2 {
		return "", fmt.Errorf("unexpected logits length %d", len(out))
	}

	answer := label(out[0], out[1])
	c.logger.Debug().
		Str("frame", imagePath).
		Float32("bad", out[0]).
		Float32("good", out[1]).
		Str("answer", answer).
		Msg("frame classified")
	return answer, nil
}

// Close releases the session and the ONNX environment
func (c *Classifier) Close() error {
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}

func label(bad, good float32) string {
	if good > bad {
		return "good"
	}
	return "bad"
}

// pixelValues converts img to a normalized float32[1,3,224,224] buffer
func pixelValues(img image.Image) []float32 {
	resized := resize.Resize(inputSize, inputSize, img, resize.Bilinear)

	data := make([]float32, 3*inputSize*inputSize)
	bounds := resized.Bounds()
	plane := inputSize * inputSize

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[i] = (float32(r>>8)/255.0 - channelMean[0]) / channelStd[0]
			data[plane+i] = (float32(g>>8)/255.0 - channelMean[1]) / channelStd[1]
			data[2*plane+i] = (float32(b>>8)/255.0 - channelMean[2]) / channelStd[2]
			i++
		}
	}
	return data
}
