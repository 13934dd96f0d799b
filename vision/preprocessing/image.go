package preprocessing

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync"
)

// Per-channel normalization constants (ImageNet statistics).
var (
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	DefaultStd  = [3]float32{0.229, 0.224, 0.225}
)

// ImageProcessor decodes and normalizes images for model input, reusing
// internal buffers across calls.
type ImageProcessor struct {
	mu            sync.Mutex
	resizeBuffer  *image.RGBA
	processBuffer []float32
	targetSize    int
	mean          [3]float32
	std           [3]float32
}

// NewImageProcessor creates a processor producing targetSize x targetSize
// outputs normalized with the default per-channel mean and std.
func NewImageProcessor(targetSize int) *ImageProcessor {
	return &ImageProcessor{
		targetSize: targetSize,
		mean:       DefaultMean,
		std:        DefaultStd,
	}
}

// ProcessedImage is a decoded image ready for model input, CHW layout.
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// DecodeAndPreprocess decodes a JPEG or PNG image, resizes it to the target
// size, and returns per-channel normalized float32 data in CHW format.
func (p *ImageProcessor) DecodeAndPreprocess(reader io.Reader) (*ProcessedImage, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has empty bounds %v", bounds)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resizeBuffer == nil || p.resizeBuffer.Bounds().Dx() != p.targetSize {
		p.resizeBuffer = image.NewRGBA(image.Rect(0, 0, p.targetSize, p.targetSize))
	}
	target := p.resizeBuffer

	// Nearest-neighbor resize.
	scaleX := float64(width) / float64(p.targetSize)
	scaleY := float64(height) / float64(p.targetSize)
	for y := 0; y < p.targetSize; y++ {
		for x := 0; x < p.targetSize; x++ {
			srcX := bounds.Min.X + int(float64(x)*scaleX)
			srcY := bounds.Min.Y + int(float64(y)*scaleY)
			if srcX >= bounds.Max.X {
				srcX = bounds.Max.X - 1
			}
			if srcY >= bounds.Max.Y {
				srcY = bounds.Max.Y - 1
			}
			target.Set(x, y, img.At(srcX, srcY))
		}
	}

	plane := p.targetSize * p.targetSize
	if len(p.processBuffer) < 3*plane {
		p.processBuffer = make([]float32, 3*plane)
	}
	data := p.processBuffer[:3*plane]

	for y := 0; y < p.targetSize; y++ {
		for x := 0; x < p.targetSize; x++ {
			r, g, b, _ := target.At(x, y).RGBA()
			idx := y*p.targetSize + x
			data[0*plane+idx] = (float32(r)/65535.0 - p.mean[0]) / p.std[0]
			data[1*plane+idx] = (float32(g)/65535.0 - p.mean[1]) / p.std[1]
			data[2*plane+idx] = (float32(b)/65535.0 - p.mean[2]) / p.std[2]
		}
	}

	// The process buffer is reused; hand back a copy.
	result := make([]float32, len(data))
	copy(result, data)

	return &ProcessedImage{
		Data:     result,
		Width:    p.targetSize,
		Height:   p.targetSize,
		Channels: 3,
	}, nil
}

// PreprocessBatch decodes multiple images concurrently with a worker pool.
// Workers hand fully-formed results back before this returns; nothing is
// shared with the caller until every image is done.
func PreprocessBatch(imagePaths []string, targetSize int, maxWorkers int) ([]*ProcessedImage, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	results := make([]*ProcessedImage, len(imagePaths))
	errs := make([]error, len(imagePaths))

	type job struct {
		index int
		path  string
	}

	jobs := make(chan job, len(imagePaths))
	var wg sync.WaitGroup

	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor := NewImageProcessor(targetSize)

			for j := range jobs {
				file, err := os.Open(j.path)
				if err != nil {
					errs[j.index] = err
					continue
				}

				img, err := processor.DecodeAndPreprocess(file)
				file.Close()

				if err != nil {
					errs[j.index] = err
				} else {
					results[j.index] = img
				}
			}
		}()
	}

	for i, path := range imagePaths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to process image %d: %w", i, err)
		}
	}

	return results, nil
}
