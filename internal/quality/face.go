package quality

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/lumapix/facegraph/internal/domain"
)

// FaceWeights blend the sub-scores into the composite face quality.
// They must sum to 1.0.
type FaceWeights struct {
	Blur       float64
	Lighting   float64
	Size       float64
	Aspect     float64
	Confidence float64
}

func DefaultFaceWeights() FaceWeights {
	return FaceWeights{
		Blur:       0.30,
		Lighting:   0.25,
		Size:       0.20,
		Aspect:     0.10,
		Confidence: 0.15,
	}
}

func (w FaceWeights) Sum() float64 {
	return w.Blur + w.Lighting + w.Size + w.Aspect + w.Confidence
}

func (w FaceWeights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("face quality weights must sum to 1.0, got %v", w.Sum())
	}
	return nil
}

// FaceThresholds hold every numeric knob of the face quality scoring.
type FaceThresholds struct {
	// Laplacian variance bands: below Blurry is very blurry, above
	// Excellent is tack sharp.
	BlurBlurry    float64
	BlurGood      float64
	BlurExcellent float64

	// Lighting: ideal mean brightness window, minimum contrast
	// (standard deviation) and maximum tolerated clipping fraction.
	BrightnessMin float64
	BrightnessMax float64
	ContrastMin   float64
	ClippingMax   float64

	// Plausible and optimal width/height ranges for a human face.
	AspectMin    float64
	AspectMax    float64
	AspectOptMin float64
	AspectOptMax float64

	// Composite thresholds.
	GoodQuality    float64
	LabelExcellent float64
	LabelGood      float64
	LabelFair      float64
}

func DefaultFaceThresholds() FaceThresholds {
	return FaceThresholds{
		BlurBlurry:     50,
		BlurGood:       100,
		BlurExcellent:  500,
		BrightnessMin:  80,
		BrightnessMax:  170,
		ContrastMin:    30,
		ClippingMax:    0.05,
		AspectMin:      0.5,
		AspectMax:      1.6,
		AspectOptMin:   0.8,
		AspectOptMax:   1.2,
		GoodQuality:    60,
		LabelExcellent: 80,
		LabelGood:      60,
		LabelFair:      40,
	}
}

// FaceAnalyzer scores the visual quality of a single face crop. Analyze
// never fails: any I/O or decoding problem produces the deterministic
// zero-quality metrics and a logged diagnostic, so callers can always
// proceed.
type FaceAnalyzer struct {
	weights FaceWeights
	thr     FaceThresholds
	logger  *slog.Logger
}

func NewFaceAnalyzer(weights FaceWeights, thr FaceThresholds, logger *slog.Logger) (*FaceAnalyzer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &FaceAnalyzer{
		weights: weights,
		thr:     thr,
		logger:  logger,
	}, nil
}

// Analyze opens the source image, crops the face bounding box out of it
// and derives the quality sub-scores. confidence is the detector
// confidence in [0,1].
func (a *FaceAnalyzer) Analyze(imagePath string, box domain.BoundingBox, confidence float64) domain.FaceQualityMetrics {
	metrics := a.defaultMetrics()
	metrics.AspectRatio = box.AspectRatio()

	if !box.IsValid() {
		a.logger.Warn("face quality: degenerate bounding box",
			"path", imagePath,
			"width", box.Width,
			"height", box.Height,
		)
		return metrics
	}

	img, err := imaging.Open(imagePath)
	if err != nil {
		a.logger.Warn("face quality: failed to open image",
			"path", imagePath,
			"error", err,
		)
		return metrics
	}

	bounds := img.Bounds()
	imageArea := bounds.Dx() * bounds.Dy()
	if imageArea == 0 {
		a.logger.Warn("face quality: empty image", "path", imagePath)
		return metrics
	}

	rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height).Intersect(bounds)
	if rect.Empty() {
		a.logger.Warn("face quality: bounding box outside image",
			"path", imagePath,
			"box", fmt.Sprintf("%+v", box),
		)
		return metrics
	}

	gray := imaging.Grayscale(imaging.Crop(img, rect))
	pixels, width, height := grayPixels(gray)

	metrics.BlurScore = laplacianVariance(pixels, width, height)
	metrics.LightingScore = a.lightingScore(pixels)
	metrics.SizeScore = sizeScore(100 * float64(box.Area()) / float64(imageArea))

	blurComponent := a.normalizeBlur(metrics.BlurScore)
	aspectComponent := a.aspectScore(metrics.AspectRatio)
	confidenceComponent := clamp01(confidence) * 100

	metrics.OverallQuality = a.weights.Blur*blurComponent +
		a.weights.Lighting*metrics.LightingScore +
		a.weights.Size*metrics.SizeScore +
		a.weights.Aspect*aspectComponent +
		a.weights.Confidence*confidenceComponent
	metrics.QualityLabel = domain.LabelForScore(metrics.OverallQuality,
		a.thr.LabelExcellent, a.thr.LabelGood, a.thr.LabelFair)
	metrics.IsGoodQuality = metrics.OverallQuality >= a.thr.GoodQuality

	return metrics
}

func (a *FaceAnalyzer) defaultMetrics() domain.FaceQualityMetrics {
	return domain.FaceQualityMetrics{
		QualityLabel:  domain.QualityPoor,
		IsGoodQuality: false,
	}
}

// grayPixels flattens a grayscaled NRGBA image into one luminance value
// per pixel.
func grayPixels(img *image.NRGBA) ([]float64, int, int) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]float64, 0, width*height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			offset := img.PixOffset(x, y)
			// after Grayscale R==G==B
			pixels = append(pixels, float64(img.Pix[offset]))
		}
	}
	return pixels, width, height
}

// laplacianVariance convolves the 4-neighbor Laplacian kernel over the
// crop and returns the response variance. Sharp edges produce large
// responses; a defocused crop stays near zero.
func laplacianVariance(pixels []float64, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}

	responses := make([]float64, 0, (width-2)*(height-2))
	var sum float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := pixels[y*width+x]
			r := 4*center -
				pixels[(y-1)*width+x] -
				pixels[(y+1)*width+x] -
				pixels[y*width+x-1] -
				pixels[y*width+x+1]
			responses = append(responses, r)
			sum += r
		}
	}

	mean := sum / float64(len(responses))
	var variance float64
	for _, r := range responses {
		d := r - mean
		variance += d * d
	}
	return variance / float64(len(responses))
}

// lightingScore combines mean brightness, contrast and exposure
// clipping into a 0-100 score. Scores in the 40-90 range are considered
// acceptable lighting.
func (a *FaceAnalyzer) lightingScore(pixels []float64) float64 {
	if len(pixels) == 0 {
		return 0
	}

	var sum float64
	clipped := 0
	for _, p := range pixels {
		sum += p
		if p == 0 || p == 255 {
			clipped++
		}
	}
	mean := sum / float64(len(pixels))

	var variance float64
	for _, p := range pixels {
		d := p - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(pixels)))
	clipRatio := float64(clipped) / float64(len(pixels))

	brightness := 100.0
	switch {
	case mean < a.thr.BrightnessMin:
		brightness = 100 * mean / a.thr.BrightnessMin
	case mean > a.thr.BrightnessMax:
		brightness = 100 * (255 - mean) / (255 - a.thr.BrightnessMax)
	}

	contrast := 100.0
	if stddev < a.thr.ContrastMin {
		contrast = 100 * stddev / a.thr.ContrastMin
	}

	clipping := 100.0
	if clipRatio > a.thr.ClippingMax {
		clipping = math.Max(0, 100-(clipRatio-a.thr.ClippingMax)*400)
	}

	return 0.5*brightness + 0.3*contrast + 0.2*clipping
}

// sizeScore maps the face area percentage of the whole image onto 0-100
// through a monotonically increasing piecewise-linear curve. A face
// covering at least 2% of the frame scores 40 or better.
func sizeScore(areaPct float64) float64 {
	switch {
	case areaPct <= 0:
		return 0
	case areaPct < 1:
		return 20 * areaPct
	case areaPct < 2:
		return 20 + 20*(areaPct-1)
	case areaPct < 5:
		return 40 + 30*(areaPct-2)/3
	case areaPct < 20:
		return 70 + 20*(areaPct-5)/15
	default:
		return math.Min(100, 90+10*(areaPct-20)/80)
	}
}

// normalizeBlur rescales the raw Laplacian variance into the 0-100 range
// used for the composite, preserving the documented bands.
func (a *FaceAnalyzer) normalizeBlur(blur float64) float64 {
	t := a.thr
	switch {
	case blur >= t.BlurExcellent:
		return 100
	case blur >= t.BlurGood:
		return 70 + 30*(blur-t.BlurGood)/(t.BlurExcellent-t.BlurGood)
	case blur >= t.BlurBlurry:
		return 40 + 30*(blur-t.BlurBlurry)/(t.BlurGood-t.BlurBlurry)
	default:
		return 40 * blur / t.BlurBlurry
	}
}

// aspectScore gates on the plausibility of the box proportions rather
// than grading finely: optimal range scores full, plausible range half,
// anything else zero.
func (a *FaceAnalyzer) aspectScore(ratio float64) float64 {
	switch {
	case ratio >= a.thr.AspectOptMin && ratio <= a.thr.AspectOptMax:
		return 100
	case ratio >= a.thr.AspectMin && ratio <= a.thr.AspectMax:
		return 50
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
