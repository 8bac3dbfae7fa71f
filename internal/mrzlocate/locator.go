// Package mrzlocate finds the machine readable zone on a document photo.
//
// The zone is two or three lines of dense monospace text running across most of the
// page width near the bottom. Rows are scored by horizontal gradient energy, thresholded
// with the score distribution, grouped into text bands and the lowest wide group wins.
package mrzlocate

import (
	"errors"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/example/gigwork/internal/imageprocessor"
)

// ErrNoMRZ is returned when no band of text looks like a machine readable zone.
var ErrNoMRZ = errors.New("no machine readable zone found")

// Options tune the detector. Zero values fall back to defaults.
type Options struct {
	// WorkWidth is the width the page is scaled down to before analysis.
	WorkWidth int
	// ThresholdStdDevs is added to the mean row energy, in standard deviations.
	ThresholdStdDevs float64
	// MinCoverage is the fraction of column bins a band must span.
	MinCoverage float64
	// MinTopRatio rejects groups starting above this fraction of the page height.
	MinTopRatio float64
}

func (o Options) withDefaults() Options {
	if o.WorkWidth <= 0 {
		o.WorkWidth = 1000
	}
	if o.ThresholdStdDevs == 0 {
		o.ThresholdStdDevs = 0.25
	}
	if o.MinCoverage <= 0 {
		o.MinCoverage = 0.5
	}
	if o.MinTopRatio <= 0 {
		o.MinTopRatio = 0.4
	}
	return o
}

const columnBins = 20

// Locator crops the MRZ out of a document image.
type Locator struct {
	codec imageprocessor.Codec
	opts  Options
}

// New builds a Locator using codec for scaling.
func New(codec imageprocessor.Codec, opts Options) *Locator {
	return &Locator{codec: codec, opts: opts.withDefaults()}
}

type band struct {
	top, bottom int // [top, bottom)
	left, right int // column extent, [left, right)
}

func (b band) height() int { return b.bottom - b.top }

// Locate returns the cropped MRZ region of img.
func (l *Locator) Locate(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	if bounds.Dx() < 2 || bounds.Dy() < 2 {
		return nil, ErrNoMRZ
	}

	work := l.codec.Fit(img, l.opts.WorkWidth, 0)
	gray := imageprocessor.Grayscale(work)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	energy := rowEnergy(gray)
	mean, std := stat.MeanStdDev(energy, nil)
	if std == 0 || math.IsNaN(std) {
		return nil, ErrNoMRZ
	}
	threshold := mean + l.opts.ThresholdStdDevs*std

	active := make([]bool, h)
	for y, e := range energy {
		active[y] = e > threshold
	}
	closeGaps(active, h/100+2)

	minHeight := max(4, h/100)
	var bands []band
	for _, b := range findBands(active) {
		if b.height() < minHeight {
			continue
		}
		left, right, coverage := columnExtent(gray, b)
		if coverage < l.opts.MinCoverage {
			continue
		}
		b.left, b.right = left, right
		bands = append(bands, b)
	}

	group, ok := lowestGroup(bands, int(float64(h)*l.opts.MinTopRatio))
	if !ok {
		return nil, ErrNoMRZ
	}

	pad := max(4, group.height()/4)
	rect := image.Rect(group.left-pad, group.top-pad, group.right+pad, group.bottom+pad).
		Intersect(image.Rect(0, 0, w, h))

	scaleX := float64(bounds.Dx()) / float64(w)
	scaleY := float64(bounds.Dy()) / float64(h)
	original := image.Rect(
		bounds.Min.X+int(math.Floor(float64(rect.Min.X)*scaleX)),
		bounds.Min.Y+int(math.Floor(float64(rect.Min.Y)*scaleY)),
		bounds.Min.X+int(math.Ceil(float64(rect.Max.X)*scaleX)),
		bounds.Min.Y+int(math.Ceil(float64(rect.Max.Y)*scaleY)),
	)
	if original.Empty() {
		return nil, ErrNoMRZ
	}
	return imageprocessor.Crop(img, original), nil
}

// rowEnergy is the mean absolute horizontal gradient of each row.
func rowEnergy(gray *image.Gray) []float64 {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	energy := make([]float64, h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		sum := 0
		for x := 0; x+1 < w; x++ {
			d := int(row[x+1]) - int(row[x])
			if d < 0 {
				d = -d
			}
			sum += d
		}
		energy[y] = float64(sum) / float64(w)
	}
	return energy
}

// closeGaps fills inactive runs shorter than maxGap that sit between active rows.
func closeGaps(active []bool, maxGap int) {
	last := -1
	for y, on := range active {
		if !on {
			continue
		}
		if last >= 0 && y-last-1 > 0 && y-last-1 < maxGap {
			for i := last + 1; i < y; i++ {
				active[i] = true
			}
		}
		last = y
	}
}

func findBands(active []bool) []band {
	var bands []band
	start := -1
	for y, on := range active {
		switch {
		case on && start < 0:
			start = y
		case !on && start >= 0:
			bands = append(bands, band{top: start, bottom: y})
			start = -1
		}
	}
	if start >= 0 {
		bands = append(bands, band{top: start, bottom: len(active)})
	}
	return bands
}

// columnExtent splits the band into column bins and reports which bins carry text.
func columnExtent(gray *image.Gray, b band) (left, right int, coverage float64) {
	w := gray.Bounds().Dx()
	binWidth := max(1, w/columnBins)
	bins := make([]float64, columnBins)
	for y := b.top; y < b.bottom; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := 0; x+1 < w; x++ {
			d := int(row[x+1]) - int(row[x])
			if d < 0 {
				d = -d
			}
			bins[min(x/binWidth, columnBins-1)] += float64(d)
		}
	}

	peak := 0.0
	for _, v := range bins {
		peak = math.Max(peak, v)
	}
	if peak == 0 {
		return 0, 0, 0
	}

	first, last, covered := -1, -1, 0
	for i, v := range bins {
		if v > 0.1*peak {
			covered++
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	left = first * binWidth
	right = min(w, (last+1)*binWidth)
	return left, right, float64(covered) / columnBins
}

// lowestGroup merges neighbouring bands and returns the lowest group starting below minTop.
func lowestGroup(bands []band, minTop int) (band, bool) {
	if len(bands) == 0 {
		return band{}, false
	}
	heights := make([]float64, len(bands))
	for i, b := range bands {
		heights[i] = float64(b.height())
	}
	maxGap := int(2 * stat.Mean(heights, nil))

	var groups []band
	current := bands[0]
	for _, b := range bands[1:] {
		if b.top-current.bottom <= maxGap {
			current.bottom = b.bottom
			current.left = min(current.left, b.left)
			current.right = max(current.right, b.right)
			continue
		}
		groups = append(groups, current)
		current = b
	}
	groups = append(groups, current)

	for i := len(groups) - 1; i >= 0; i-- {
		if groups[i].top >= minTop {
			return groups[i], true
		}
	}
	return band{}, false
}
