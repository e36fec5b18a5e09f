package matcher

import (
	"image"
	"math"
	"runtime"
	"sort"
	"sync"
)

// scoreMap holds one normalized correlation coefficient per placement of the
// template inside the image. Invalid placements hold NaN.
type scoreMap struct {
	width  int
	height int
	scores []float64
}

func (m *scoreMap) at(x, y int) float64 {
	return m.scores[y*m.width+x]
}

// correlate computes the zero-mean normalized cross correlation of tpl over
// img. Window sums come from integral images so only the cross term costs
// O(template area) per placement.
func correlate(img, tpl *image.Gray) *scoreMap {
	iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	if tw > iw || th > ih || tw == 0 || th == 0 {
		return &scoreMap{}
	}

	n := float64(tw * th)

	// zero mean template, so the cross term needs no image mean
	tvals := make([]float32, tw*th)
	var tsum float64
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			tsum += float64(tpl.GrayAt(tpl.Bounds().Min.X+x, tpl.Bounds().Min.Y+y).Y)
		}
	}
	tmean := tsum / n
	var tvar float64
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			v := float64(tpl.GrayAt(tpl.Bounds().Min.X+x, tpl.Bounds().Min.Y+y).Y) - tmean
			tvals[y*tw+x] = float32(v)
			tvar += v * v
		}
	}

	ivals := make([]float32, iw*ih)
	for y := 0; y < ih; y++ {
		for x := 0; x < iw; x++ {
			ivals[y*iw+x] = float32(img.GrayAt(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).Y)
		}
	}
	sum, sqsum := integralImages(ivals, iw, ih)

	out := &scoreMap{width: iw - tw + 1, height: ih - th + 1}
	out.scores = make([]float64, out.width*out.height)

	rows := make(chan int, out.height)
	for y := 0; y < out.height; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				for x := 0; x < out.width; x++ {
					s := windowSum(sum, iw+1, x, y, tw, th)
					sq := windowSum(sqsum, iw+1, x, y, tw, th)
					ivar := sq - s*s/n

					var cross float64
					for ty := 0; ty < th; ty++ {
						irow := ivals[(y+ty)*iw+x : (y+ty)*iw+x+tw]
						trow := tvals[ty*tw : ty*tw+tw]
						var acc float32
						for i, tv := range trow {
							acc += tv * irow[i]
						}
						cross += float64(acc)
					}

					out.scores[y*out.width+x] = normalize(cross, tvar, ivar)
				}
			}
		}()
	}
	wg.Wait()

	return out
}

func normalize(cross, tvar, ivar float64) float64 {
	denom := math.Sqrt(tvar * ivar)
	if denom < 1e-9 {
		return math.NaN()
	}
	score := cross / denom
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return math.NaN()
	}
	// float32 accumulation can overshoot slightly
	return math.Max(-1, math.Min(1, score))
}

// integralImages returns (w+1)*(h+1) summed area tables of values and of
// squared values.
func integralImages(vals []float32, w, h int) ([]float64, []float64) {
	stride := w + 1
	sum := make([]float64, stride*(h+1))
	sqsum := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum, rowSq float64
		for x := 0; x < w; x++ {
			v := float64(vals[y*w+x])
			rowSum += v
			rowSq += v * v
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rowSum
			sqsum[(y+1)*stride+x+1] = sqsum[y*stride+x+1] + rowSq
		}
	}
	return sum, sqsum
}

func windowSum(table []float64, stride, x, y, w, h int) float64 {
	return table[(y+h)*stride+x+w] - table[y*stride+x+w] - table[(y+h)*stride+x] + table[y*stride+x]
}

type peak struct {
	x, y  int
	score float64
}

// peaks returns local maxima scoring at least threshold, best first, capped at
// limit. On plateaus the first position in scan order wins.
func (m *scoreMap) peaks(threshold float64, limit int) []peak {
	var found []peak
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			s := m.at(x, y)
			if math.IsNaN(s) || s < threshold {
				continue
			}
			if m.isPeak(x, y, s) {
				found = append(found, peak{x: x, y: y, score: s})
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].score > found[j].score
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found
}

func (m *scoreMap) isPeak(x, y int, s float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= m.width || ny >= m.height {
				continue
			}
			ns := m.at(nx, ny)
			if math.IsNaN(ns) {
				continue
			}
			earlier := dy < 0 || (dy == 0 && dx < 0)
			if ns > s || (earlier && ns == s) {
				return false
			}
		}
	}
	return true
}

// best returns the highest finite score, or false when none exists.
func (m *scoreMap) best() (peak, bool) {
	result := peak{score: math.Inf(-1)}
	found := false
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			s := m.at(x, y)
			if math.IsNaN(s) {
				continue
			}
			if s > result.score {
				result = peak{x: x, y: y, score: s}
				found = true
			}
		}
	}
	return result, found
}
