package main

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// LocateStrategy finds a single plate candidate in an edge map.
type LocateStrategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	// Locate returns the candidate rectangle in edge-map coordinates, or false.
	Locate(edges gocv.Mat) (image.Rectangle, bool)
}

// PlateRegion is the outcome of plate localization for one frame.
type PlateRegion struct {
	Rect     image.Rectangle
	Found    bool
	Strategy string
}

// PlateLocator tries its strategies in order and returns the first candidate.
type PlateLocator struct {
	strategies []LocateStrategy
}

// NewPlateLocator builds a locator over the given strategies, tried in order.
func NewPlateLocator(strategies ...LocateStrategy) *PlateLocator {
	return &PlateLocator{strategies: strategies}
}

// DefaultPlateLocator returns the quadrilateral contour search followed by the
// area/aspect-ratio fallback.
func DefaultPlateLocator() *PlateLocator {
	return NewPlateLocator(
		QuadContourStrategy{MaxCandidates: 40, Epsilon: 0.018},
		AspectRatioStrategy{MinArea: 200, MaxArea: 50000, MinAspect: 2.0, MaxAspect: 6.0},
	)
}

// Locate runs the strategies until one returns a candidate.
func (l *PlateLocator) Locate(edges gocv.Mat) PlateRegion {
	if edges.Empty() {
		return PlateRegion{}
	}
	for _, s := range l.strategies {
		if rect, ok := s.Locate(edges); ok {
			return PlateRegion{Rect: rect, Found: true, Strategy: s.Name()}
		}
	}
	return PlateRegion{}
}

// QuadContourStrategy accepts the first of the largest contours whose polygon
// approximation has exactly four vertices.
type QuadContourStrategy struct {
	// MaxCandidates caps how many contours, largest first, are inspected.
	MaxCandidates int
	// Epsilon is the approximation tolerance as a fraction of the contour perimeter.
	Epsilon float64
}

// Name implements LocateStrategy.
func (QuadContourStrategy) Name() string { return "quad" }

// Locate implements LocateStrategy.
func (s QuadContourStrategy) Locate(edges gocv.Mat) (image.Rectangle, bool) {
	contours := gocv.FindContours(edges, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	type ranked struct {
		index int
		area  float64
	}
	candidates := make([]ranked, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		candidates = append(candidates, ranked{index: i, area: gocv.ContourArea(contours.At(i))})
	}
	// Stable keeps ties in retrieval order so results are deterministic.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].area > candidates[b].area
	})
	if s.MaxCandidates > 0 && len(candidates) > s.MaxCandidates {
		candidates = candidates[:s.MaxCandidates]
	}

	for _, c := range candidates {
		contour := contours.At(c.index)
		perimeter := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, s.Epsilon*perimeter, true)
		if approx.Size() == 4 {
			rect := gocv.BoundingRect(approx)
			approx.Close()
			return rect, true
		}
		approx.Close()
	}
	return image.Rectangle{}, false
}

// AspectRatioStrategy picks the largest outer contour whose area and bounding box
// aspect ratio fall inside typical plate geometry. It is looser than the quad search
// and relies on the stabilizer to filter its false positives.
type AspectRatioStrategy struct {
	MinArea, MaxArea     float64
	MinAspect, MaxAspect float64
}

// Name implements LocateStrategy.
func (AspectRatioStrategy) Name() string { return "aspect" }

// Locate implements LocateStrategy.
func (s AspectRatioStrategy) Locate(edges gocv.Mat) (image.Rectangle, bool) {
	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best image.Rectangle
	bestArea := 0.0
	found := false
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		rect := gocv.BoundingRect(contour)
		area := gocv.ContourArea(contour)
		if s.accepts(rect, area) && area > bestArea {
			best, bestArea, found = rect, area, true
		}
	}
	return best, found
}

func (s AspectRatioStrategy) accepts(rect image.Rectangle, area float64) bool {
	aspect := 0.0
	if rect.Dy() > 0 {
		aspect = float64(rect.Dx()) / float64(rect.Dy())
	}
	return area > s.MinArea && area < s.MaxArea && aspect > s.MinAspect && aspect < s.MaxAspect
}

// clampRegion intersects rect with the bounds of a cols x rows image.
// An empty result means the region is unusable.
func clampRegion(rect image.Rectangle, cols, rows int) image.Rectangle {
	return rect.Intersect(image.Rect(0, 0, cols, rows))
}
