// Package render produces the deterministic raster overlays used for human
// review: keypoint markers plus the fixed skeleton edges drawn over the
// original image.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"path"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"posescope/keypoints"
	"posescope/storage"
)

const (
	markerRadius = 5
	edgeWidth    = 2
)

var (
	markerColor = color.RGBA{R: 0xff, A: 0xff}
	edgeColor   = color.RGBA{B: 0xff, A: 0xff}
	labelColor  = color.Black
)

// PendingPath is the overlay location before approval.
func PendingPath(annotationID uint) string {
	return path.Join(storage.AreaPending, fmt.Sprintf("%d.png", annotationID))
}

// VerifiedPath is the overlay location after approval.
func VerifiedPath(annotationID uint) string {
	return path.Join(storage.AreaVerified, fmt.Sprintf("%d.png", annotationID))
}

// Overlay draws the skeleton edges, keypoint markers and index labels over a
// copy of the base image. Rendering the same input twice yields identical
// output.
func Overlay(base image.Image, pts keypoints.Set) *image.RGBA {
	bounds := base.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, base, bounds.Min, draw.Src)

	// Edges first so markers sit on top.
	for _, edge := range keypoints.Skeleton {
		if edge[0] >= len(pts) || edge[1] >= len(pts) {
			continue
		}
		drawLine(out, pts[edge[0]], pts[edge[1]])
	}

	labeler := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
	}
	for idx, p := range pts {
		drawMarker(out, p)
		labeler.Dot = fixed.P(int(p.X)+markerRadius+2, int(p.Y)-markerRadius-2)
		labeler.DrawString(strconv.Itoa(idx + 1))
	}
	return out
}

// drawMarker fills a disc of markerRadius around the point.
func drawMarker(img *image.RGBA, p keypoints.Point) {
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	for dy := -markerRadius; dy <= markerRadius; dy++ {
		for dx := -markerRadius; dx <= markerRadius; dx++ {
			if dx*dx+dy*dy <= markerRadius*markerRadius {
				img.Set(cx+dx, cy+dy, markerColor)
			}
		}
	}
}

// drawLine rasterizes a segment of edgeWidth between two points.
func drawLine(img *image.RGBA, a, b keypoints.Point) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(a.X + dx*t))
		y := int(math.Round(a.Y + dy*t))
		for offY := 0; offY < edgeWidth; offY++ {
			for offX := 0; offX < edgeWidth; offX++ {
				img.Set(x+offX, y+offY, edgeColor)
			}
		}
	}
}
