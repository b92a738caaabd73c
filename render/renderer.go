package render

import (
	"fmt"
	"image"
	"image/jpeg"
	"path"

	xdraw "golang.org/x/image/draw"

	"posescope/keypoints"
	"posescope/storage"
	"posescope/utils"
)

// Renderer ties overlay rasterization to the artifact store.
type Renderer struct {
	store storage.Store
}

// NewRenderer creates a renderer writing through the given store.
func NewRenderer(store storage.Store) *Renderer {
	return &Renderer{store: store}
}

// RenderPending renders the overlay for an annotation into the pending area
// and returns the artifact path. Re-rendering overwrites in place.
func (r *Renderer) RenderPending(annotationID uint, imagePath string, pts keypoints.Set) (string, error) {
	base, err := r.loadImage(imagePath)
	if err != nil {
		return "", err
	}
	buf, err := utils.ImageToPngBuffer(Overlay(base, pts))
	if err != nil {
		return "", fmt.Errorf("render: encode overlay: %w", err)
	}
	out := PendingPath(annotationID)
	if err := r.store.Write(out, *buf); err != nil {
		return "", fmt.Errorf("render: write overlay: %w", err)
	}
	return out, nil
}

// RenderThumbnail scales the image down to fit maxDim and writes it to the
// thumbnail area, returning the artifact path.
func (r *Renderer) RenderThumbnail(identifier, imagePath string, maxDim int) (string, error) {
	base, err := r.loadImage(imagePath)
	if err != nil {
		return "", err
	}
	buf, err := utils.ImageToPngBuffer(Thumbnail(base, maxDim))
	if err != nil {
		return "", fmt.Errorf("render: encode thumbnail: %w", err)
	}
	out := path.Join(storage.AreaThumbnails, identifier+".png")
	if err := r.store.Write(out, *buf); err != nil {
		return "", fmt.Errorf("render: write thumbnail: %w", err)
	}
	return out, nil
}

// RenderThumbnailJpg is the jpeg variant for bandwidth-sensitive clients.
func (r *Renderer) RenderThumbnailJpg(identifier, imagePath string, maxDim int) (string, error) {
	base, err := r.loadImage(imagePath)
	if err != nil {
		return "", err
	}
	buf, err := utils.ImageToJpgBuffer(Thumbnail(base, maxDim), &jpeg.Options{Quality: 85})
	if err != nil {
		return "", fmt.Errorf("render: encode thumbnail: %w", err)
	}
	out := path.Join(storage.AreaThumbnails, identifier+".jpg")
	if err := r.store.Write(out, *buf); err != nil {
		return "", fmt.Errorf("render: write thumbnail: %w", err)
	}
	return out, nil
}

func (r *Renderer) loadImage(imagePath string) (image.Image, error) {
	data, err := r.store.Read(imagePath)
	if err != nil {
		return nil, err
	}
	base, err := utils.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("render: decode %s: %w", imagePath, err)
	}
	return base, nil
}

// Thumbnail scales the image so its longer side is maxDim, preserving aspect.
func Thumbnail(base image.Image, maxDim int) *image.RGBA {
	bounds := base.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), base, bounds, xdraw.Over, nil)
	return out
}
