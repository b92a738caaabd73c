package utils

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
)

// ImageToJpgBuffer Convert and image to a jpg buffer to write to output
func ImageToJpgBuffer(image image.Image, options *jpeg.Options) (*[]byte, error) {
	buf := new(bytes.Buffer)

	err := jpeg.Encode(buf, image, options)
	if err != nil {
		return nil, errors.New("jpeg encode error")
	}
	Buffer := buf.Bytes()
	return &Buffer, nil
}

// ImageToPngBuffer Convert and image to a png buffer to write to output
func ImageToPngBuffer(image image.Image) (*[]byte, error) {
	buf := new(bytes.Buffer)

	err := png.Encode(buf, image)
	if err != nil {
		return nil, errors.New("png encode error")
	}
	Buffer := buf.Bytes()
	return &Buffer, nil
}

// DecodeImage Decode png or jpeg bytes into an image
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("image decode error")
	}
	return img, nil
}

// DecodeImageSize Read the pixel dimensions without decoding the full image
func DecodeImageSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.New("image decode error")
	}
	return cfg.Width, cfg.Height, nil
}
