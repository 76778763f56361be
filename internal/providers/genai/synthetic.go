package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
)

const syntheticSize = 512

// syntheticImage renders a striped PNG whose colours depend only on the
// request, so identical requests produce identical bytes.
func (c *Client) syntheticImage(req Request) Result {
	seed := deterministicSeed(req)
	data := renderSyntheticImage(syntheticSize, syntheticSize, seed)

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Str("seed", seed).
		Msg("genai: generated synthetic image")

	return Result{Kind: ResultImage, Data: data, MIMEType: "image/png"}
}

func deterministicSeed(req Request) string {
	hasher := sha256.New()
	hasher.Write([]byte(req.Instruction))
	for _, img := range req.Images {
		hasher.Write([]byte{'|'})
		hasher.Write([]byte(img.MIMEType))
		hasher.Write(img.Data)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:18]
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < width; x += max(16, width/32) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}
