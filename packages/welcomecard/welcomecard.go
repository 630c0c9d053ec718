// Package welcomecard renders the image attached to welcome messages.
package welcomecard

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/fogleman/gg"

	"github.com/Wandervogel-001/The-System/utils"
)

const (
	cardW = 560
	cardH = 200
)

// Render draws a welcome card for one member and returns it as PNG
// bytes. Long names are truncated so the card never reflows.
func Render(displayName string, joinPosition int) ([]byte, error) {
	dc := gg.NewContext(cardW, cardH)

	dc.SetHexColor("#36393f")
	dc.Clear()

	// Inner panel
	margin := 16.0
	panelW := float64(cardW) - 2*margin
	panelH := float64(cardH) - 2*margin
	dc.DrawRoundedRectangle(margin, margin, panelW, panelH, (panelW+panelH)/2/12)
	dc.SetHexColor("#2f3136")
	dc.Fill()

	dc.DrawRoundedRectangle(margin, margin, panelW, panelH, (panelW+panelH)/2/12)
	dc.SetHexColor("#f1c40f")
	dc.SetLineWidth(2)
	dc.Stroke()

	centerX := float64(cardW) / 2

	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(fmt.Sprintf("Welcome, %s!", utils.Truncate(displayName, 24)),
		centerX, float64(cardH)*0.38, 0.5, 0.5, panelW-20, 1.0, gg.AlignCenter)

	dc.SetHexColor("#b9bbbe")
	dc.DrawStringWrapped(fmt.Sprintf("You are the %s member", utils.Ordinal(joinPosition)),
		centerX, float64(cardH)*0.62, 0.5, 0.5, panelW-20, 1.0, gg.AlignCenter)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode welcome card: %w", err)
	}
	return buf.Bytes(), nil
}
