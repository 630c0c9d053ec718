package welcomecard

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPNG(t *testing.T) {
	data, err := Render("Ada", 42)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, cardW, bounds.Dx())
	assert.Equal(t, cardH, bounds.Dy())
}

func TestRenderSurvivesLongNames(t *testing.T) {
	data, err := Render(strings.Repeat("very long name ", 20), 1000000)
	require.NoError(t, err)

	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
}
