package feed

import (
	"github.com/lucasb-eyer/go-colorful"
)

// topicColor returns a near-white pastel of a random hue as "#rrggbb".
func (e *Engine) topicColor() string {
	e.randMu.Lock()
	hue := e.rand.Float64() * 360
	e.randMu.Unlock()
	return colorful.Hsl(hue, 1, 0.95).Clamped().Hex()
}
