package render

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"sketchroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanvas_PreviewLeavesCommittedUntouched(t *testing.T) {
	c := NewCanvas(40, 40)
	s := strokeOf("s", domain.DefaultTool(), domain.NewPoint(20, 20))

	require.NoError(t, c.PreviewFrame(s))

	assert.Greater(t, c.Visible().At(20, 20).A, uint8(200))
	assert.Equal(t, uint8(0), c.Committed().At(20, 20).A)
}

func TestCanvas_CommitCopiesVisible(t *testing.T) {
	c := NewCanvas(40, 40)
	require.NoError(t, c.Commit(strokeOf("s", domain.DefaultTool(), domain.NewPoint(20, 20))))

	assert.True(t, c.Visible().Equal(c.Committed()))
	assert.Greater(t, c.Committed().At(20, 20).A, uint8(200))

	// the next frame starts from committed pixels
	require.NoError(t, c.PreviewFrame(strokeOf("t", domain.DefaultTool(), domain.NewPoint(5, 5))))
	assert.Greater(t, c.Visible().At(20, 20).A, uint8(200))
	assert.Greater(t, c.Visible().At(5, 5).A, uint8(200))
}

func TestCanvas_ReplayIsDeterministic(t *testing.T) {
	tool := domain.DefaultTool()
	tool.Opacity = 0.4
	committed := horizontalStroke("base", domain.DefaultTool())
	live := []*domain.Stroke{
		strokeOf("a", tool, domain.NewPoint(12, 12), domain.NewPoint(22, 30), domain.NewPoint(30, 8), domain.NewPoint(44, 30)),
		strokeOf("b", tool, domain.NewPoint(30, 20)),
	}

	a := NewCanvas(60, 40)
	require.NoError(t, a.Commit(committed))
	require.NoError(t, a.ReplayAll(live))
	first := a.Snapshot()
	firstVisible := SurfaceFromImage(a.Visible().Image())

	require.NoError(t, a.ReplayAll(live))
	assert.True(t, firstVisible.Equal(a.Visible()))
	assert.True(t, first.Equal(a.Committed()), "replay never touches committed pixels")

	b := NewCanvas(60, 40)
	require.NoError(t, b.Commit(committed))
	require.NoError(t, b.ReplayAll(live))
	assert.True(t, firstVisible.Equal(b.Visible()))
}

func TestCanvas_ReentrantReplayIsCoalesced(t *testing.T) {
	first := []*domain.Stroke{strokeOf("a", domain.DefaultTool(), domain.NewPoint(10, 10))}
	second := []*domain.Stroke{strokeOf("b", domain.DefaultTool(), domain.NewPoint(30, 30))}

	var c *Canvas
	passes := 0
	c = NewCanvas(40, 40, WithReplayObserver(func(time.Duration) {
		passes++
		if passes == 1 {
			assert.NoError(t, c.ReplayAll(second))
		}
	}))

	require.NoError(t, c.ReplayAll(first))

	assert.Equal(t, 2, passes)
	assert.Equal(t, uint8(0), c.Visible().At(10, 10).A, "the latest list wins")
	assert.Greater(t, c.Visible().At(30, 30).A, uint8(200))
	assert.Equal(t, replayIdle, c.state)
}

func TestCanvas_Clear(t *testing.T) {
	c := NewCanvas(40, 40)
	require.NoError(t, c.Commit(strokeOf("s", domain.DefaultTool(), domain.NewPoint(20, 20))))

	c.Clear()

	assert.True(t, c.Committed().Equal(NewSurface(40, 40)))
	assert.True(t, c.Visible().Equal(NewSurface(40, 40)))
}

func TestCanvas_UnavailableSurfaces(t *testing.T) {
	c := NewCanvas(0, 0)
	s := strokeOf("s", domain.DefaultTool(), domain.NewPoint(1, 1))

	assert.ErrorIs(t, c.PreviewFrame(s), ErrSurfaceUnavailable)
	assert.ErrorIs(t, c.Commit(s), ErrSurfaceUnavailable)
	assert.ErrorIs(t, c.ReplayAll([]*domain.Stroke{s}), ErrSurfaceUnavailable)
	_, err := c.ExportPNG()
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
}

func TestCanvas_ExportRoundTrip(t *testing.T) {
	tool := domain.DefaultTool()
	tool.Color = "#12ab34"
	tool.Opacity = 0.7
	c := NewCanvas(50, 30)
	require.NoError(t, c.Commit(strokeOf("s", tool,
		domain.NewPoint(5, 5), domain.NewPoint(15, 25), domain.NewPoint(30, 5), domain.NewPoint(45, 25))))

	url, err := c.ExportDataURL()
	require.NoError(t, err)
	assert.Contains(t, url, "data:image/png;base64,")

	loaded, err := LoadCanvas(url)
	require.NoError(t, err)
	assert.Equal(t, 50, loaded.Width())
	assert.Equal(t, 30, loaded.Height())
	assert.True(t, loaded.Committed().Equal(c.Committed()))
	assert.True(t, loaded.Visible().Equal(c.Committed()))
}

func TestLoadCanvas_RejectsGarbage(t *testing.T) {
	_, err := LoadCanvas("data:text/plain;base64,aGk=")
	assert.ErrorIs(t, err, ErrInvalidDataURL)

	_, err = LoadCanvas("data:image/png;base64,!!!")
	assert.ErrorIs(t, err, ErrInvalidDataURL)
}

func TestExportPDF(t *testing.T) {
	c := NewCanvas(40, 40)
	require.NoError(t, c.Commit(strokeOf("s", domain.DefaultTool(), domain.NewPoint(20, 20))))

	var buf bytes.Buffer
	require.NoError(t, ExportPDF(&buf, c.Snapshot(), "board"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestSurface_DrawSurfaceSourceOver(t *testing.T) {
	dst := NewSurface(2, 1)
	src := NewSurface(2, 1)
	copy(dst.img.Pix, []uint8{0, 0, 255, 255, 10, 20, 30, 255})
	copy(src.img.Pix, []uint8{255, 0, 0, 0, 255, 0, 0, 255})

	require.NoError(t, dst.DrawSurface(src))

	assert.Equal(t, []uint8{0, 0, 255, 255, 255, 0, 0, 255}, dst.img.Pix)
}

func TestCanvas_HydrateResizeIsSafeForConcurrentReaders(t *testing.T) {
	c := NewCanvas(10, 10)
	src := NewSurface(30, 20)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			w, h := c.Width(), c.Height()
			assert.Contains(t, []int{10, 30}, w)
			assert.Contains(t, []int{10, 20}, h)
			assert.True(t, c.Visible().Available())
			assert.True(t, c.Committed().Available())
		}
	}()

	require.NoError(t, c.Hydrate(src))
	wg.Wait()

	assert.Equal(t, 30, c.Width())
	assert.Equal(t, 20, c.Height())
	assert.Equal(t, 30, c.Visible().Width())
	assert.Equal(t, 20, c.Committed().Height())
}

func TestStack_HigherLayerDrawsOnTop(t *testing.T) {
	red := domain.DefaultTool()
	red.Color = "#ff0000"
	red.Size = 6
	blue := red
	blue.Color = "#0000ff"

	bottom := NewCanvas(40, 40)
	top := NewCanvas(40, 40)
	require.NoError(t, top.Commit(strokeOf("r", red, domain.NewPoint(20, 20))))
	require.NoError(t, bottom.Commit(strokeOf("b", blue, domain.NewPoint(20, 20))))
	require.NoError(t, bottom.PreviewFrame(strokeOf("live", blue, domain.NewPoint(5, 5))))

	out, err := Stack(40, 40, []*Canvas{bottom, top})
	require.NoError(t, err)

	assert.Equal(t, uint8(255), out.Committed().At(20, 20).R)
	assert.Equal(t, uint8(0), out.Committed().At(20, 20).B)
	assert.Equal(t, uint8(0), out.Committed().At(5, 5).A, "live pixels stay off the committed surface")
	assert.Equal(t, uint8(255), out.Visible().At(5, 5).B)
}
