package render

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/Corphon/FriendsSyndicate/internal/errors"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
)

func sampleConversation() models.Conversation {
	transcript := models.NewTranscript("Mars Colonization")
	transcript = append(transcript,
		models.Turn{Speaker: "Joey", Text: "Is there pizza on Mars?"},
		models.Turn{Speaker: "Critic", Text: "should never show"},
		models.Turn{Speaker: "Chandler", Text: "Could Mars BE any further away?"},
		models.Turn{Speaker: "Ross", Text: "Technically it varies <a lot>."},
	)
	return models.Conversation{Topic: "Mars Colonization", Transcript: transcript}
}

func TestLayoutSkipsHiddenSpeakers(t *testing.T) {
	bubbles := Layout(sampleConversation().Transcript, LayoutOptions{})

	require.Len(t, bubbles, 3)
	for _, b := range bubbles {
		assert.False(t, models.IsHiddenSpeaker(b.Speaker))
	}
	assert.Equal(t, "Joey", bubbles[0].Speaker)
	assert.Equal(t, "Ross", bubbles[2].Speaker)
}

func TestLayoutSelfBubble(t *testing.T) {
	bubbles := Layout(sampleConversation().Transcript, LayoutOptions{})

	self := bubbles[1]
	assert.True(t, self.Self)
	assert.Equal(t, AlignRight, self.Align)
	assert.Equal(t, SelfColor, self.Color)
	assert.Empty(t, self.Label)

	other := bubbles[0]
	assert.False(t, other.Self)
	assert.Equal(t, AlignLeft, other.Align)
	assert.Equal(t, OtherColor, other.Color)
	assert.Equal(t, "Joey", other.Label)
}

func TestWrapText(t *testing.T) {
	lines := WrapText("could this be any more wrapped", RuneMeasurer{}, 10)
	assert.Equal(t, []string{"could this", "be any", "more", "wrapped"}, lines)

	long := WrapText("supercalifragilistic", RuneMeasurer{}, 5)
	assert.Equal(t, []string{"super", "calif", "ragil", "istic"}, long)

	assert.Equal(t, []string{"no wrap"}, WrapText("no wrap", RuneMeasurer{}, 0))
}

func TestRenderHTMLEscapesAndHidesManager(t *testing.T) {
	r, err := NewHTMLRenderer(nil)
	require.NoError(t, err)

	out, err := r.RenderHTML(sampleConversation())
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "Friends Syndicate ☕️")
	assert.Contains(t, html, "3 People")
	assert.Contains(t, html, "Mars Colonization")
	assert.NotContains(t, html, "Topic: Mars Colonization")
	assert.NotContains(t, html, "should never show")
	assert.Contains(t, html, "&lt;a lot&gt;")
	assert.Equal(t, 1, strings.Count(html, "bubble-right"))
	assert.Equal(t, 2, strings.Count(html, "bubble-left"))
	assert.Equal(t, 2, strings.Count(html, `class="sender-name"`))
}

func TestRenderHTMLEmptyState(t *testing.T) {
	r, err := NewHTMLRenderer(nil)
	require.NoError(t, err)

	out, err := r.RenderHTML(models.Conversation{})
	require.NoError(t, err)
	assert.Contains(t, string(out), TopicPlaceholder)
	assert.NotContains(t, string(out), "message-row")
}

func TestRenderPage(t *testing.T) {
	r, err := NewHTMLRenderer(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, r.Page(sampleConversation(), false, false)))
	page := buf.String()

	assert.Contains(t, page, FooterHint)
	assert.Contains(t, page, `id="api-key"`)

	buf.Reset()
	require.NoError(t, r.RenderPage(&buf, r.Page(models.Conversation{}, true, false)))
	assert.NotContains(t, buf.String(), `id="api-key"`)
	assert.Contains(t, buf.String(), FooterHintReady)
	assert.NotContains(t, buf.String(), FooterHint)

	buf.Reset()
	require.NoError(t, r.RenderPage(&buf, r.Page(models.Conversation{}, false, true)))
	assert.Contains(t, buf.String(), `id="api-key"`)
	assert.Contains(t, buf.String(), FooterHintReady)
}

func TestRenderImageFixedSize(t *testing.T) {
	r := NewImageRenderer("", nil)
	assert.Equal(t, FontSourceGoRegular, r.FontSource())

	res, err := r.Render(sampleConversation())
	require.NoError(t, err)

	b := res.Image.Bounds()
	assert.Equal(t, ImageWidth, b.Dx())
	assert.Equal(t, ImageHeight, b.Dy())
	assert.Len(t, res.Bubbles, 3)
	assert.Equal(t, 3, res.Drawn)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, res.Image))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, b, decoded.Bounds())
}

func TestRenderImageEmptyTranscript(t *testing.T) {
	r := NewImageRenderer("", nil)
	_, err := r.Render(models.Conversation{})
	assert.ErrorIs(t, err, apperrors.ErrEmptyTranscript)
}

func TestRenderImageDropsOverflowingBubbles(t *testing.T) {
	transcript := models.NewTranscript("Long")
	speakers := []string{"Joey", "Ross"}
	for i := 0; i < 30; i++ {
		transcript = append(transcript, models.Turn{
			Speaker: speakers[i%2],
			Text:    strings.Repeat("words that keep going ", 4),
		})
	}

	res, err := NewImageRenderer("", nil).Render(models.Conversation{Topic: "Long", Transcript: transcript})
	require.NoError(t, err)
	assert.Len(t, res.Bubbles, 30)
	assert.Less(t, res.Drawn, 30)
	assert.Greater(t, res.Drawn, 0)
}

func TestImageBubbleLinesFitMaxWidth(t *testing.T) {
	faces := LoadFaces("")
	m := faceMeasurer{face: faces.Body}
	lines := WrapText(strings.Repeat("sarcasm ", 30), m, BubbleMaxWidth-2*bubblePadX)

	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.LessOrEqual(t, m.Measure(line), BubbleMaxWidth-2*bubblePadX)
	}
}

func TestLoadFacesFallsBackOnBadFont(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "broken.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0644))

	assert.Equal(t, FontSourceGoRegular, LoadFaces(bad).Source)
	assert.Equal(t, FontSourceGoRegular, LoadFaces(filepath.Join(t.TempDir(), "missing.ttf")).Source)
}

func TestTruncateTopic(t *testing.T) {
	assert.Equal(t, "Short", TruncateTopic("Short"))

	long := strings.Repeat("x", 31)
	assert.Equal(t, strings.Repeat("x", 30)+"...", TruncateTopic(long))
	assert.Equal(t, strings.Repeat("x", 30), TruncateTopic(strings.Repeat("x", 30)))
}

func TestFacesForRenderAreIndependent(t *testing.T) {
	faces := LoadFaces("")
	require.Equal(t, FontSourceGoRegular, faces.Source)

	fresh := faces.ForRender()
	assert.Equal(t, faces.Source, fresh.Source)
	assert.NotSame(t, faces.Body, fresh.Body)
	assert.NotSame(t, faces.Label, fresh.Label)
	assert.Equal(t, faceMeasurer{face: faces.Body}.Measure("Could I BE"), faceMeasurer{face: fresh.Body}.Measure("Could I BE"))

	basic := Faces{Body: basicfont.Face7x13, Label: basicfont.Face7x13, Source: FontSourceBasic}
	assert.Equal(t, basic, basic.ForRender())
}
