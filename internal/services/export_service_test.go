package services

import (
	"bytes"
	"context"
	"image/png"
	"sync"
	"testing"

	apperrors "github.com/Corphon/FriendsSyndicate/internal/errors"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImageEmptyTranscript(t *testing.T) {
	svc := NewExportService(render.NewImageRenderer("", nil))

	res, err := svc.ExportImage(context.Background(), models.Conversation{})
	assert.Nil(t, res)
	assert.True(t, apperrors.IsEmptyTranscript(err))
}

func TestExportImagePNG(t *testing.T) {
	svc := NewExportService(render.NewImageRenderer("", nil))
	transcript := models.NewTranscript("Crypto Crash")
	transcript = append(transcript,
		models.Turn{Speaker: "Ross", Text: "I told you to diversify."},
		models.Turn{Speaker: "Chandler", Text: "Could my portfolio BE any lower?"},
	)

	res, err := svc.ExportImage(context.Background(), models.Conversation{Topic: "Crypto Crash", Transcript: transcript})
	require.NoError(t, err)

	assert.Equal(t, "friends_chat.png", res.Filename)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, render.ImageWidth, res.Width)
	assert.Equal(t, render.ImageHeight, res.Height)
	assert.Equal(t, 2, res.Bubbles)

	img, err := png.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, render.ImageWidth, img.Bounds().Dx())
}

func TestExportImageConcurrentSharedRenderer(t *testing.T) {
	svc := NewExportService(render.NewImageRenderer("", nil))
	transcript := models.NewTranscript("The Metaverse")
	transcript = append(transcript,
		models.Turn{Speaker: "Joey", Text: "Can I eat pizza in there?"},
		models.Turn{Speaker: "Chandler", Text: "Could this BE any more virtual?"},
		models.Turn{Speaker: "Ross", Text: "Technically it's a persistent shared space."},
	)
	conv := models.Conversation{Topic: "The Metaverse", Transcript: transcript}

	want, err := svc.ExportImage(context.Background(), conv)
	require.NoError(t, err)

	const workers = 8
	results := make([][]byte, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.ExportImage(context.Background(), conv)
			errs[i] = err
			if res != nil {
				results[i] = res.Data
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, bytes.Equal(want.Data, results[i]), "并发导出的图片应与单独导出一致 (worker %d)", i)
	}
}
