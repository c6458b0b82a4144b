package notify

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorderCollectsInOrder(t *testing.T) {
	var r Recorder
	r.Notify(Error, "first")
	r.Notify(Success, "second")

	got := r.Notices()
	assert.Equal(t, []Notice{{Error, "first"}, {Success, "second"}}, got)

	got[0].Message = "changed"
	assert.Equal(t, "first", r.Notices()[0].Message, "Notices must return a copy")
}

func TestRecorderConcurrent(t *testing.T) {
	var (
		r  Recorder
		wg sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Notify(Success, "ok")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Notices(), 50)
}

func TestMultiAndLog(t *testing.T) {
	var (
		buf bytes.Buffer
		rec Recorder
	)
	sink := Multi{&rec, nil, Log{Logger: slog.New(slog.NewTextHandler(&buf, nil)), Attrs: []any{"form", "contact"}}}

	sink.Notify(Error, "Security verification failed. Please try again.")

	assert.Len(t, rec.Notices(), 1)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "form=contact")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Notify(Success, "ignored") })
}
