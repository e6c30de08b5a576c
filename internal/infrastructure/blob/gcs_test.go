package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"caseflow/internal/ports"
)

type recordingWriter struct {
	ctx       context.Context
	buf       bytes.Buffer
	committed bool
	aborted   bool
}

func (w *recordingWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *recordingWriter) Close() error {
	if err := w.ctx.Err(); err != nil {
		w.aborted = true
		return err
	}
	w.committed = true
	return nil
}

func newRecordingGCS() (*GCSStore, *[]*recordingWriter) {
	writers := make([]*recordingWriter, 0)
	store := &GCSStore{bucket: "evidence", baseURL: gcsPublicBase}
	store.newWriter = func(ctx context.Context, _ string, _ string) io.WriteCloser {
		w := &recordingWriter{ctx: ctx}
		writers = append(writers, w)
		return w
	}
	return store, &writers
}

func TestGCSPutCommitsObject(t *testing.T) {
	store, writers := newRecordingGCS()

	url, err := store.Put(context.Background(), ports.BlobObject{Key: "cases/c1/photo/a.jpg", Body: strings.NewReader("jpeg")})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "https://storage.googleapis.com/evidence/cases/c1/photo/a.jpg" {
		t.Fatalf("Put() url = %q", url)
	}
	w := (*writers)[0]
	if !w.committed || w.aborted || w.buf.String() != "jpeg" {
		t.Fatalf("writer = committed %v aborted %v body %q", w.committed, w.aborted, w.buf.String())
	}
}

func TestGCSPutAbortsOnBodyError(t *testing.T) {
	store, writers := newRecordingGCS()
	body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("client went away")))

	if _, err := store.Put(context.Background(), ports.BlobObject{Key: "cases/c1/photo/a.jpg", Body: body}); err == nil {
		t.Fatalf("Put() expected error")
	}
	w := (*writers)[0]
	if w.committed || !w.aborted {
		t.Fatalf("writer = committed %v aborted %v", w.committed, w.aborted)
	}
}
