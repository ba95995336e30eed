package ekg

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/journal"
)

type failingCloser struct{ calls int }

func (f *failingCloser) Close() error {
	f.calls++
	return errors.New("session expired")
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func openJournal(t *testing.T) *journal.RedisJournal {
	t.Helper()
	mr := miniredis.RunT(t)
	j, err := journal.NewRedisJournal(journal.RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	return j
}

func TestCloseWithLog_Journal(t *testing.T) {
	logger, buf := bufferLogger()
	j := openJournal(t)

	CloseWithLog(j, logger, "run journal")
	assert.Empty(t, buf.String())
	assert.Error(t, j.Ping(context.Background()), "client is closed")

	// go-redis reports a second close
	CloseWithLog(j, logger, "run journal")
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "failed to close resource")
	assert.Contains(t, out, "resource=\"run journal\"")
}

func TestCloseWithLog_Deferred(t *testing.T) {
	logger, buf := bufferLogger()
	closer := &failingCloser{}

	func() {
		defer CloseWithLog(closer, logger, "export file")
	}()

	assert.Equal(t, 1, closer.calls)
	assert.Contains(t, buf.String(), "session expired")
	assert.Contains(t, buf.String(), "export file")
}

func TestCloseWithLog_NilArguments(t *testing.T) {
	logger, buf := bufferLogger()
	CloseWithLog(nil, logger, "run journal")
	assert.Empty(t, buf.String())

	closer := &failingCloser{}
	require.NotPanics(t, func() { CloseWithLog(closer, nil, "run journal") })
	assert.Equal(t, 1, closer.calls)
}

func TestClient_CloseReleasesJournal(t *testing.T) {
	ctx := context.Background()
	logger, buf := bufferLogger()
	j := openJournal(t)
	c := &Client{logger: logger, journal: j}

	require.NoError(t, c.Close(ctx))
	assert.Nil(t, c.journal)
	assert.Error(t, j.Ping(ctx))

	// closing again touches nothing
	require.NoError(t, c.Close(ctx))
	assert.Empty(t, buf.String())

	_, err := c.Events(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotConnected)
}
