package json

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkpool/pkg/testutil"
)

type sample struct {
	Pool string `json:"pool"`
	Used int    `json:"used"`
	Note string `json:"note,omitempty"`
}

func TestMarshalToWriterDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	testutil.RequireNoError(t, MarshalToWriter(&buf, sample{Pool: "a&b", Used: 3}, ""), "compact encode")
	assert.Equal(t, "{\"pool\":\"a&b\",\"used\":3}\n", buf.String())

	buf.Reset()
	testutil.RequireNoError(t, MarshalToWriter(&buf, sample{Pool: "p"}, "  "), "indented encode")
	assert.Contains(t, buf.String(), "\n  \"pool\": \"p\"")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestMarshalToWriterPropagatesWriteError(t *testing.T) {
	assert.Error(t, MarshalToWriter(failingWriter{}, sample{}, ""))
}

func TestLinesEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewLinesEncoder(&buf)
	for i := 0; i < 3; i++ {
		require.NoError(t, enc.Encode(sample{Pool: "lights", Used: i}))
	}
	assert.Equal(t, 3, enc.Count())

	sc := bufio.NewScanner(strings.NewReader(buf.String()))
	i := 0
	for sc.Scan() {
		var s sample
		require.NoError(t, Unmarshal(sc.Bytes(), &s))
		assert.Equal(t, i, s.Used)
		i++
	}
	assert.Equal(t, 3, i)
}

func TestBufferPoolResets(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("stale")
	PutBuffer(buf)
	assert.Zero(t, GetBuffer().Len())

	big := bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1))
	PutBuffer(big) // dropped, not pooled
}
