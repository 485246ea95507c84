package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contentObj struct{ content string }

func (c contentObj) GetContent() string { return c.content }

type deltaObj struct{ delta string }

func (d deltaObj) GetDelta() string { return d.delta }

type bothObj struct{ content, delta string }

func (b bothObj) GetContent() string { return b.content }
func (b bothObj) GetDelta() string   { return b.delta }

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "你好", "你好"},
		{"bytes", []byte("ciao"), "ciao"},
		{"invalid utf8 dropped", []byte{'a', 0xff, 'b'}, "ab"},
		{"content carrier", contentObj{"full"}, "full"},
		{"delta carrier", deltaObj{"part"}, "part"},
		{"content wins over delta", bothObj{"c", "d"}, "c"},
		{"empty content falls back to delta", bothObj{"", "d"}, "d"},
		{"map content", map[string]any{"content": "x", "delta": "y"}, "x"},
		{"map delta", map[string]any{"delta": "y", "text": "z"}, "y"},
		{"map text", map[string]string{"text": "z"}, "z"},
		{"map without keys", map[string]any{"other": "v"}, ""},
		{"nil", nil, ""},
		{"unknown type", 42, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.in))
		})
	}
}

func TestIsStreamed(t *testing.T) {
	ch := make(chan any)
	close(ch)
	var recv <-chan any = ch

	seq := iter.Seq[any](func(yield func(any) bool) {})

	assert.False(t, IsStreamed("text"))
	assert.False(t, IsStreamed([]byte("text")))
	assert.False(t, IsStreamed(map[string]any{"content": "x"}))
	assert.False(t, IsStreamed(contentObj{"x"}))
	assert.False(t, IsStreamed(nil))

	assert.True(t, IsStreamed([]any{"a"}))
	assert.True(t, IsStreamed(recv))
	assert.True(t, IsStreamed(seq))
	assert.True(t, IsStreamed(NewChannel(context.Background(), func(context.Context, func(any) error) error { return nil })))
}

func TestCollect_ConcatenatesAllShapes(t *testing.T) {
	fragments := []any{
		"你",
		[]byte("好"),
		deltaObj{"，"},
		deltaObj{""},
		map[string]any{"delta": "世界"},
		contentObj{"！"},
		nil,
	}
	want := "你好，世界！"

	sources := map[string]func() any{
		"slice": func() any { return fragments },
		"channel": func() any {
			ch := make(chan any, len(fragments))
			for _, f := range fragments {
				ch <- f
			}
			close(ch)
			var recv <-chan any = ch
			return recv
		},
		"seq": func() any {
			return iter.Seq[any](func(yield func(any) bool) {
				for _, f := range fragments {
					if !yield(f) {
						return
					}
				}
			})
		},
		"stream": func() any {
			return NewChannel(context.Background(), func(ctx context.Context, send func(any) error) error {
				for _, f := range fragments {
					if err := send(f); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			var seen []string
			result, err := Collect(context.Background(), src(), func(s string) error {
				seen = append(seen, s)
				return nil
			})

			require.NoError(t, err)
			assert.True(t, result.Streamed)
			assert.Equal(t, want, result.Text)
			assert.Equal(t, want, strings.Join(seen, ""))
			assert.Equal(t, 5, result.Fragments)
			for _, s := range seen {
				assert.NotEmpty(t, s)
			}
		})
	}
}

func TestCollect_SingleResult(t *testing.T) {
	called := false
	result, err := Collect(context.Background(), contentObj{"risposta"}, func(string) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.False(t, result.Streamed)
	assert.Equal(t, "risposta", result.Text)
	assert.False(t, called)
}

func TestCollect_ProducerError(t *testing.T) {
	boom := errors.New("boom")
	ch := NewChannel(context.Background(), func(ctx context.Context, send func(any) error) error {
		if err := send("parziale"); err != nil {
			return err
		}
		return boom
	})

	result, err := Collect(context.Background(), ch, nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "parziale", result.Text)
}

func TestCollect_CallbackErrorStopsProducer(t *testing.T) {
	stop := errors.New("stop")
	produced := make(chan error, 1)

	ch := NewChannel(context.Background(), func(ctx context.Context, send func(any) error) error {
		for {
			if err := send("x"); err != nil {
				produced <- err
				return err
			}
		}
	})

	_, err := Collect(context.Background(), ch, func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.ErrorIs(t, <-produced, context.Canceled)
}

func TestChannel_EOF(t *testing.T) {
	ch := NewChannel(context.Background(), func(ctx context.Context, send func(any) error) error {
		return send("a")
	})
	defer ch.Close()

	v, err := ch.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = ch.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
