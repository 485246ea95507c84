package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
)

// Stream è una sequenza pull di frammenti; Next restituisce io.EOF alla fine
type Stream interface {
	Next(ctx context.Context) (any, error)
}

// Result è l'esito della raccolta di una risposta
type Result struct {
	Text      string
	Streamed  bool
	Fragments int
}

// IsStreamed indica se la risposta è una sequenza di frammenti.
// Stringhe, byte e mappe sono sempre risultati singoli.
func IsStreamed(resp any) bool {
	switch resp.(type) {
	case string, []byte, map[string]any, map[string]string:
		return false
	case Stream, iter.Seq[any], <-chan any, []any:
		return true
	default:
		return false
	}
}

// Collect concatena il testo della risposta. Per le risposte in streaming
// onFragment (se non nil) riceve ogni frammento non vuoto, nell'ordine.
// Un errore di onFragment interrompe la raccolta.
func Collect(ctx context.Context, resp any, onFragment func(string) error) (Result, error) {
	if closer, ok := resp.(io.Closer); ok {
		defer closer.Close()
	}

	if !IsStreamed(resp) {
		return Result{Text: Extract(resp)}, nil
	}

	result := Result{Streamed: true}
	var b strings.Builder

	err := each(ctx, resp, func(item any) error {
		text := Extract(item)
		if text == "" {
			return nil
		}
		b.WriteString(text)
		result.Fragments++
		if onFragment != nil {
			return onFragment(text)
		}
		return nil
	})

	result.Text = b.String()
	return result, err
}

func each(ctx context.Context, resp any, fn func(any) error) error {
	switch s := resp.(type) {
	case Stream:
		for {
			item, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := fn(item); err != nil {
				return err
			}
		}
	case iter.Seq[any]:
		var ferr error
		for item := range s {
			if ferr = ctx.Err(); ferr != nil {
				break
			}
			if ferr = fn(item); ferr != nil {
				break
			}
		}
		return ferr
	case <-chan any:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case item, ok := <-s:
				if !ok {
					return nil
				}
				if err := fn(item); err != nil {
					return err
				}
			}
		}
	case []any:
		for _, item := range s {
			if err := fn(item); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// Channel è uno Stream alimentato da un produttore in una goroutine separata.
// Il produttore si blocca finché il consumatore non legge il frammento.
type Channel struct {
	items  chan any
	cancel context.CancelFunc
	err    error
	once   sync.Once
}

// NewChannel avvia produce; send restituisce errore se lo stream viene chiuso
func NewChannel(ctx context.Context, produce func(ctx context.Context, send func(any) error) error) *Channel {
	ctx, cancel := context.WithCancel(ctx)
	c := &Channel{
		items:  make(chan any),
		cancel: cancel,
	}

	send := func(v any) error {
		select {
		case c.items <- v:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go func() {
		defer close(c.items)
		c.err = produce(ctx, send)
	}()

	return c
}

// Next restituisce il prossimo frammento, io.EOF a fine stream o l'errore del produttore
func (c *Channel) Next(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case v, ok := <-c.items:
		if !ok {
			if c.err != nil {
				return nil, c.err
			}
			return nil, io.EOF
		}
		return v, nil
	}
}

// Close interrompe il produttore
func (c *Channel) Close() error {
	c.once.Do(c.cancel)
	return nil
}
