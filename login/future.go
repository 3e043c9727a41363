package login

import (
	"context"
	"sync"
)

// Future is the single-shot result of a login call. The first settlement
// wins; later ones are ignored.
type Future struct {
	once sync.Once
	done chan struct{}

	resp *Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve settles f with resp. It reports whether this call settled f.
func (f *Future) resolve(resp *Response) bool {
	return f.settle(resp, nil)
}

// reject settles f with err. It reports whether this call settled f.
func (f *Future) reject(err error) bool {
	return f.settle(nil, err)
}

func (f *Future) settle(resp *Response, err error) bool {
	settled := false
	f.once.Do(func() {
		f.resp, f.err = resp, err
		settled = true
		close(f.done)
	})
	return settled
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the call completes.
func (f *Future) Get() (*Response, error) {
	<-f.done
	return f.resp, f.err
}

// Wait blocks until the call completes or ctx is done. Giving up on the
// wait does not cancel the call.
func (f *Future) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
