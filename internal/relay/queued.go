package relay

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// copyQueued runs a reader and a writer for d joined by a channel of at
// most QueueDepth chunks. The reader blocks while the channel is full.
func (r *Relayer) copyQueued(ctx context.Context, d *direction) error {
	queue := make(chan []byte, r.cfg.QueueDepth)
	writerDone := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		return r.readChunks(ctx, d, queue, writerDone)
	})
	g.Go(func() error {
		err := r.writeChunks(ctx, d, queue)
		close(writerDone)
		if err != nil {
			d.unblockRead()
		}
		return err
	})
	return g.Wait()
}

// readChunks moves src into queue and closes queue on return. It stops
// quietly once the writer has given up.
func (r *Relayer) readChunks(ctx context.Context, d *direction, queue chan<- []byte, writerDone <-chan struct{}) error {
	defer close(queue)

	for {
		buf := r.chunks.Get()
		n, err := d.src.Read(buf)
		if n > 0 {
			select {
			case queue <- buf[:n]:
			case <-writerDone:
				r.chunks.Put(buf)
				return nil
			case <-ctx.Done():
				r.chunks.Put(buf)
				return context.Cause(ctx)
			}
		} else {
			r.chunks.Put(buf)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			select {
			case <-writerDone:
				return nil
			default:
			}
			return d.fail(ctx, err)
		}
	}
}

// writeChunks drains queue into dst. A closed queue means the reader saw
// EOF: everything already queued is written before dst is half-closed.
func (r *Relayer) writeChunks(ctx context.Context, d *direction, queue <-chan []byte) error {
	defer halfClose(d.dst)

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case chunk, ok := <-queue:
			if !ok {
				return nil
			}
			n, err := d.dst.Write(chunk)
			r.chunks.Put(chunk)
			d.add(n)
			if err != nil {
				return d.fail(ctx, err)
			}
		}
	}
}
