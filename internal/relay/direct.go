package relay

import (
	"context"
	"errors"
	"io"
)

// copyDirect reads src into a pooled buffer and writes each read to dst
// before reading again. EOF on src becomes a half-close of dst.
func (r *Relayer) copyDirect(ctx context.Context, d *direction) error {
	buf := r.bufs.Get()
	defer r.bufs.Put(buf)
	defer halfClose(d.dst)

	for {
		nr, rerr := d.src.Read(buf)
		if nr > 0 {
			nw, werr := d.dst.Write(buf[:nr])
			d.add(nw)
			if werr != nil {
				return d.fail(ctx, werr)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return d.fail(ctx, rerr)
		}
	}
}
