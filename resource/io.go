package resource

import (
	"context"
	"io"
)

// ThrottleWriter returns a writer that waits for transfer budget before
// every write. A nil controller or one without a transfer limit returns w.
func ThrottleWriter(ctx context.Context, w io.Writer, rc *Controller) io.Writer {
	if rc == nil || rc.transferLimiter == nil {
		return w
	}
	return &throttled{ctx: ctx, rc: rc, w: w}
}

// ThrottleReader returns a reader that waits for len(p) bytes of transfer
// budget before every read; the read itself may return fewer bytes.
func ThrottleReader(ctx context.Context, r io.Reader, rc *Controller) io.Reader {
	if rc == nil || rc.transferLimiter == nil {
		return r
	}
	return &throttled{ctx: ctx, rc: rc, r: r}
}

type throttled struct {
	ctx context.Context
	rc  *Controller
	r   io.Reader
	w   io.Writer
}

func (t *throttled) Read(p []byte) (int, error) {
	if err := t.rc.AcquireTransfer(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.r.Read(p)
}

func (t *throttled) Write(p []byte) (int, error) {
	if err := t.rc.AcquireTransfer(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}
