package recorder

import "context"

type ctxKey struct{}

// WithRecorder returns a context with r bound as the active recorder.
// Deriving a new binding shadows any outer one for code holding the
// derived context only.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the recorder bound to ctx, if any.
func FromContext(ctx context.Context) (*Recorder, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Recorder)
	if !ok || r == nil {
		return nil, false
	}
	return r, true
}

// Record forwards one exchange to the recorder bound to ctx. Without a
// binding it is a no-op.
func Record(ctx context.Context, prompt, response string) {
	if r, ok := FromContext(ctx); ok {
		r.Log(prompt, response)
	}
}
