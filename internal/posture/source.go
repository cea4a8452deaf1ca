package posture

import "context"

// SampleSource delivers orientation samples. The returned channel must be closed
// once ctx is cancelled or the source has nothing more to deliver.
type SampleSource interface {
	Subscribe(ctx context.Context) (<-chan OrientationSample, error)
}

// SourceFunc adapts a function to SampleSource
type SourceFunc func(ctx context.Context) (<-chan OrientationSample, error)

func (f SourceFunc) Subscribe(ctx context.Context) (<-chan OrientationSample, error) {
	return f(ctx)
}

// ChannelSource forwards samples written to In until ctx is cancelled or In is closed.
type ChannelSource struct {
	In <-chan OrientationSample
}

// Subscribe forwarding goroutine exits with ctx
func (s ChannelSource) Subscribe(ctx context.Context) (<-chan OrientationSample, error) {
	out := make(chan OrientationSample)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-s.In:
				if !ok {
					return
				}
				select {
				case out <- sample:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
