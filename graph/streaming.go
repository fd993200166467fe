package graph

import "context"

// DefaultStreamBuffer is the channel capacity used by Stream. A slow
// consumer past this many buffered events applies backpressure to the
// execution.
const DefaultStreamBuffer = 64

// Stream executes the workflow and emits its lifecycle events on the
// returned channel instead of (or in addition to) any listeners already
// present in cfg. The channel closes after the final graph_end event,
// which carries the final state and, on failure, the error.
//
//	for ev := range runnable.Stream(ctx, initial, nil) {
//		switch ev.Type {
//		case graph.EventNodeComplete:
//			fmt.Println("node done:", ev.Node)
//		case graph.EventGraphEnd:
//			final, err = ev.State, ev.Err
//		}
//	}
func (r *Runnable) Stream(ctx context.Context, initial State, cfg *Config) <-chan GraphEvent {
	ch := make(chan GraphEvent, DefaultStreamBuffer)

	emitter := GraphListenerFunc(func(ctx context.Context, event *GraphEvent) {
		select {
		case ch <- *event:
		case <-ctx.Done():
		}
	})

	streamCfg := &Config{}
	if cfg != nil {
		clone := *cfg
		streamCfg = &clone
	}
	streamCfg.Listeners = append(append([]GraphListener(nil), streamCfg.Listeners...), emitter)

	go func() {
		defer close(ch)
		// The graph_end event delivers the final state and error.
		_, _ = r.InvokeWithConfig(ctx, initial, streamCfg)
	}()

	return ch
}
