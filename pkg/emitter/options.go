package emitter

import "go.uber.org/zap"

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger for synthesis events.
// If not set, a no-op logger is used.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics sets the collectors updated by the factory.
func WithMetrics(m *Metrics) Option {
	return func(f *Factory) {
		f.metrics = m
	}
}

// WithDynamicSynthesis enables or disables the reflective fallback. With it
// disabled, only interfaces processed by emittergen are supported.
func WithDynamicSynthesis(enabled bool) Option {
	return func(f *Factory) {
		kept := f.synthesizers[:0:0]
		for _, s := range f.synthesizers {
			if s.Strategy() != StrategyDynamic {
				kept = append(kept, s)
			}
		}
		if enabled {
			kept = append(kept, DynamicSynthesizer{})
		}
		f.synthesizers = kept
	}
}

// WithSynthesizers replaces the synthesizers, tried in the given order.
func WithSynthesizers(s ...Synthesizer) Option {
	return func(f *Factory) {
		f.synthesizers = append([]Synthesizer(nil), s...)
	}
}
