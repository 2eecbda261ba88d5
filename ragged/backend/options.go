// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"log/slog"

	"github.com/ajroetker/go-ragged/envconfig"
	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/optim"
)

// Options configures a backend.
type Options struct {
	// NumWorkers sizes the worker pool. Zero uses envconfig.NumWorkers.
	NumWorkers int

	// Sequential runs every kernel on the calling goroutine. A pool of one
	// worker behaves the same way.
	Sequential bool

	// PlanCache bounds the number of cached shape-specialized plans of each
	// kind. Zero disables caching.
	PlanCache int

	// MaxDecay caps the weight-averaging decay used by UpdateAverages.
	MaxDecay float64

	// Logger receives debug output. Nil uses slog.Default.
	Logger *slog.Logger
}

// Option modifies Options.
type Option func(*Options)

// DefaultOptions returns options read from the environment.
func DefaultOptions() Options {
	return Options{
		NumWorkers: envconfig.NumWorkers(),
		Sequential: envconfig.NoParallel(),
		PlanCache:  int(envconfig.PlanCacheSize()),
		MaxDecay:   optim.DefaultMaxDecay,
	}
}

// WithNumWorkers sets the worker pool size.
func WithNumWorkers(n int) Option {
	return func(o *Options) { o.NumWorkers = n }
}

// WithSequential disables the worker pool.
func WithSequential() Option {
	return func(o *Options) { o.Sequential = true }
}

// WithPlanCache sets the plan cache capacity.
func WithPlanCache(n int) Option {
	return func(o *Options) { o.PlanCache = n }
}

// WithMaxDecay sets the weight-averaging decay cap.
func WithMaxDecay(d float64) Option {
	return func(o *Options) { o.MaxDecay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Names lists the backends New accepts.
func Names() []string {
	return []string{"cpu"}
}

// New returns the backend registered under name.
func New[T ragged.Floats](name string, opts ...Option) (Ops[T], error) {
	switch name {
	case "cpu", "":
		return NewCPU[T](opts...), nil
	default:
		return nil, fmt.Errorf("backend: unsupported backend %q", name)
	}
}
