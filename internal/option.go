package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	out    io.Writer
	force  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where one-shot commands print their JSON result.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithForce makes a one-shot sync ignore the last-sync checkpoint.
func WithForce(force bool) Option {
	return func(a *application) {
		a.force = force
	}
}

func newApplication(opts []Option) *application {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
