// Package logging provides the catalog's structured logger. Every component
// logs through a package-level *logrus.Entry tagged with its component name,
// so log aggregation can filter by component without parsing messages.
package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// outputSplitter routes error-level log lines to stderr and everything else
// to stdout, so container log collectors can apply different handling
// (alerting vs archival) to each stream without parsing structured fields.
type outputSplitter struct{}

func (outputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Base is the root logger every component derives its Entry from.
var Base = logrus.New()

func init() {
	Base.SetOutput(outputSplitter{})
}

// Configure applies the runtime log level and format to Base. Called once
// during bootstrap after internal/config has materialized the Config.
func Configure(level, format string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Base.SetLevel(parsed)

	if format == "json" {
		Base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// For returns a component-scoped logger, e.g. logging.For("catalogstore").
func For(component string) *logrus.Entry {
	return Base.WithField("component", component)
}
