/*
Copyright © 2019 the COSFlux authors.
This file is part of COSFlux.

COSFlux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

COSFlux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with COSFlux.  If not, see <http://www.gnu.org/licenses/>.
*/

package cosutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/internal/hash"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Scenario holds the parameters of a model run that are not input data:
// the isotope parameters, the fractionation factors, and the scaling and
// uncertainty used when comparing the results to measurements.
type Scenario struct {
	Name string

	ReferenceRatio float64
	InitialDelta   float64
	InitialPool    float64
	Dt             float64

	// Epsilon holds the fractionation factors [‰].
	Epsilon cosflux.Fractionation

	// FixedSourceRatio gives production the fixed signature Epsilon
	// rather than fractionating it from the atmospheric ratio.
	FixedSourceRatio bool

	// OceanScale multiplies the ocean production field.
	OceanScale float64

	// InstrumentUncertainty is the δ34S measurement uncertainty [‰].
	// Seasonal amplitudes smaller than this are not detectable.
	InstrumentUncertainty float64
}

// DefaultScenario returns the scenario used when no scenario file is given.
func DefaultScenario() *Scenario {
	c := cosflux.DefaultForwardConfig()
	return &Scenario{
		Name:                  "default",
		ReferenceRatio:        c.ReferenceRatio,
		InitialDelta:          c.InitialDelta,
		InitialPool:           c.InitialLightPool,
		Dt:                    c.Dt,
		Epsilon:               c.Epsilon,
		OceanScale:            1,
		InstrumentUncertainty: 0.2,
	}
}

// ReadScenario reads a TOML scenario from r. Parameters missing from r
// keep their default values.
func ReadScenario(r io.Reader) (*Scenario, error) {
	s := DefaultScenario()
	if _, err := toml.DecodeReader(r, s); err != nil {
		return nil, fmt.Errorf("cosutil: parsing scenario: %v", err)
	}
	if s.OceanScale < 0 {
		return nil, fmt.Errorf("cosutil: scenario %s: negative OceanScale %g", s.Name, s.OceanScale)
	}
	if s.InstrumentUncertainty < 0 {
		return nil, fmt.Errorf("cosutil: scenario %s: negative InstrumentUncertainty %g", s.Name, s.InstrumentUncertainty)
	}
	return s, nil
}

// loadScenario reads the scenario file at path, or returns the default
// scenario if path is empty.
func loadScenario(path string) (*Scenario, error) {
	if path == "" {
		return DefaultScenario(), nil
	}
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("cosutil: opening scenario: %v", err)
	}
	defer f.Close()
	return ReadScenario(f)
}

// ForwardConfig returns the model parameters of the scenario.
func (s *Scenario) ForwardConfig() cosflux.ForwardConfig {
	return cosflux.ForwardConfig{
		InitialLightPool: s.InitialPool,
		ReferenceRatio:   s.ReferenceRatio,
		InitialDelta:     s.InitialDelta,
		Epsilon:          s.Epsilon,
		Dt:               s.Dt,
		FixedSourceRatio: s.FixedSourceRatio,
	}
}

// Key returns a key that identifies the scenario by its name and
// parameters.
func (s *Scenario) Key() string { return hash.Scenario(s.Name, *s) }

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("cosutil: you need to specify an output file (for example: OutputFile=\"cosflux.nc\")")
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("cosutil: the output file directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkOutputDir expands environment variables in dir and creates it if
// it doesn't exist.
func checkOutputDir(dir string) (string, error) {
	dir = os.ExpandEnv(dir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return dir, fmt.Errorf("cosutil: creating output directory: %v", err)
	}
	return dir, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// checkDate parses a date in the format YYYY-MM-DD.
func checkDate(name, d string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", os.ExpandEnv(d))
	if err != nil {
		return t, fmt.Errorf("cosutil: %s: %v", name, err)
	}
	return t, nil
}

// newLogger returns a logger that writes to standard error and, if
// logFile is not empty, to logFile. The returned function closes the log
// file.
func newLogger(logFile string) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
	if lvl, err := logrus.ParseLevel(Cfg.GetString("LogLevel")); err == nil {
		log.SetLevel(lvl)
	}
	if logFile == "" {
		return log, func() error { return nil }, nil
	}
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("cosutil: creating log file: %v", err)
	}
	log.Out = io.MultiWriter(os.Stderr, f)
	return log, f.Close, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapString(v), nil
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("cosutil: reading %s: %v", varName, err)
		}
		return o, nil
	case nil:
		return map[string]string{}, nil
	default:
		return nil, fmt.Errorf("cosutil: invalid type for %s: %#v", varName, i)
	}
}
