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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/cosflux/cosflux"
	"github.com/cosflux/cosflux/internal/monitor"
	"github.com/cosflux/cosflux/internal/store"
	"github.com/cosflux/cosflux/plant"
	"github.com/ctessum/sparse"
	"github.com/lnashier/viper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	box := cosflux.DefaultBoxConfig()
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left undefined, the forward
              command writes its log next to OutputFile and the others log only
              to standard error.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages: debug, info, warn or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "scenario",
			usage: `
              scenario is the path to a TOML file holding the isotope parameters,
              fractionation factors, ocean scaling and instrument uncertainty of
              the run. If it is empty the default scenario is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags(), sitesCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "OceanFlux",
			usage: `
              OceanFlux is the path to the netCDF file of COS-32 ocean production.
              It can be a local path, an http(s) URL, or a gs://, s3:// or file://
              blob. It must hold lat and lon coordinate variables for site output.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags()},
		},
		{
			name: "AnthroFlux",
			usage: `
              AnthroFlux is the path to the netCDF file of COS-32 anthropogenic production.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags()},
		},
		{
			name: "PlantFlux",
			usage: `
              PlantFlux is the path to the netCDF file of COS-32 plant uptake. It may be empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags()},
		},
		{
			name: "SoilFlux",
			usage: `
              SoilFlux is the path to the netCDF file of COS-32 soil uptake. It may be empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags()},
		},
		{
			name: "FluxVariable",
			usage: `
              FluxVariable is the name of the flux variable in each flux file.`,
			defaultVal: "COS_Flux",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile specifies the path to the desired output netCDF file
              location. It can include environment variables.`,
			defaultVal: "cosflux_output.nc",
			shorthand:  "o",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags(), plantfluxCmd.Flags(), stackCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which derived variables to write to the
              forward model output file, and how to calculate them from the model
              variables OCS32, OCS34, Ratio and Delta. Expressions may use the
              functions exp, log, abs, delta and ratio.`,
			defaultVal: map[string]string{"TotalCOS": "OCS32 + OCS34"},
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags()},
		},
		{
			name: "DB",
			usage: `
              DB is the PostgreSQL connection string of the site series database.
              If it is empty, series are not stored.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Sites.File",
			usage: `
              Sites.File is the tab-separated table of NOAA sites, with Code,
              Latitude and Longitude columns.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{forwardCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "Sites.DataFile",
			usage: `
              Sites.DataFile is the netCDF file to sample at the sites, usually
              forward model output.`,
			defaultVal: "cosflux_output.nc",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Sites.Variable",
			usage: `
              Sites.Variable is the variable of Sites.DataFile to sample.`,
			defaultVal: "Delta",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Sites.Level",
			usage: `
              Sites.Level is the vertical level to sample.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Sites.Anomaly",
			usage: `
              Sites.Anomaly removes the mean of the field before sampling.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Sites.OutputDir",
			usage: `
              Sites.OutputDir is the directory the gradient figures are written to.`,
			defaultVal: "sites",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Box.Years",
			usage: `
              Box.Years is the number of years the box model runs for.`,
			defaultVal: box.Years,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Box.Dt",
			usage: `
              Box.Dt multiplies the monthly fluxes of the box model.`,
			defaultVal: box.Dt,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Box.SourceDelta",
			usage: `
              Box.SourceDelta is the δ34S [permil] of production in the box model.`,
			defaultVal: box.SourceDelta,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Box.UptakeEpsilon",
			usage: `
              Box.UptakeEpsilon is the fractionation of uptake [permil] in the box model.`,
			defaultVal: box.UptakeEpsilon,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Box.OutputDir",
			usage: `
              Box.OutputDir is the directory the box model table and figures are written to.`,
			defaultVal: "box",
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Plant.GEEFile",
			usage: `
              Plant.GEEFile is the netCDF file of 3-hourly gross ecosystem exchange
              [kgC m-2 s-1].`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plantfluxCmd.Flags()},
		},
		{
			name: "Plant.GEEVariable",
			usage: `
              Plant.GEEVariable is the name of the GEE variable in Plant.GEEFile.`,
			defaultVal: "GEE",
			flagsets:   []*pflag.FlagSet{plantfluxCmd.Flags()},
		},
		{
			name: "Plant.StartDate",
			usage: `
              Plant.StartDate is the date of the first GEE record, as YYYY-MM-DD.`,
			defaultVal: "2000-01-01",
			flagsets:   []*pflag.FlagSet{plantfluxCmd.Flags()},
		},
		{
			name: "Plant.LRU",
			usage: `
              Plant.LRU is the leaf relative uptake ratio of COS to CO2.`,
			defaultVal: plant.DefaultParams.LRU,
			flagsets:   []*pflag.FlagSet{plantfluxCmd.Flags()},
		},
		{
			name: "Plant.CO2",
			usage: `
              Plant.CO2 is the atmospheric CO2 concentration used by the plant uptake model.`,
			defaultVal: plant.DefaultParams.CO2,
			flagsets:   []*pflag.FlagSet{plantfluxCmd.Flags()},
		},
		{
			name: "Plant.COS",
			usage: `
              Plant.COS is the atmospheric COS concentration used by the plant uptake model.`,
			defaultVal: plant.DefaultParams.COS,
			flagsets:   []*pflag.FlagSet{plantfluxCmd.Flags()},
		},
		{
			name: "Totals.File",
			usage: `
              Totals.File is the netCDF file of monthly mean fluxes [amount m-2 s-1]
              to total. It must hold 12 months and lat and lon coordinate variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{totalsCmd.Flags()},
		},
		{
			name: "Totals.Variable",
			usage: `
              Totals.Variable is the flux variable in Totals.File.`,
			defaultVal: "COS_Flux",
			flagsets:   []*pflag.FlagSet{totalsCmd.Flags()},
		},
		{
			name: "Totals.Year",
			usage: `
              Totals.Year is the year of the fluxes, which sets the month lengths.`,
			defaultVal: 2000,
			flagsets:   []*pflag.FlagSet{totalsCmd.Flags()},
		},
		{
			name: "Stack.Dir",
			usage: `
              Stack.Dir is the directory of daily netCDF files, organized as
              Stack.Dir/YYYY/MM/*.nc.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{stackCmd.Flags()},
		},
		{
			name: "Stack.Variable",
			usage: `
              Stack.Variable is the variable to average into monthly means.`,
			defaultVal: "COS_Flux",
			flagsets:   []*pflag.FlagSet{stackCmd.Flags()},
		},
		{
			name: "Serve.Address",
			usage: `
              Serve.Address is the address the HTTP server listens on.`,
			defaultVal: "localhost:8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("COSFLUX")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // The flag only needs to be created once.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	Root.AddCommand(versionCmd)
	Root.AddCommand(forwardCmd)
	Root.AddCommand(boxCmd)
	Root.AddCommand(plantfluxCmd)
	Root.AddCommand(totalsCmd)
	Root.AddCommand(sitesCmd)
	Root.AddCommand(stackCmd)
	Root.AddCommand(serveCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("cosutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cosflux",
	Short: "A carbonyl sulfide isotope flux model.",
	Long: `COSFlux estimates the sulfur isotope composition (δ34S) of atmospheric
carbonyl sulfide (COS) from gridded production and uptake fluxes, and
compares the results with measurements at NOAA sites.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'COSFLUX_var' where 'var' is
the name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of COSFlux.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("COSFlux v%s\n", cosflux.Version)
	},
	DisableAutoGenTag: true,
}

// logger creates the logger of a command, logging to outputFile's log
// file if one is given.
func logger(outputFile string) (*logrus.Logger, func() error, error) {
	logFile := Cfg.GetString("LogFile")
	if outputFile != "" {
		logFile = checkLogFile(logFile, outputFile)
	}
	return newLogger(os.ExpandEnv(logFile))
}

// download fetches each of the named configuration paths with
// maybeDownload and returns the local paths in the same order.
func download(ctx context.Context, log logrus.FieldLogger, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		p, err := maybeDownload(ctx, Cfg.GetString(n), log)
		if err != nil {
			return nil, fmt.Errorf("cosutil: %s: %v", n, err)
		}
		out[i] = p
	}
	return out, nil
}

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Run the forward model.",
	Long: `forward runs the gridded forward model: each grid cell is an independent
box whose COS-32 and COS-34 pools are advanced through time by ocean and
anthropogenic production and plant and soil uptake. The pools, ratio, δ34S
and any OutputVariables are written to OutputFile. If DB and Sites.File are
set, the series at each site are also stored in the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		log, closeLog, err := logger(outputFile)
		if err != nil {
			return err
		}
		defer closeLog()

		sc, err := loadScenario(Cfg.GetString("scenario"))
		if err != nil {
			return err
		}
		outputVars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		files, err := download(ctx, log, "OceanFlux", "AnthroFlux", "PlantFlux", "SoilFlux", "Sites.File")
		if err != nil {
			return err
		}
		in := &ForwardInput{
			Scenario:        sc,
			OceanFile:       files[0],
			AnthroFile:      files[1],
			PlantFile:       files[2],
			SoilFile:        files[3],
			FluxVariable:    Cfg.GetString("FluxVariable"),
			OutputFile:      outputFile,
			OutputVariables: checkOutputVars(outputVars),
			SitesFile:       files[4],
		}
		reg := prometheus.NewRegistry()
		metrics, err := monitor.NewCollector(reg, "cosflux")
		if err != nil {
			return err
		}
		if dsn := Cfg.GetString("DB"); dsn != "" {
			db, err := store.Open(ctx, os.ExpandEnv(dsn), log, metrics)
			if err != nil {
				return err
			}
			defer db.Close()
			if err = db.Migrate(ctx); err != nil {
				return err
			}
			in.Store = db
		}
		if _, err = Forward(ctx, in, log, metrics); err != nil {
			return err
		}
		return logMetrics(reg, log)
	},
	DisableAutoGenTag: true,
}

var boxCmd = &cobra.Command{
	Use:   "box",
	Short: "Run the seasonal box model.",
	Long: `box runs a single well-mixed box driven by a repeating monthly cycle of
production and uptake, and writes the end-of-month COS and δ34S to a table
and a figure for each year in Box.OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeLog, err := logger("")
		if err != nil {
			return err
		}
		defer closeLog()
		dir, err := checkOutputDir(Cfg.GetString("Box.OutputDir"))
		if err != nil {
			return err
		}
		c := cosflux.DefaultBoxConfig()
		c.Years = Cfg.GetInt("Box.Years")
		c.Dt = Cfg.GetFloat64("Box.Dt")
		c.SourceDelta = Cfg.GetFloat64("Box.SourceDelta")
		c.UptakeEpsilon = Cfg.GetFloat64("Box.UptakeEpsilon")
		_, err = Box(c, dir, log)
		return err
	},
	DisableAutoGenTag: true,
}

var plantfluxCmd = &cobra.Command{
	Use:   "plantflux",
	Short: "Calculate monthly COS plant uptake from GEE.",
	Long: `plantflux converts 3-hourly gross ecosystem exchange into monthly totals of
GEE and COS plant uptake, using the leaf relative uptake ratio, and writes
them to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		log, closeLog, err := logger("")
		if err != nil {
			return err
		}
		defer closeLog()
		start, err := checkDate("Plant.StartDate", Cfg.GetString("Plant.StartDate"))
		if err != nil {
			return err
		}
		files, err := download(ctx, log, "Plant.GEEFile")
		if err != nil {
			return err
		}
		p := plant.Params{
			LRU: Cfg.GetFloat64("Plant.LRU"),
			CO2: Cfg.GetFloat64("Plant.CO2"),
			COS: Cfg.GetFloat64("Plant.COS"),
		}
		_, err = PlantFlux(files[0], Cfg.GetString("Plant.GEEVariable"), start, p, outputFile, log)
		return err
	},
	DisableAutoGenTag: true,
}

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Calculate the global annual total of a monthly flux.",
	Long: `totals multiplies monthly mean fluxes by the length of each month and the
area of each grid cell, and prints the global annual total.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log, closeLog, err := logger("")
		if err != nil {
			return err
		}
		defer closeLog()
		files, err := download(ctx, log, "Totals.File")
		if err != nil {
			return err
		}
		t, err := Totals(files[0], Cfg.GetString("Totals.Variable"), Cfg.GetInt("Totals.Year"), log)
		if err != nil {
			return err
		}
		cmd.Printf("%g\n", t)
		return nil
	},
	DisableAutoGenTag: true,
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Sample model output at NOAA sites.",
	Long: `sites samples a variable at the NOAA measurement sites, draws the Pacific,
Atlantic and Indian Ocean latitudinal gradients, and reports whether the
seasonal amplitude at each site exceeds the instrument uncertainty of the
scenario.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log, closeLog, err := logger("")
		if err != nil {
			return err
		}
		defer closeLog()
		sc, err := loadScenario(Cfg.GetString("scenario"))
		if err != nil {
			return err
		}
		dir, err := checkOutputDir(Cfg.GetString("Sites.OutputDir"))
		if err != nil {
			return err
		}
		files, err := download(ctx, log, "Sites.File", "Sites.DataFile")
		if err != nil {
			return err
		}
		amps, err := Sites(files[0], files[1], Cfg.GetString("Sites.Variable"), Cfg.GetInt("Sites.Level"),
			Cfg.GetBool("Sites.Anomaly"), sc.InstrumentUncertainty, dir, log)
		if err != nil {
			return err
		}
		for _, a := range amps {
			cmd.Printf("%s\t%g\t%v\n", a.Code, a.Amplitude, a.Detectable)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Average daily files into monthly means.",
	Long: `stack averages the daily netCDF files in Stack.Dir/YYYY/MM into monthly
means and writes them in date order to OutputFile. Incomplete months are
skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		log, closeLog, err := logger("")
		if err != nil {
			return err
		}
		defer closeLog()
		_, err = Stack(os.ExpandEnv(Cfg.GetString("Stack.Dir")), Cfg.GetString("Stack.Variable"), outputFile, log)
		return err
	},
	DisableAutoGenTag: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve site series and metrics over HTTP.",
	Long: `serve starts an HTTP server with the routes /sites, /sites/{code}/series,
/delta/{step}, /health and /metrics. Series are read from the DB database
and δ34S summaries from the Delta variable of Sites.DataFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log, closeLog, err := logger("")
		if err != nil {
			return err
		}
		defer closeLog()
		sc, err := loadScenario(Cfg.GetString("scenario"))
		if err != nil {
			return err
		}
		reg := prometheus.NewRegistry()
		metrics, err := monitor.NewCollector(reg, "cosflux")
		if err != nil {
			return err
		}
		var repo store.Repository
		if dsn := Cfg.GetString("DB"); dsn != "" {
			db, err := store.Open(ctx, os.ExpandEnv(dsn), log, metrics)
			if err != nil {
				return err
			}
			defer db.Close()
			repo = db
		}
		var delta *sparse.DenseArray
		if f := Cfg.GetString("Sites.DataFile"); f != "" {
			files, err := download(ctx, log, "Sites.DataFile")
			if err != nil {
				return err
			}
			if delta, err = cosflux.ReadNCFFile(files[0], "Delta"); err != nil {
				log.WithError(err).Warn("not serving δ34S summaries")
				delta = nil
			}
		}
		s := NewServer(repo, delta, sc.Key(), log, metrics, reg)
		addr := Cfg.GetString("Serve.Address")
		log.WithField("address", addr).Info("server starting")
		return http.ListenAndServe(addr, s.Handler())
	},
	DisableAutoGenTag: true,
}
