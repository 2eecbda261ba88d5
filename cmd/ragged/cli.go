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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ajroetker/go-ragged/envconfig"
	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/backend"
)

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	root := &cobra.Command{
		Use:           "ragged",
		Short:         "Inspect and exercise the ragged sequence kernels",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	checkCmd := newCheckCmd()
	benchCmd := newBenchCmd()

	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{checkCmd, benchCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{
			envVars["RAGGED_DEBUG"],
			envVars["RAGGED_NO_PARALLEL"],
			envVars["RAGGED_NUM_WORKERS"],
			envVars["RAGGED_PLAN_CACHE"],
		})
	}

	root.AddCommand(newEnvCmd(), newInfoCmd(), checkCmd, benchCmd)
	return root
}

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: envconfig.LogLevel()}))
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if len(header) > 0 {
		table.SetHeader(header)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderLine(false)
	}
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// backendFlags are shared by the commands that run kernels.
type backendFlags struct {
	name       string
	workers    int
	sequential bool
	planCache  int
	dtype      string
}

func (f *backendFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "backend", "cpu", "Backend ("+strings.Join(backend.Names(), ", ")+")")
	fs.IntVar(&f.workers, "workers", 0, "Worker pool size (0 uses RAGGED_NUM_WORKERS)")
	fs.BoolVar(&f.sequential, "sequential", false, "Run every kernel on the calling goroutine")
	fs.IntVar(&f.planCache, "plan-cache", -1, "Plan cache capacity (-1 uses RAGGED_PLAN_CACHE)")
	fs.StringVar(&f.dtype, "dtype", "float32", "Element type (float32, float64)")
}

func (f *backendFlags) options(logger *slog.Logger) []backend.Option {
	opts := []backend.Option{backend.WithLogger(logger)}
	if f.workers > 0 {
		opts = append(opts, backend.WithNumWorkers(f.workers))
	}
	if f.sequential {
		opts = append(opts, backend.WithSequential())
	}
	if f.planCache >= 0 {
		opts = append(opts, backend.WithPlanCache(f.planCache))
	}
	return opts
}

func (f *backendFlags) checkDType() error {
	switch f.dtype {
	case "float32", "float64":
		return nil
	default:
		return fmt.Errorf("unsupported dtype %q", f.dtype)
	}
}

func openBackend[T ragged.Floats](f *backendFlags, logger *slog.Logger) (backend.Ops[T], error) {
	return backend.New[T](f.name, f.options(logger)...)
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the RAGGED_* environment settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars := envconfig.AsMap()
			keys := make([]string, 0, len(vars))
			for k := range vars {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
			for _, k := range keys {
				v := vars[k]
				table.Append([]string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
			}
			table.Render()
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the dispatch level, CPU features and available backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			features := strings.Join(ragged.CPUFeatures(), ",")
			if features == "" {
				features = "none"
			}
			table := newTable(cmd.OutOrStdout())
			table.AppendBulk([][]string{
				{"arch", runtime.GOARCH},
				{"level", ragged.CurrentLevel().String()},
				{"features", features},
				{"workers", fmt.Sprint(envconfig.NumWorkers())},
				{"backends", strings.Join(backend.Names(), ", ")},
			})
			table.Render()
			return nil
		},
	}
}
