// Copyright (c) 2026 The dataplatform Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/FelipeFurlaneto/dataplatform/pkg/config"
	"github.com/FelipeFurlaneto/dataplatform/pkg/logging"
	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster/kubernetes"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/master"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/session"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/sql"
)

// app carries what every subcommand shares.
type app struct {
	cfg     *config.Config
	metrics *metrics.Collector
	logger  logr.Logger

	// builder hooks let tests swap the cluster backend.
	builder func() *session.Builder
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg, metrics: metrics.NewCollector(), builder: session.NewBuilder}

	rootCmd := &cobra.Command{
		Use:           "sparkctl",
		Short:         "Run Spark client-mode sessions against local or Kubernetes masters",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logCfg := logging.LoadConfigWithFlags(cfg.LogLevel, cfg.LogFormat, nil)
			logCfg.Output = cmd.ErrOrStderr()
			a.logger = logging.SetupLoggerWithAttrs(logCfg, "sparkctl", version)
			cmd.SetContext(log.IntoContext(cmd.Context(), a.logger))
			return cfg.ExportKubeconfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.MetricsPath == "" {
				return nil
			}
			if err := a.metrics.Write(cfg.MetricsPath); err != nil {
				return errors.Wrap(err, "failed to write metrics")
			}
			a.logger.V(1).Info("Wrote metrics", "path", cfg.MetricsPath)
			return nil
		},
	}
	cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(a.newRangeCmd())
	rootCmd.AddCommand(a.newConfCmd())
	rootCmd.AddCommand(a.newExecutorsCmd())
	rootCmd.AddCommand(a.newStopCmd())
	return rootCmd
}

// sessionBuilder applies the resolved configuration to a new builder.
func (a *app) sessionBuilder() (*session.Builder, error) {
	opts, err := a.cfg.SparkOptions()
	if err != nil {
		return nil, err
	}
	b := a.builder().WithLogger(a.logger).WithMetrics(a.metrics)
	if a.cfg.PropertiesFile != "" {
		b = b.WithPropertiesFile(a.cfg.PropertiesFile)
	}
	for _, kv := range opts {
		b = b.Config(kv.Key, kv.Value)
	}
	return b, nil
}

// withSession starts a session, runs fn and always stops the session.
func (a *app) withSession(ctx context.Context, fn func(s *session.Session) error) (err error) {
	b, err := a.sessionBuilder()
	if err != nil {
		return err
	}
	s, err := b.GetOrCreate(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Stop(context.WithoutCancel(ctx)))
	}()
	return fn(s)
}

type rangeOptions struct {
	start, end, step int64
	partitions       int
	column           string
	rows, truncate   int
	vertical         bool
	output, format   string
	mode             string
	writeOptions     []string
}

func (a *app) newRangeCmd() *cobra.Command {
	o := rangeOptions{}

	cmd := &cobra.Command{
		Use:   "range",
		Short: "Generate a range of numbers on the cluster and show it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				return runRange(cmd, s, o)
			})
		},
	}

	cmd.Flags().Int64Var(&o.start, "start", 0, "first value")
	cmd.Flags().Int64Var(&o.end, "end", 1000, "end value (exclusive)")
	cmd.Flags().Int64Var(&o.step, "step", 1, "increment, may be negative")
	cmd.Flags().IntVar(&o.partitions, "partitions", 0, "number of partitions (0 uses the default parallelism)")
	cmd.Flags().StringVar(&o.column, "column", "number", "column name")
	cmd.Flags().IntVar(&o.rows, "rows", sql.DefaultShowRows, "rows to show")
	cmd.Flags().IntVar(&o.truncate, "truncate", sql.DefaultShowTruncate, "truncate cells longer than this (0 disables)")
	cmd.Flags().BoolVar(&o.vertical, "vertical", false, "show one line per column")
	cmd.Flags().StringVar(&o.output, "output", "", "also save the rows under this path or object store URI")
	cmd.Flags().StringVar(&o.format, "format", sql.FormatParquet, "output format: csv|json|parquet")
	cmd.Flags().StringVar(&o.mode, "mode", string(sql.SaveModeErrorIfExists), "save mode: errorifexists|overwrite|append|ignore")
	cmd.Flags().StringArrayVar(&o.writeOptions, "option", nil, "writer option as key=value, may be repeated")

	return cmd
}

func runRange(cmd *cobra.Command, s *session.Session, o rangeOptions) error {
	ctx := cmd.Context()
	opts := []session.RangeOption{session.WithStep(o.step)}
	if o.partitions > 0 {
		opts = append(opts, session.WithNumPartitions(o.partitions))
	}
	df, err := s.Range(o.start, o.end, opts...)
	if err != nil {
		return err
	}
	df, err = df.ToDF(o.column)
	if err != nil {
		return err
	}
	if err := df.Show(ctx, cmd.OutOrStdout(), sql.WithNumRows(o.rows), sql.WithTruncate(o.truncate), sql.WithVertical(o.vertical)); err != nil {
		return err
	}
	if o.output == "" {
		return nil
	}

	writeOptions, err := config.ParseConfPairs(o.writeOptions)
	if err != nil {
		return err
	}
	w := df.Write().Format(o.format).Mode(o.mode)
	for _, kv := range writeOptions {
		w = w.Option(kv.Key, kv.Value)
	}
	return w.Save(ctx, o.output)
}

func (a *app) newConfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conf",
		Short: "Print the resolved session configuration without starting a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.resolveConf()
			if err != nil {
				return err
			}
			for _, kv := range c.Redacted() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", kv.Key, kv.Value)
			}
			return nil
		},
	}
}

// resolveConf merges the properties file and the command line the way a
// session would, without starting one.
func (a *app) resolveConf() (*conf.Conf, error) {
	c := conf.New()
	path := a.cfg.PropertiesFile
	if path == "" {
		path = conf.DefaultsPath()
	}
	if path != "" {
		entries, err := conf.LoadDefaults(path)
		if err != nil {
			return nil, err
		}
		for _, kv := range entries {
			if err := c.Set(kv.Key, kv.Value); err != nil {
				return nil, err
			}
		}
	}
	opts, err := a.cfg.SparkOptions()
	if err != nil {
		return nil, err
	}
	for _, kv := range opts {
		if err := c.Set(kv.Key, kv.Value); err != nil {
			return nil, err
		}
	}
	return c.Freeze(), nil
}

func (a *app) newExecutorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "executors",
		Short: "Start a session and list its executors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session.Session) error {
				execs, err := s.Executors(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPOD\tPHASE\tHOST\tCORES")
				for _, e := range execs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.ID, orDash(e.PodName), orDash(e.Phase), orDash(e.Host), e.Cores)
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) newStopCmd() *cobra.Command {
	var appID string
	var list bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Delete executor pods left behind by an application",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !list && appID == "" {
				return errors.New("either --app-id or --list is required")
			}
			ctx := cmd.Context()
			c, err := a.resolveConf()
			if err != nil {
				return err
			}
			u, err := master.Parse(c.GetOrDefault(conf.Master, ""))
			if err != nil {
				return err
			}
			if u.Kind != master.KindKubernetes {
				return errors.Errorf("stop needs a k8s:// master, got %s", u.Raw)
			}
			restCfg, err := kubernetes.RestConfig(u.APIServer, c)
			if err != nil {
				return err
			}
			kubeClient, err := kubernetes.NewClient(restCfg)
			if err != nil {
				return err
			}
			namespace := c.GetOrDefault(conf.KubernetesNamespace, kubernetes.DefaultNamespace)

			if list {
				apps, err := kubernetes.ListApplications(ctx, kubeClient, namespace)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "APP ID\tAPP NAME\tPODS\tRUNNING")
				for _, app := range apps {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", app.AppID, orDash(app.AppName), app.Pods, app.Running)
				}
				return tw.Flush()
			}

			if err := kubernetes.DeleteExecutorPods(ctx, kubeClient, namespace, appID); err != nil {
				return err
			}
			a.logger.Info("Deleted executor pods", "appId", appID, "namespace", namespace)
			return nil
		},
	}

	cmd.Flags().StringVar(&appID, "app-id", "", "application id whose executor pods are deleted")
	cmd.Flags().BoolVar(&list, "list", false, "list applications with executor pods instead of deleting")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
