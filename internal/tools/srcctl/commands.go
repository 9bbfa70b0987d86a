package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pumpspares/src_project/internal/formula"
	"github.com/pumpspares/src_project/internal/logx"
	"github.com/pumpspares/src_project/internal/model"
	"github.com/pumpspares/src_project/internal/services/gateway/app"
	"github.com/pumpspares/src_project/internal/srccalc"
	"github.com/pumpspares/src_project/internal/wizard"
	"github.com/pumpspares/src_project/pkg/qhfile"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "srcctl",
		Short:         "System resistance curve calculator",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			logx.Setup("srcctl", logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	root.AddCommand(newSHCmd(), newKCmd(), newCurveCmd(), newCalcCmd())
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSHCmd() *cobra.Command {
	var p model.ProcessParameters
	cmd := &cobra.Command{
		Use:   "sh",
		Short: "Static head from the process parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !formula.Positive(p.SG) {
				return fmt.Errorf("--sg must be greater than zero")
			}
			return printJSON(cmd, map[string]float64{"shValue": formula.ComputeSH(p)})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&p.TankHeight, "h1", 0, "DA tank height (m)")
	f.Float64Var(&p.DrumHeight, "h2", 0, "boiler drum height (m)")
	f.Float64Var(&p.TankPressure, "p1", 0, "DA tank pressure (kg/cm²)")
	f.Float64Var(&p.DrumPressure, "p2", 0, "boiler drum pressure (kg/cm²)")
	f.Float64Var(&p.SG, "sg", 0, "specific gravity")
	f.Float64Var(&p.FeedWaterTemp, "temp", 0, "feed water temperature (°C)")
	for _, name := range []string{"h1", "h2", "p1", "p2", "sg"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newKCmd() *cobra.Command {
	var q, h, sh float64
	cmd := &cobra.Command{
		Use:   "k",
		Short: "Resistance coefficient (h - sh) / q²",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, map[string]float64{"k": formula.ComputeK(q, h, sh)})
		},
	}
	cmd.Flags().Float64Var(&q, "q", 0, "flow")
	cmd.Flags().Float64Var(&h, "h", 0, "head")
	cmd.Flags().Float64Var(&sh, "sh", 0, "static head")
	_ = cmd.MarkFlagRequired("q")
	_ = cmd.MarkFlagRequired("h")
	_ = cmd.MarkFlagRequired("sh")
	return cmd
}

func newCurveCmd() *cobra.Command {
	var sh, k, qMax float64
	var points int
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Sample SRC = sh + k·q² over [0, qmax]",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if points < 1 {
				return fmt.Errorf("--points must be at least 1")
			}
			return printJSON(cmd, formula.SampleCurve(sh, k, qMax, points))
		},
	}
	cmd.Flags().Float64Var(&sh, "sh", 0, "static head")
	cmd.Flags().Float64Var(&k, "k", 0, "resistance coefficient")
	cmd.Flags().Float64Var(&qMax, "qmax", 0, "maximum flow")
	cmd.Flags().IntVar(&points, "points", formula.ConfirmedSamples, "number of points")
	_ = cmd.MarkFlagRequired("sh")
	_ = cmd.MarkFlagRequired("k")
	_ = cmd.MarkFlagRequired("qmax")
	return cmd
}

func newCalcCmd() *cobra.Command {
	var (
		in      srccalc.Input
		backend string
		qhPath  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Full SRC calculation, locally or through a backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ds wizard.Dataset
			if qhPath != "" {
				data, err := os.ReadFile(qhPath)
				if err != nil {
					return fmt.Errorf("read Q-H file: %w", err)
				}
				ds = wizard.Dataset{Name: filepath.Base(qhPath), Data: data}
			}

			if backend == "" {
				res, err := calcLocal(in, ds)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}

			gw := app.NewGateway(app.Config{
				CalcBaseURL:     backend,
				HTTPTimeout:     timeout,
				BreakerFailures: 1,
				Logger:          log.WithField("service", "srcctl"),
			})
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
			defer cancel()
			res, err := gw.Calculate(ctx, wizard.CalculationRequest{
				SH: in.SH, Qnp: in.Qnp, Hnp: in.Hnp, Qact: in.Qact, Hact: in.Hact, Dataset: ds,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&in.SH, "sh", 0, "static head")
	f.Float64Var(&in.Qnp, "qnp", 0, "name-plate flow")
	f.Float64Var(&in.Hnp, "hnp", 0, "name-plate head")
	f.Float64Var(&in.Qact, "qact", 0, "actual flow")
	f.Float64Var(&in.Hact, "hact", 0, "actual head")
	f.StringVar(&backend, "backend", "", "calculation backend base URL (local when empty)")
	f.StringVar(&qhPath, "qh-file", "", "pump Q-H curve (.csv or .xlsx)")
	f.DurationVar(&timeout, "timeout", 15*time.Second, "backend timeout")
	for _, name := range []string{"sh", "qnp", "hnp", "qact", "hact"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func calcLocal(in srccalc.Input, ds wizard.Dataset) (model.SRCResult, error) {
	var qh []model.QHPoint
	if !ds.Empty() {
		pts, err := qhfile.Parse(ds.Name, bytes.NewReader(ds.Data))
		if err != nil {
			return model.SRCResult{}, err
		}
		qh = pts
	}
	res := srccalc.Compute(in, qh, formula.ConfirmedSamples)
	res.Source = model.SourceLocalFallback
	return res, nil
}
