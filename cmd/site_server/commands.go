package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/internal/storage"
	"github.com/ironwatch/site/internal/storage/memory"
	"github.com/ironwatch/site/pkg/core"
)

var preloadCmd = &cobra.Command{
	Use:   "preload [scene...]",
	Short: "Load every model of the given scenes and print their manifests",
	Long: `Fetches the given scenes (all scenes when none are named), loads each
referenced glTF/GLB model once and prints a JSON manifest per scene.`,
	RunE: runPreload,
}

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "Inspect scene definitions",
}

var scenesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every scene and its markers",
	RunE:  runScenesValidate,
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Work with stored security requests",
}

var requestsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored security requests as JSON",
	RunE:  runRequestsExport,
}

var exportFlags struct {
	since    time.Duration
	status   string
	out      string
	compress bool
}

func init() {
	scenesCmd.AddCommand(scenesValidateCmd)
	requestsCmd.AddCommand(requestsExportCmd)

	f := requestsExportCmd.Flags()
	f.DurationVar(&exportFlags.since, "since", 0, "Only export requests submitted within this duration")
	f.StringVar(&exportFlags.status, "status", "", "Only export requests with this status")
	f.StringVarP(&exportFlags.out, "out", "o", "", "Output directory (default: stdout)")
	f.BoolVar(&exportFlags.compress, "gzip", false, "Gzip the export")
}

func runPreload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(serviceName + "_preload")
	if err != nil {
		return err
	}
	defer a.close()

	client, cache, err := a.newCMSClient(ctx)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}
	scenes, err := a.newSceneSource(ctx, client)
	if err != nil {
		return err
	}

	slugs := args
	if len(slugs) == 0 {
		if slugs, err = scenes.Slugs(ctx); err != nil {
			return err
		}
	}

	preloader := a.newPreloader()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	var failed int
	for _, slug := range slugs {
		sc, err := scenes.Scene(ctx, slug)
		if err != nil {
			a.logger.Error("Loading scene", "scene", slug, "error", err)
			failed++
			continue
		}
		m := preloader.Manifest(ctx, sc)
		for _, e := range m.Models {
			if e.Error != "" {
				failed++
			}
		}
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	a.logger.Info("Models loaded", "count", preloader.Count(), "urls", preloader.URLs())
	if failed > 0 {
		return fmt.Errorf("%d scenes or models failed to load", failed)
	}
	return nil
}

func runScenesValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(serviceName + "_scenes")
	if err != nil {
		return err
	}
	defer a.close()

	client, cache, err := a.newCMSClient(ctx)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}
	scenes, err := a.newSceneSource(ctx, client)
	if err != nil {
		return err
	}

	slugs, err := scenes.Slugs(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	var problems []error
	for _, slug := range slugs {
		sc, err := scenes.Scene(ctx, slug)
		if err == nil {
			err = sc.Validate()
		}
		if err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", slug, err)
			problems = append(problems, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d markers, %d models)\n", slug, len(sc.Markers), len(sc.Models))
		for _, w := range markerWarnings(sc) {
			fmt.Fprintf(out, "     warning: %s\n", w)
		}
	}
	if _, err := scenes.Main(ctx); err != nil {
		fmt.Fprintf(out, "FAIL main scene: %v\n", err)
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}

// markerWarnings lists markers that will be ignored when clicked.
func markerWarnings(sc *core.Scene) []string {
	var out []string
	for _, m := range sc.Markers {
		switch {
		case !m.Camera.Complete():
			out = append(out, fmt.Sprintf("marker %s has no camera position/target", m.ID))
		case m.Route == "":
			out = append(out, fmt.Sprintf("marker %s has no route", m.ID))
		}
	}
	return out
}

func runRequestsExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(serviceName + "_export")
	if err != nil {
		return err
	}
	defer a.close()

	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == "" || storageCfg.Type == "memory" {
		return fmt.Errorf("storage type %q keeps no requests between runs; read its export files instead", storageCfg.Type)
	}

	client, cache, err := a.newCMSClient(ctx)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}
	backend, err := a.initStorage(client)
	if err != nil {
		return err
	}
	defer backend.Close()

	opts := storage.ListOptions{Status: core.RequestStatus(exportFlags.status)}
	if exportFlags.since > 0 {
		opts.Since = time.Now().Add(-exportFlags.since)
	}
	requests, err := backend.ListRequests(ctx, opts)
	if err != nil {
		return fmt.Errorf("listing requests: %w", err)
	}

	now := time.Now()
	export := memory.BuildExport(now, requests, nil)

	var w io.Writer = cmd.OutOrStdout()
	if exportFlags.out != "" {
		if err := os.MkdirAll(exportFlags.out, 0o755); err != nil {
			return err
		}
		path := filepath.Join(exportFlags.out, memory.ExportFileName(now, exportFlags.compress))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		a.logger.Info("Exporting requests", "path", path, "count", len(requests))
	}
	return memory.WriteExport(w, export, exportFlags.compress)
}
