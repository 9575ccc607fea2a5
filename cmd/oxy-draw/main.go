// Command oxy-draw renders a grid of LOD meshes through the GPU-driven draw pipeline:
// frustum culling and LOD selection write the indirect buffer that the draws consume.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/Carmen-Shannon/oxy-draw/common"
	"github.com/Carmen-Shannon/oxy-draw/config"
	"github.com/Carmen-Shannon/oxy-draw/engine/window"
	"github.com/Carmen-Shannon/oxy-draw/logger"
	"github.com/spf13/cobra"
)

// GLFW must run on the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	if err := newRootCommand(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Logs go to logOut.
func newRootCommand(logOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "oxy-draw",
		Short:        "GPU-driven culling, LOD selection and indirect drawing demo",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(logOut), newHeadlessCommand(logOut))
	return root
}

// loadConfig returns the defaults for an empty path.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newRunCommand(logOut io.Writer) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a window and draw the scene",
		Long: "Open a window and draw the scene. Keys: C toggles culling, L toggles LOD, " +
			"Space pauses the orbit, the readback key (R by default) dumps the indirect buffer, Esc quits. " +
			"Edits to the config file are applied live.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			level := installLogger(logOut, cfg.Log)

			w := window.NewWindow(
				window.WithTitle(common.Coalesce(cfg.Window.Title, "oxy-draw")),
				window.WithSize(cfg.Window.Width, cfg.Window.Height),
			)
			a, err := newApp(cfg, w)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			go func() {
				<-ctx.Done()
				a.engine.Quit()
			}()

			if configPath != "" {
				err := config.Watch(ctx, configPath, func(next config.Config) {
					if l, err := next.Log.SlogLevel(); err == nil {
						level.Set(l)
					}
					a.engine.ApplyConfig(next)
				})
				if err != nil {
					logger.Component("app").Warn("config watch disabled", "error", err)
				}
			}

			a.engine.Run()
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML or TOML config file")
	return cmd
}

func newHeadlessCommand(logOut io.Writer) *cobra.Command {
	var (
		configPath string
		frames     int
	)
	cmd := &cobra.Command{
		Use:   "headless",
		Short: "Run frames on the software backend and log the indirect buffer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if frames <= 0 {
				return fmt.Errorf("--frames must be positive, got %d", frames)
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.Renderer.Backend = config.BackendSoftware
			installLogger(logOut, cfg.Log)

			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := a.scene.Manager().Culling().Barrier().Wait(ctx); err != nil {
				return fmt.Errorf("wait for bounding boxes: %w", err)
			}
			if err := a.engine.RunFrames(ctx, frames); err != nil {
				return err
			}
			logger.Component("app").Info("headless run complete", "frames", frames)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML or TOML config file")
	cmd.Flags().IntVarP(&frames, "frames", "n", 1, "number of frames to run")
	return cmd
}
