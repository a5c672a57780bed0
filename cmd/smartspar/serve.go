package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smartspar/internal/config"
	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/camera"
	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/history"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/recording"
	"github.com/teslashibe/go-smartspar/pkg/session"
	"github.com/teslashibe/go-smartspar/pkg/web"
)

var (
	serveNoCamera bool
	serveRecord   bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API, dashboard websockets, keypoint ingest and camera loop",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().BoolVar(&serveNoCamera, "no-camera", false, "do not open a local camera")
	cmd.Flags().BoolVar(&serveRecord, "record", false, "record every session's keypoints")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := session.NewRegistry(cfg.Classifier.Classifier(), nil)

	var store *history.Store
	if cfg.History.Path != "" {
		var err error
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				log.Warn("failed to close history", "error", cerr)
			}
		}()
	}

	srv := web.NewServer(web.Options{
		Port:              strconv.Itoa(cfg.Server.Port),
		StaticDir:         cfg.Server.StaticDir,
		BroadcastInterval: cfg.Server.Interval(),
	}, reg, store)

	if cfg.Recording.Enabled || serveRecord {
		rec := recording.NewRecorder(cfg.Recording.Dir)
		srv.SetRecorder(rec)
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn("failed to finish recordings", "error", err)
			}
		}()
		log.Info("recording enabled", "dir", rec.Dir())
	}

	go func() {
		err := config.Watch(ctx, configPath, func(c config.Config) {
			reg.SetConfig(c.Classifier.Classifier())
			log.Info("classifier config applied to new sessions")
		})
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		}
	}()

	if cfg.Camera.Enabled && !serveNoCamera {
		go runCamera(ctx, reg, srv)
	}

	err := srv.Start(ctx)

	// Persist whatever was still running
	reports := reg.Close()
	if store != nil {
		for _, rep := range reports {
			if serr := store.Save(context.Background(), rep); serr != nil {
				log.Warn("failed to save report", "session", rep.SessionID, "error", serr)
			}
		}
	}
	return err
}

func cameraConfig(c config.CameraConfig) camera.Config {
	return camera.Config{
		Devices:   c.Devices,
		Width:     c.Width,
		Height:    c.Height,
		Framerate: int(math.Round(c.FPS)),
		Quality:   c.Quality,
		Overlay:   c.Overlay,
		Mirror:    c.Mirror,
	}
}

// runCamera feeds a session from the local camera until ctx is done or the
// session is ended. Without a camera it publishes a placeholder frame.
func runCamera(ctx context.Context, reg *session.Registry, srv *web.Server) {
	camCfg := cameraConfig(cfg.Camera)
	est := pose.NewRemoteEstimator(cfg.Pose.Remote())

	src, err := camera.Open(camCfg, est, srv.SendCameraFrame)
	if err != nil {
		if errors.Is(err, camera.ErrNoCamera) {
			log.Warn("no camera found, serving keypoint ingest only", "devices", camCfg.Devices)
			if err := camera.RunPlaceholder(ctx, camCfg, srv.SendCameraFrame); err != nil {
				log.Warn("placeholder failed", "error", err)
			}
			return
		}
		log.Error("failed to open camera", "error", err)
		return
	}

	sess := reg.Create()
	m := camera.NewManager(camCfg)
	m.OnConfigChange = src.Apply
	srv.SetCamera(m, sess.ID, src.Device())
	log.Info("camera session started", "session", sess.ID, "device", src.Device())

	err = sess.Run(ctx, src, func(frame *pose.Frame, res classifier.Result) {
		src.Annotate(frame, res)
		srv.RecordFrame(sess.ID, frame)
	})
	if err != nil {
		log.Error("camera loop failed", "session", sess.ID, "error", err)
	}
	srv.SetCamera(nil, "", 0)
}
