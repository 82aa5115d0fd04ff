package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"diffusiond/internal/catalog"
	"diffusiond/internal/config"
	"diffusiond/internal/engine"
	"diffusiond/internal/filters"
	"diffusiond/internal/httpapi"
	"diffusiond/internal/manager"
	"diffusiond/internal/options"
	"diffusiond/internal/tasks"
	"diffusiond/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr        string
		configFile  string
		optionsFile string

		ckptDir         string
		vaeDir          string
		loraDir         string
		controlNetDir   string
		textEncoderDir  string
		embeddingsDir   string
		upscalerDir     string
		hypernetworkDir string

		threads       int
		offloadToCPU  bool
		vaeOnCPU      bool
		clipOnCPU     bool
		controlNetCPU bool
		diffusionFA   bool

		corsOrigins string
		maxBodyMB   int64
	)

	cmd := &cobra.Command{
		Use:           "diffusiond",
		Short:         "HTTP server for local stable-diffusion image generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{
				Addr:            addr,
				OptionsFile:     optionsFile,
				CheckpointDir:   ckptDir,
				VAEDir:          vaeDir,
				LoRADir:         loraDir,
				ControlNetDir:   controlNetDir,
				TextEncoderDir:  textEncoderDir,
				EmbeddingsDir:   embeddingsDir,
				UpscalerDir:     upscalerDir,
				HypernetworkDir: hypernetworkDir,
				Threads:         threads,
				OffloadToCPU:    offloadToCPU,
				VAEOnCPU:        vaeOnCPU,
				ClipOnCPU:       clipOnCPU,
				ControlNetCPU:   controlNetCPU,
				DiffusionFA:     diffusionFA,
			}
			if configFile != "" {
				fileCfg, err := config.Load(configFile)
				if err != nil {
					return err
				}
				// flags win over file values
				cfg = mergeConfig(fileCfg, cfg, cmd)
			}
			return run(cfg, corsOrigins, maxBodyMB)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", envOr("DIFFUSIOND_ADDR", ":7860"), "HTTP listen address")
	f.StringVar(&configFile, "config", os.Getenv("DIFFUSIOND_CONFIG"), "Optional config file (yaml/json/toml)")
	f.StringVar(&optionsFile, "options-file", envOr("DIFFUSIOND_OPTIONS", "options.json"), "Persisted options file")
	f.StringVar(&ckptDir, "ckpt-dir", envOr("DIFFUSIOND_CKPT_DIR", "~/models/checkpoints"), "Checkpoint model directory")
	f.StringVar(&vaeDir, "vae-dir", os.Getenv("DIFFUSIOND_VAE_DIR"), "VAE model directory")
	f.StringVar(&loraDir, "lora-dir", os.Getenv("DIFFUSIOND_LORA_DIR"), "LoRA model directory")
	f.StringVar(&controlNetDir, "controlnet-dir", os.Getenv("DIFFUSIOND_CONTROLNET_DIR"), "ControlNet model directory")
	f.StringVar(&textEncoderDir, "text-encoder-dir", os.Getenv("DIFFUSIOND_TEXT_ENCODER_DIR"), "Text encoder model directory")
	f.StringVar(&embeddingsDir, "embeddings-dir", os.Getenv("DIFFUSIOND_EMBEDDINGS_DIR"), "Embeddings directory")
	f.StringVar(&upscalerDir, "upscaler-dir", os.Getenv("DIFFUSIOND_UPSCALER_DIR"), "Upscaler model directory")
	f.StringVar(&hypernetworkDir, "hypernetwork-dir", os.Getenv("DIFFUSIOND_HYPERNETWORK_DIR"), "Hypernetwork directory")
	f.IntVar(&threads, "threads", 0, "Worker threads for the native runtime (0 = auto)")
	f.BoolVar(&offloadToCPU, "offload-to-cpu", false, "Keep weights in RAM, move to device per stage")
	f.BoolVar(&vaeOnCPU, "vae-on-cpu", false, "Run the VAE on CPU")
	f.BoolVar(&clipOnCPU, "clip-on-cpu", false, "Run text encoders on CPU")
	f.BoolVar(&controlNetCPU, "control-net-cpu", false, "Run ControlNet on CPU")
	f.BoolVar(&diffusionFA, "diffusion-fa", false, "Enable flash attention in the diffusion model")
	f.StringVar(&corsOrigins, "cors-origins", os.Getenv("DIFFUSIOND_CORS_ORIGINS"), "Comma-separated CORS origins (empty disables CORS)")
	f.Int64Var(&maxBodyMB, "max-body-mb", 64, "Maximum request body size in MiB")

	return cmd
}

// mergeConfig overlays flag values on top of the file config: any flag the
// user set explicitly wins, everything else comes from the file.
func mergeConfig(file, flags config.Config, cmd *cobra.Command) config.Config {
	out := file
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("addr") || out.Addr == "" {
		out.Addr = flags.Addr
	}
	if set("options-file") || out.OptionsFile == "" {
		out.OptionsFile = flags.OptionsFile
	}
	if set("ckpt-dir") || out.CheckpointDir == "" {
		out.CheckpointDir = flags.CheckpointDir
	}
	if set("vae-dir") || out.VAEDir == "" {
		out.VAEDir = flags.VAEDir
	}
	if set("lora-dir") || out.LoRADir == "" {
		out.LoRADir = flags.LoRADir
	}
	if set("controlnet-dir") || out.ControlNetDir == "" {
		out.ControlNetDir = flags.ControlNetDir
	}
	if set("text-encoder-dir") || out.TextEncoderDir == "" {
		out.TextEncoderDir = flags.TextEncoderDir
	}
	if set("embeddings-dir") || out.EmbeddingsDir == "" {
		out.EmbeddingsDir = flags.EmbeddingsDir
	}
	if set("upscaler-dir") || out.UpscalerDir == "" {
		out.UpscalerDir = flags.UpscalerDir
	}
	if set("hypernetwork-dir") || out.HypernetworkDir == "" {
		out.HypernetworkDir = flags.HypernetworkDir
	}
	if set("threads") || out.Threads == 0 {
		out.Threads = flags.Threads
	}
	if set("offload-to-cpu") {
		out.OffloadToCPU = flags.OffloadToCPU
	}
	if set("vae-on-cpu") {
		out.VAEOnCPU = flags.VAEOnCPU
	}
	if set("clip-on-cpu") {
		out.ClipOnCPU = flags.ClipOnCPU
	}
	if set("control-net-cpu") {
		out.ControlNetCPU = flags.ControlNetCPU
	}
	if set("diffusion-fa") {
		out.DiffusionFA = flags.DiffusionFA
	}
	return out
}

func run(cfg config.Config, corsOrigins string, maxBodyMB int64) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cat := catalog.New(map[types.Category]string{
		types.CategoryCheckpoint:   cfg.CheckpointDir,
		types.CategoryVAE:          cfg.VAEDir,
		types.CategoryLoRA:         cfg.LoRADir,
		types.CategoryControlNet:   cfg.ControlNetDir,
		types.CategoryTextEncoder:  cfg.TextEncoderDir,
		types.CategoryEmbedding:    cfg.EmbeddingsDir,
		types.CategoryUpscaler:     cfg.UpscalerDir,
		types.CategoryHypernetwork: cfg.HypernetworkDir,
	}, log)
	cat.Refresh()

	opts, err := options.Load(cfg.OptionsFile, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to load options")
		return err
	}

	tracker := tasks.NewTracker()
	mgr := manager.New(manager.Config{
		Engine:  engine.NewNative(cfg.Threads),
		Catalog: cat,
		Options: opts,
		Tasks:   tracker,
		Placement: manager.Placement{
			Threads:         cfg.Threads,
			OffloadToCPU:    cfg.OffloadToCPU,
			VAEOnCPU:        cfg.VAEOnCPU,
			ClipOnCPU:       cfg.ClipOnCPU,
			ControlNetOnCPU: cfg.ControlNetCPU,
			FlashAttention:  cfg.DiffusionFA,
		},
		Logger: log,
	})
	ups := filters.New(engine.NewNativeUpscaler(), cat, log)

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(maxBodyMB << 20)
	if origins := splitCSV(corsOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type"})
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(httpapi.Deps{
		Manager: mgr,
		Filters: ups,
		Catalog: cat,
		Options: opts,
		Tasks:   tracker,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("ckpt_dir", cfg.CheckpointDir).Msg("diffusiond listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
		return err
	case <-stop:
	}

	// cancel the base context first so an in-flight generation stops at its
	// next step checkpoint instead of pinning the shutdown
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.Close(); err != nil {
		log.Error().Err(err).Msg("context release error")
	}
	if err := ups.Close(); err != nil {
		log.Error().Err(err).Msg("upscaler release error")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
