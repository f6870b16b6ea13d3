package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/agents"
	"github.com/snappy-loop/bulletin/internal/config"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/services"
	"github.com/snappy-loop/bulletin/internal/storage"
	"github.com/snappy-loop/bulletin/internal/storyboard"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		text   string
		images int
		from     string
		out      string
		realTime bool
	)
	cmd := &cobra.Command{
		Use:   "storyboard",
		Short: "Render a bulletin's slideshow frames, narration and timeline to a directory",
		Long: "Generates a bulletin from --text (or reads one saved from POST /api/bulletins with --from), " +
			"replays it on the headless player and writes one PNG per image transition.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				level = zerolog.InfoLevel
			}
			zerolog.SetGlobalLevel(level)

			fs := afero.NewOsFs()
			var b *models.Bulletin
			switch {
			case from != "":
				b, err = readBulletin(fs, from)
			case text != "":
				b, err = generate(cmd.Context(), cfg, &models.BulletinRequest{Text: text, Images: images})
			default:
				err = errors.New("one of --text or --from is required")
			}
			if err != nil {
				return err
			}

			render := storyboard.Render
			if realTime {
				render = storyboard.RenderRealTime
			}
			m, err := render(cmd.Context(), b, fs, out)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d frames, %dms, written to %s\n", m.BulletinID, len(m.Frames), m.DurationMs, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "bulletin text to generate")
	cmd.Flags().IntVar(&images, "images", 0, "number of images (0 = configured default)")
	cmd.Flags().StringVar(&from, "from", "", "render a saved bulletin JSON file instead of generating one")
	cmd.Flags().StringVarP(&out, "out", "o", "storyboard", "output directory")
	cmd.Flags().BoolVar(&realTime, "real-time", false, "play against the wall clock instead of simulated time")
	return cmd
}

func generate(ctx context.Context, cfg *config.Config, req *models.BulletinRequest) (*models.Bulletin, error) {
	provider, err := agents.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}
	defer provider.Close()

	svc := services.NewBulletinService(provider.Audio, provider.Image, storage.LoadIntro(ctx, cfg), cfg)
	return svc.GenerateBulletin(ctx, req, func(p models.Progress) {
		log.Info().
			Str("part", p.Part).
			Int("done", p.Done).
			Int("total", p.Total).
			Msg("Bulletin part ready")
	})
}

func readBulletin(fs afero.Fs, name string) (*models.Bulletin, error) {
	raw, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("read bulletin: %w", err)
	}
	var b models.Bulletin
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bulletin %s: %w", name, err)
	}
	return &b, nil
}
