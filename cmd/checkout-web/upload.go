package main

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/config"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/flow"
	"github.com/bigkaa/printhome/checkout-web/internal/service"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

func newUploadCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Проверить и загрузить изображения с диска в upload-сессию",
		Example: `  # Новая сессия
  checkout-web upload a.jpg b.png

  # Дозагрузка в существующую сессию
  checkout-web upload --token 3f0c... c.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, client, err := loadClient()
			if err != nil {
				return err
			}

			files, err := localFiles(args)
			if err != nil {
				return err
			}

			res := validation.Validate(files, nil, cfg.UploadRules)
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", e.Message)
			}
			if !res.Valid {
				return errors.New(validation.ErrorSummary(res.Errors))
			}

			result := service.NewUploadOrchestrator(client, cfg.UploadRules, logger).Submit(cmd.Context(), res.Accepted, token)
			if !result.Success {
				return errors.New(result.Error)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token:  %s\n", result.Token)
			fmt.Fprintf(out, "images: %d\n", result.ImageCount)
			fmt.Fprintf(out, "next:   %s\n", flow.CustomerInfoURL(result.Token))
			return nil
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "токен существующей upload-сессии")
	return cmd
}

// loadClient загружает конфигурацию и создаёт клиент backend API.
func loadClient() (*config.Config, *slog.Logger, *backend.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("загрузка конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)
	client, err := backend.New(cfg.BackendURL, cfg.PublicAPIURL, cfg.BackendCACertPath, cfg.BackendTimeout, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("клиент backend API: %w", err)
	}
	return cfg, logger, client, nil
}

// localFiles описывает файлы на диске. MIME-тип определяется по расширению.
func localFiles(paths []string) ([]model.LocalFile, error) {
	files := make([]model.LocalFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s: это каталог", p)
		}
		files = append(files, model.LocalFile{
			Name:        filepath.Base(p),
			Size:        info.Size(),
			ContentType: mime.TypeByExtension(validation.Extension(p)),
			Source:      model.DiskSource(p),
		})
	}
	return files, nil
}
