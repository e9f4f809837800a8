package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/changyy/captcha-ocr-devkit/pkg/captcha"
	"github.com/changyy/captcha-ocr-devkit/pkg/gateway"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/logger"
	"github.com/changyy/captcha-ocr-devkit/pkg/serving"
)

func NewAPICommand(root *RootCommand) *cobra.Command {
	var (
		listenAddr     string
		modelPath      string
		ocrName        string
		preprocessName string
	)

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve the OCR HTTP API",
		Long: `Start the HTTP API with a loaded model and an active handler pair.
The OCR handler is required; the preprocess handler is optional and
skipped when the identifier resolves to no discovered handler.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.Config()
			if listenAddr == "" {
				listenAddr = cfg.API.ListenAddr
			}
			if modelPath == "" {
				modelPath = cfg.Serving.ModelPath
			}
			if ocrName == "" {
				ocrName = cfg.Serving.OCRHandler
			}
			if preprocessName == "" {
				preprocessName = cfg.Serving.PreprocessHandler
			}

			ocr, err := root.Registry().CreateOCR(ocrName)
			if err != nil {
				PrintError(fmt.Errorf("ocr handler %q: %w", ocrName, err), root.OutputOptions())
				return err
			}

			servingCfg := serving.Config{
				ModelPath: modelPath,
				OCR:       ocr,
				Version:   cliVersion,
			}
			if preprocessName != "" {
				pre, err := root.Registry().CreatePreprocess(preprocessName)
				if err != nil {
					logger.Warn("preprocess handler unavailable, serving without preprocessing",
						"handler", preprocessName, "error", err)
				} else {
					servingCfg.Preprocess = pre
				}
			}

			pl := serving.New(servingCfg)
			if err := pl.Start(); err != nil {
				PrintError(fmt.Errorf("load model %s: %w", modelPath, err), root.OutputOptions())
				return err
			}

			generator := captcha.New(captcha.Options{
				Width:      cfg.Captcha.Width,
				Height:     cfg.Captcha.Height,
				Length:     cfg.Captcha.Length,
				Charset:    cfg.Captcha.Charset,
				NoiseLines: cfg.Captcha.NoiseLines,
				NoiseDots:  cfg.Captcha.NoiseDots,
			})

			runs := root.openRunStore()
			defer runs.Close()

			serverCfg := gateway.DefaultServerConfig()
			serverCfg.Addr = listenAddr
			serverCfg.EnableCORS = cfg.API.EnableCORS
			serverCfg.MaxUploadBytes = int64(cfg.Serving.MaxUploadMB) << 20
			serverCfg.WriteTimeout = cfg.Serving.RequestTimeoutD
			serverCfg.TLSCert = cfg.API.TLSCert
			serverCfg.TLSKey = cfg.API.TLSKey
			serverCfg.Logger = logger.Default()

			srv := gateway.NewServer(pl, root.Registry(), generator, runs, serverCfg)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			PrintSuccess(fmt.Sprintf("API listening on %s", listenAddr), root.OutputOptions())

			select {
			case err := <-errCh:
				if err != nil {
					PrintError(err, root.OutputOptions())
				}
				return err
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Stop(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default: config)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Model artifact path (default: config)")
	cmd.Flags().StringVar(&ocrName, "ocr-handler", "", "OCR handler identifier (default: config)")
	cmd.Flags().StringVar(&preprocessName, "preprocess-handler", "", "Preprocess handler identifier (default: config)")

	return cmd
}
