// Command pdfedit applies page operations to PDF files without opening the
// editor window.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"pdf-editor/internal/config"
	"pdf-editor/internal/logger"
)

func main() {
	if err := newCommand(defaultBackends()).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pdfedit: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(b backends) *cli.Command {
	// every command gets its own flag values
	outputFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    "Output PDF file path",
			Required: true,
		}
	}
	keepFlag := func() cli.Flag {
		return &cli.IntFlag{
			Name:  "keep-backups",
			Usage: "Backups kept when the output file already exists",
			Value: config.DefaultBackupKeepCount,
		}
	}

	return &cli.Command{
		Name:  "pdfedit",
		Usage: "Inspect, render and rearrange PDF files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "rasterizer",
				Usage: "Page renderer: pdfium or poppler",
				Value: config.DefaultRasterizer,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "warn",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg := logger.DefaultConfig()
			cfg.LogFilePath = ""
			cfg.EnableConsole = true
			cfg.Level = logger.ParseLevel(cmd.String("log-level"))
			if err := logger.Init(cfg); err != nil {
				return ctx, fmt.Errorf("failed to initialise logger: %w", err)
			}
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			return logger.Close()
		},
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "Print page count and page sizes",
				ArgsUsage: "<file.pdf>",
				Action:    b.info,
			},
			{
				Name:      "render",
				Usage:     "Render pages to PNG files",
				ArgsUsage: "<file.pdf>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "pages",
						Aliases: []string{"p"},
						Usage:   "Pages to render, e.g. 1,3-5 (default: all)",
					},
					&cli.IntFlag{
						Name:  "dpi",
						Usage: "Output resolution",
						Value: config.DefaultRenderDPI,
					},
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Output directory",
						Value:   ".",
					},
				},
				Action: b.render,
			},
			{
				Name:      "delete",
				Usage:     "Delete pages",
				ArgsUsage: "<file.pdf>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "pages",
						Aliases:  []string{"p"},
						Usage:    "Pages to delete, e.g. 2,4-6",
						Required: true,
					},
					outputFlag(), keepFlag(),
				},
				Action: b.deletePages,
			},
			{
				Name:      "rotate",
				Usage:     "Rotate one page clockwise",
				ArgsUsage: "<file.pdf>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "Page to rotate", Required: true},
					&cli.IntFlag{Name: "degrees", Usage: "Multiple of 90", Value: 90},
					outputFlag(), keepFlag(),
				},
				Action: b.rotate,
			},
			{
				Name:      "reorder",
				Usage:     "Put pages in a new order",
				ArgsUsage: "<file.pdf>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "order",
						Usage:    "Every page exactly once, e.g. 3,1-2",
						Required: true,
					},
					outputFlag(), keepFlag(),
				},
				Action: b.reorder,
			},
			{
				Name:      "insert-blank",
				Usage:     "Insert an empty page",
				ArgsUsage: "<file.pdf>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "after", Usage: "Insert after this page, 0 for the front"},
					outputFlag(), keepFlag(),
				},
				Action: b.insertBlank,
			},
			{
				Name:      "merge",
				Usage:     "Concatenate PDF files",
				ArgsUsage: "<first.pdf> <second.pdf>...",
				Flags:     []cli.Flag{outputFlag(), keepFlag()},
				Action:    b.merge,
			},
		},
	}
}
