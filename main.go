package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"pdf-editor/internal/logger"
)

//go:embed all:frontend/dist
var assets embed.FS

// Command line flags
var (
	fileFlag     = flag.String("file", "", "PDF file to open on startup")
	logLevelFlag = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFileFlag  = flag.String("log-file", "pdf-editor.log", "Log file path")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("PDF Editor - view, annotate and rearrange PDF documents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pdf-editor [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --file <PATH>       PDF file to open on startup")
	fmt.Println("  --log-level <LVL>   debug, info, warn or error (default info)")
	fmt.Println("  --log-file <PATH>   log file path (default pdf-editor.log)")
	fmt.Println("  -h, --help          show this help")
	fmt.Println()
	fmt.Println("Batch operations without a window are available in the pdfedit command.")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	cfg := logger.DefaultConfig()
	cfg.LogFilePath = *logFileFlag
	cfg.Level = logger.ParseLevel(*logLevelFlag)
	if err := logger.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	app := NewApp()

	// Mark as running in Wails environment
	app.SetWailsRuntime(true)

	startupFunc := func(ctx context.Context) {
		app.startup(ctx)

		path := *fileFlag
		if path == "" {
			return
		}
		go func() {
			if _, err := app.OpenDocument(path); err != nil {
				logger.Error("failed to open document from command line", err, logger.String("path", path))
				runtime.EventsEmit(ctx, EventNotification, map[string]string{
					"level":   "error",
					"message": err.Error(),
				})
			}
		}()
	}

	err := wails.Run(&options.App{
		Title:  "PDF Editor",
		Width:  1280,
		Height: 860,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 38, G: 38, B: 42, A: 1},
		OnStartup:        startupFunc,
		OnShutdown:       app.shutdown,
		OnBeforeClose: func(ctx context.Context) (prevent bool) {
			if !app.IsBusy() {
				return false
			}
			result, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
				Type:          runtime.QuestionDialog,
				Title:         "Edit in progress",
				Message:       "A page operation is still running. Quit anyway?",
				Buttons:       []string{"Cancel", "Quit"},
				DefaultButton: "Cancel",
				CancelButton:  "Cancel",
			})
			if err != nil {
				return false
			}
			return result == "Cancel"
		},
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		logger.Error("application exited with error", err)
	}
}
