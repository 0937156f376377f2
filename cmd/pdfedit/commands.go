package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"pdf-editor/internal/config"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/parser"
	"pdf-editor/internal/pdf"
	"pdf-editor/internal/render"
	"pdf-editor/internal/session"
	"pdf-editor/internal/types"
)

// backends builds the document collaborators. Tests swap in fakes.
type backends struct {
	rasterizer func(name string) (render.Rasterizer, func() error, error)
	mutator    func() session.Mutator
	stdout     io.Writer
}

func defaultBackends() backends {
	return backends{
		rasterizer: openRasterizer,
		mutator:    func() session.Mutator { return pdf.NewMutator(config.DefaultFontName) },
		stdout:     os.Stdout,
	}
}

// openRasterizer returns the named backend and its cleanup function.
func openRasterizer(name string) (render.Rasterizer, func() error, error) {
	switch pdf.BackendName(strings.ToLower(name)) {
	case pdf.BackendPdfium:
		r, err := pdf.NewPdfiumRasterizer()
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case pdf.BackendPoppler:
		r, err := pdf.NewPopplerRasterizer()
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil
	default:
		return nil, nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown rasterizer", name, nil)
	}
}

// inputFile returns the single positional argument.
func inputFile(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected one input file, got %d arguments", cmd.Args().Len())
	}
	return cmd.Args().First(), nil
}

func (b backends) info(ctx context.Context, cmd *cli.Command) error {
	path, err := inputFile(cmd)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	r, closeFn, err := b.rasterizer(cmd.String("rasterizer"))
	if err != nil {
		return err
	}
	defer closeFn()

	h, err := r.Load(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	defer r.Dispose(h)

	fmt.Fprintf(b.stdout, "File:  %s\n", filepath.Base(path))
	fmt.Fprintf(b.stdout, "Size:  %d bytes\n", len(data))
	fmt.Fprintf(b.stdout, "Pages: %d\n", h.PageCount())
	for page := 1; page <= h.PageCount(); page++ {
		size, err := r.PageSize(ctx, h, page)
		if err != nil {
			return fmt.Errorf("failed to read size of page %d: %w", page, err)
		}
		fmt.Fprintf(b.stdout, "  %4d  %.1f x %.1f pt\n", page, size.Width, size.Height)
	}
	return nil
}

func (b backends) render(ctx context.Context, cmd *cli.Command) error {
	path, err := inputFile(cmd)
	if err != nil {
		return err
	}
	dpi := cmd.Int("dpi")
	if dpi < 1 || dpi > 1200 {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "dpi must be between 1 and 1200", fmt.Sprint(dpi), nil)
	}
	dir := cmd.String("dir")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	r, closeFn, err := b.rasterizer(cmd.String("rasterizer"))
	if err != nil {
		return err
	}
	defer closeFn()

	h, err := r.Load(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	defer r.Dispose(h)

	pages, err := selectPages(cmd.String("pages"), h.PageCount())
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	scale := float64(dpi) / 72
	for _, page := range pages {
		img, err := r.RenderPage(ctx, h, page, scale)
		if err != nil {
			return fmt.Errorf("failed to render page %d: %w", page, err)
		}
		out := filepath.Join(dir, fmt.Sprintf("%s-%03d.png", base, page))
		if err := writePNG(out, img); err != nil {
			return err
		}
		logger.Debug("page rendered", logger.Page(page), logger.String("output", out))
		fmt.Fprintln(b.stdout, out)
	}
	return nil
}

func selectPages(spec string, count int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		pages := make([]int, count)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}
	return parser.ParseRangesStrict(spec, count)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// edit loads path into a headless session, applies fn and saves the result
// to the output flag.
func (b backends) edit(ctx context.Context, cmd *cli.Command, path string, fn func(s *session.Session) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	r, closeFn, err := b.rasterizer(cmd.String("rasterizer"))
	if err != nil {
		return err
	}
	defer closeFn()

	s, err := session.New(session.Options{
		Rasterizer:   r,
		Mutator:      b.mutator(),
		HistoryLimit: 1,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Load(ctx, filepath.Base(path), data); err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}

	out := cmd.String("output")
	backup, err := s.Save(out, int(cmd.Int("keep-backups")))
	if err != nil {
		return err
	}
	if backup != "" {
		fmt.Fprintf(b.stdout, "Backed up previous %s to %s\n", out, backup)
	}
	fmt.Fprintf(b.stdout, "Wrote %s (%d pages)\n", out, s.PageCount())
	return nil
}

func (b backends) deletePages(ctx context.Context, cmd *cli.Command) error {
	path, err := inputFile(cmd)
	if err != nil {
		return err
	}
	return b.edit(ctx, cmd, path, func(s *session.Session) error {
		return s.DeletePageRanges(ctx, cmd.String("pages"))
	})
}

func (b backends) rotate(ctx context.Context, cmd *cli.Command) error {
	path, err := inputFile(cmd)
	if err != nil {
		return err
	}
	return b.edit(ctx, cmd, path, func(s *session.Session) error {
		return s.RotatePage(ctx, int(cmd.Int("page")), int(cmd.Int("degrees")))
	})
}

func (b backends) reorder(ctx context.Context, cmd *cli.Command) error {
	path, err := inputFile(cmd)
	if err != nil {
		return err
	}
	return b.edit(ctx, cmd, path, func(s *session.Session) error {
		return s.ReorderPagesSpec(ctx, cmd.String("order"))
	})
}

func (b backends) insertBlank(ctx context.Context, cmd *cli.Command) error {
	path, err := inputFile(cmd)
	if err != nil {
		return err
	}
	return b.edit(ctx, cmd, path, func(s *session.Session) error {
		return s.InsertBlankPage(ctx, int(cmd.Int("after")))
	})
}

func (b backends) merge(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) < 2 {
		return fmt.Errorf("merge needs at least two input files, got %d", len(paths))
	}
	rest := make([][]byte, 0, len(paths)-1)
	for _, p := range paths[1:] {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		rest = append(rest, data)
	}
	return b.edit(ctx, cmd, paths[0], func(s *session.Session) error {
		return s.Merge(ctx, rest...)
	})
}
