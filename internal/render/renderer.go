package render

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/canonhash"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

// Pixel geometry: A4 at 2x 72dpi.
const (
	pagePxWidth  = 1190
	pagePxHeight = 1684

	marginPx     = 110
	bodyLinePx   = 34
	headingGapPx = 18

	jpegQuality = 90
)

// DefaultRenderTimeout is the hard wall-clock bound on one render.
const DefaultRenderTimeout = 20 * time.Second

// Document is the ephemeral render result. Hash covers Bytes exactly as
// produced (including the embedded creation date); ContentHash covers the
// canonical content and is stable across re-renders.
type Document struct {
	Bytes       []byte
	Hash        string
	ContentHash string
	SizeBytes   int
	PageCount   int
	GeneratedAt time.Time
}

type Renderer struct {
	log     *logger.Logger
	body    font.Face
	heading font.Face
	title   font.Face
	timeout time.Duration
}

func NewRenderer(log *logger.Logger) (*Renderer, error) {
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}
	face := func(size float64) font.Face {
		return truetype.NewFace(parsed, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
	}
	return &Renderer{
		log:     log.With("service", "Renderer"),
		body:    face(24),
		heading: face(28),
		title:   face(34),
		timeout: DefaultRenderTimeout,
	}, nil
}

// WithTimeout overrides the render deadline, mainly for tests.
func (r *Renderer) WithTimeout(d time.Duration) *Renderer {
	clone := *r
	clone.timeout = d
	return &clone
}

// Render produces the final document bytes for a contract snapshot. It is
// retryable: there are no persistent side effects on any exit path.
func (r *Renderer) Render(ctx context.Context, in ContractInput) (*Document, error) {
	content := BuildContent(in)
	contentHash, err := ContentHash(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRenderFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc *Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%w: renderer panic: %v", types.ErrRenderFailure, p)
			}
		}()

		pages, err := r.drawPages(gctx, content)
		if err != nil {
			return err
		}
		generatedAt := time.Now().UTC()
		raw := writePDF(pages, pagePxWidth, pagePxHeight, generatedAt)
		doc = &Document{
			Bytes:       raw,
			Hash:        canonhash.HashBytes(raw),
			ContentHash: contentHash,
			SizeBytes:   len(raw),
			PageCount:   len(pages),
			GeneratedAt: generatedAt,
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrRenderTimeout, ctx.Err())
		}
		return nil, err
	}
	return doc, nil
}

type drawOp struct {
	text     string
	face     font.Face
	centered bool
	gapAfter int
	imagePNG []byte
}

func (r *Renderer) drawPages(ctx context.Context, content Content) ([][]byte, error) {
	ops := r.layout(content)

	var pages [][]byte
	usable := pagePxHeight - 2*marginPx

	var dc *gg.Context
	y := 0
	flush := func() error {
		if dc == nil {
			return nil
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("%w: encode page: %v", types.ErrRenderFailure, err)
		}
		pages = append(pages, buf.Bytes())
		dc = nil
		return nil
	}
	newPage := func() {
		dc = gg.NewContext(pagePxWidth, pagePxHeight)
		dc.SetRGB(1, 1, 1)
		dc.Clear()
		dc.SetRGB(0, 0, 0)
		y = marginPx
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		height := bodyLinePx + op.gapAfter
		var img *gg.Context
		if op.imagePNG != nil {
			decoded, err := png.Decode(bytes.NewReader(op.imagePNG))
			if err == nil {
				img = gg.NewContextForImage(decoded)
				height = decoded.Bounds().Dy() + op.gapAfter
				if height > usable/2 {
					height = usable / 2
				}
			}
		}

		if dc == nil || y+height > pagePxHeight-marginPx {
			if err := flush(); err != nil {
				return nil, err
			}
			newPage()
		}

		switch {
		case img != nil:
			dc.DrawImage(img.Image(), marginPx, y)
			y += height
		case op.text == "":
			y += height
		default:
			dc.SetFontFace(op.face)
			if op.centered {
				w, _ := dc.MeasureString(op.text)
				dc.DrawString(op.text, (pagePxWidth-w)/2, float64(y+bodyLinePx))
			} else {
				dc.DrawString(op.text, marginPx, float64(y+bodyLinePx))
			}
			y += height
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: empty document", types.ErrRenderFailure)
	}
	return pages, nil
}

func (r *Renderer) layout(content Content) []drawOp {
	var ops []drawOp

	for i, line := range content.Header {
		face := r.body
		if i == 5 || i == 6 {
			face = r.title
		}
		ops = append(ops, drawOp{text: line, face: face, centered: true})
	}
	ops = append(ops, drawOp{gapAfter: headingGapPx * 2})

	for _, article := range content.Articles {
		ops = append(ops, drawOp{
			text:     fmt.Sprintf("Dieu %d. %s", article.Number, article.Heading),
			face:     r.heading,
			gapAfter: headingGapPx,
		})
		for _, line := range article.Lines {
			for _, wrapped := range wrapLine(line, 82) {
				ops = append(ops, drawOp{text: wrapped, face: r.body})
			}
		}
		ops = append(ops, drawOp{gapAfter: headingGapPx})
	}

	ops = append(ops, drawOp{text: "CHU KY CAC BEN / SIGNATURES", face: r.heading, gapAfter: headingGapPx})
	for _, slot := range content.Signatures {
		ops = append(ops, drawOp{
			text: fmt.Sprintf("%s: %s", roleLabel(slot.Role), slot.SignerName),
			face: r.body,
		})
		if len(slot.ImagePNG) > 0 {
			ops = append(ops, drawOp{imagePNG: slot.ImagePNG, gapAfter: headingGapPx})
		}
		if !slot.SignedAt.IsZero() {
			ops = append(ops, drawOp{
				text: fmt.Sprintf("Ky ngay / Signed on: %s", slot.SignedAt.UTC().Format("02/01/2006 15:04:05 MST")),
				face: r.body,
			})
		}
		if slot.ImageHash != "" {
			ops = append(ops, drawOp{text: fmt.Sprintf("SHA-256: %s", slot.ImageHash), face: r.body, gapAfter: headingGapPx})
		}
	}

	ops = append(ops, drawOp{gapAfter: headingGapPx * 2})
	for _, line := range content.Footer {
		ops = append(ops, drawOp{text: line, face: r.body, centered: true})
	}
	return ops
}

func roleLabel(role string) string {
	switch role {
	case string(types.RoleLandlord):
		return "Ben cho thue / Landlord"
	case string(types.RoleTenant):
		return "Ben thue / Tenant"
	default:
		return role
	}
}

func wrapLine(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var out []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && s[cut] != ' ' {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		out = append(out, s[:cut])
		s = s[cut:]
		for len(s) > 0 && s[0] == ' ' {
			s = s[1:]
		}
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
