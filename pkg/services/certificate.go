package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/vemana-jayanti/registration-portal/pkg/metrics"
	"github.com/vemana-jayanti/registration-portal/pkg/models"
	"github.com/vemana-jayanti/registration-portal/pkg/utils"
)

func init() {
	api.DisableConfigDir()
}

// Certificate canvas, in CSS pixels before scaling.
const (
	certificateWidth  = 1200
	certificateHeight = 850
	certificateScale  = 2
)

var (
	colorBackground = color.RGBA{0xff, 0xfb, 0xf5, 0xff}
	colorBorder     = color.RGBA{0xd9, 0x77, 0x06, 0xff}
	colorInnerLine  = color.RGBA{0xf5, 0x9e, 0x0b, 0xff}
	colorTitle      = color.RGBA{0x92, 0x40, 0x0e, 0xff}
	colorBody       = color.RGBA{0x37, 0x41, 0x51, 0xff}
	colorName       = color.RGBA{0xc2, 0x41, 0x0c, 0xff}
	colorMuted      = color.RGBA{0x6b, 0x72, 0x80, 0xff}
)

// Default inscription.
const (
	DefaultQuote   = "Knowledge is the supreme wealth among all treasures"
	DefaultQuoteBy = "Yogi Vemana"
)

// Certificate output formats.
const (
	FormatPNG = "png"
	FormatPDF = "pdf"
)

var ErrUnknownFormat = errors.New("unknown certificate format")

// CertificateConfig holds the event details printed on every certificate.
type CertificateConfig struct {
	EventName string
	Prefix    string
	Year      int
	Quote     string
	QuoteBy   string
}

// CertificateID formats the public identifier `<prefix>-<id>-<year>`.
func CertificateID(prefix string, id int64, year int) string {
	return prefix + "-" + strconv.FormatInt(id, 10) + "-" + strconv.Itoa(year)
}

// Certificate is the laid-out content of one participant's certificate.
type Certificate struct {
	Title         string
	Name          string
	EventName     string
	Quote         string
	QuoteBy       string
	Date          string
	CertificateID string
}

// NewCertificate lays out a certificate for p as of now.
func NewCertificate(p models.Participant, now time.Time, cfg CertificateConfig) Certificate {
	return Certificate{
		Title:         "Certificate of Participation",
		Name:          p.Name,
		EventName:     cfg.EventName,
		Quote:         cfg.Quote,
		QuoteBy:       cfg.QuoteBy,
		Date:          now.Format("2 January 2006"),
		CertificateID: CertificateID(cfg.Prefix, p.ID, cfg.Year),
	}
}

// FileName is `<Sanitized_Name>_Certificate.<ext>`.
func (c Certificate) FileName(ext string) string {
	return utils.SanitizeName(c.Name) + "_Certificate." + ext
}

type fontSet struct {
	regular, bold, italic *opentype.Font
}

// certificateFonts parses the embedded Go fonts once. Parsed fonts are safe
// for concurrent use; faces built from them are not.
var certificateFonts = sync.OnceValues(func() (*fontSet, error) {
	var fonts fontSet
	for _, fc := range []struct {
		dst **opentype.Font
		ttf []byte
	}{
		{&fonts.regular, goregular.TTF},
		{&fonts.bold, gobold.TTF},
		{&fonts.italic, goitalic.TTF},
	} {
		f, err := opentype.Parse(fc.ttf)
		if err != nil {
			return nil, err
		}
		*fc.dst = f
	}
	return &fonts, nil
})

type faces struct {
	title, name, event, body, quote, small font.Face
}

// loadFaces builds one render's faces. Callers must Close them.
func loadFaces(scale float64) (*faces, error) {
	fonts, err := certificateFonts()
	if err != nil {
		return nil, err
	}

	var fs faces
	for _, fc := range []struct {
		dst  *font.Face
		font *opentype.Font
		size float64
	}{
		{&fs.title, fonts.bold, 56},
		{&fs.name, fonts.bold, 60},
		{&fs.event, fonts.bold, 36},
		{&fs.body, fonts.regular, 24},
		{&fs.quote, fonts.italic, 22},
		{&fs.small, fonts.regular, 16},
	} {
		f, err := opentype.NewFace(fc.font, &opentype.FaceOptions{Size: fc.size * scale, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			_ = fs.Close()
			return nil, err
		}
		*fc.dst = f
	}
	return &fs, nil
}

func (fs *faces) Close() error {
	var errs []error
	for _, f := range []font.Face{fs.title, fs.name, fs.event, fs.body, fs.quote, fs.small} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}

// Rasterize draws the certificate onto an RGBA canvas.
func (c Certificate) Rasterize() (*image.RGBA, error) {
	const s = certificateScale
	fs, err := loadFaces(s)
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	defer func() { _ = fs.Close() }()

	img := image.NewRGBA(image.Rect(0, 0, certificateWidth*s, certificateHeight*s))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	frame(img, 20*s, 12*s, colorBorder)
	frame(img, 44*s, 2*s, colorInnerLine)

	center := certificateWidth * s / 2
	centered(img, fs.title, colorTitle, c.Title, center, 170*s)
	centered(img, fs.body, colorBody, "This is to certify that", center, 270*s)
	centered(img, fs.name, colorName, c.Name, center, 350*s)
	centered(img, fs.body, colorBody, "has successfully participated in", center, 420*s)
	centered(img, fs.event, colorTitle, c.EventName, center, 480*s)
	if c.Quote != "" {
		centered(img, fs.quote, colorMuted, "\""+c.Quote+"\"", center, 560*s)
		if c.QuoteBy != "" {
			centered(img, fs.small, colorMuted, "- "+c.QuoteBy, center, 595*s)
		}
	}

	text(img, fs.small, colorMuted, "Date", 120*s, 680*s)
	text(img, fs.body, colorBody, c.Date, 120*s, 715*s)
	line(img, 840*s, 1080*s, 700*s, 2*s, colorBody)
	centered(img, fs.small, colorMuted, "Authorized Signature", 960*s, 730*s)

	id := "Certificate ID: " + c.CertificateID
	w := font.MeasureString(fs.small, id).Ceil()
	text(img, fs.small, colorMuted, id, (certificateWidth-80)*s-w, (certificateHeight-64)*s)

	return img, nil
}

// RenderPNG writes the rasterized certificate as PNG.
func (c Certificate) RenderPNG(w io.Writer) error {
	img, err := c.Rasterize()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// RenderPDF writes a single-page PDF holding the rasterized certificate.
func (c Certificate) RenderPDF(w io.Writer) error {
	var raster bytes.Buffer
	if err := c.RenderPNG(&raster); err != nil {
		return err
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: certificateWidth * 0.75, Height: certificateHeight * 0.75}
	imp.PageSize = ""
	imp.UserDim = true
	imp.Pos = types.Full
	imp.Scale = 1
	imp.InpUnit = types.POINTS

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, []io.Reader{&raster}, imp, conf); err != nil {
		return fmt.Errorf("wrap certificate in pdf: %w", err)
	}
	return nil
}

func centered(img draw.Image, face font.Face, col color.Color, s string, cx, y int) {
	w := font.MeasureString(face, s).Ceil()
	text(img, face, col, s, cx-w/2, y)
}

func text(img draw.Image, face font.Face, col color.Color, s string, x, y int) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func frame(img draw.Image, inset, thickness int, col color.Color) {
	b := img.Bounds()
	u := image.NewUniform(col)
	outer := image.Rect(b.Min.X+inset, b.Min.Y+inset, b.Max.X-inset, b.Max.Y-inset)
	for _, r := range []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+thickness),
		image.Rect(outer.Min.X, outer.Max.Y-thickness, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+thickness, outer.Max.Y),
		image.Rect(outer.Max.X-thickness, outer.Min.Y, outer.Max.X, outer.Max.Y),
	} {
		draw.Draw(img, r, u, image.Point{}, draw.Src)
	}
}

func line(img draw.Image, x0, x1, y, thickness int, col color.Color) {
	draw.Draw(img, image.Rect(x0, y, x1, y+thickness), image.NewUniform(col), image.Point{}, draw.Src)
}

// CertificateRenderer renders participant certificates locally, without the
// backend.
type CertificateRenderer struct {
	cfg CertificateConfig
	now func() time.Time
	log *zap.Logger
}

// NewCertificateRenderer creates a renderer printing cfg on every certificate.
func NewCertificateRenderer(cfg CertificateConfig, log *zap.Logger) *CertificateRenderer {
	if cfg.Quote == "" {
		cfg.Quote = DefaultQuote
		cfg.QuoteBy = DefaultQuoteBy
	}
	return &CertificateRenderer{
		cfg: cfg,
		now: time.Now,
		log: log.With(zap.String("service", "certificate")),
	}
}

// Render writes p's certificate to w in format and returns its file name.
func (r *CertificateRenderer) Render(w io.Writer, p models.Participant, format string) (string, error) {
	cert := NewCertificate(p, r.now(), r.cfg)

	var err error
	switch format {
	case FormatPNG, "":
		format = FormatPNG
		err = cert.RenderPNG(w)
	case FormatPDF:
		err = cert.RenderPDF(w)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		metrics.CertificateActions.WithLabelValues("render", "failed").Inc()
		r.log.Error("certificate render failed", zap.Int64("participant_id", p.ID), zap.Error(err))
		return "", fmt.Errorf("render certificate %d: %w", p.ID, err)
	}

	metrics.CertificateActions.WithLabelValues("render", "succeeded").Inc()
	r.log.Info("certificate rendered",
		zap.Int64("participant_id", p.ID),
		zap.String("certificate_id", cert.CertificateID),
		zap.String("format", format),
	)
	return cert.FileName(format), nil
}
