package magick

import (
	"errors"
	"fmt"
	"os/exec"
	"pixrelay/internal/adapters/file"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const Name = "magick"

// Codec shells out to ImageMagick. Every decoded image gets its own workspace directory and each
// operation writes a new lossless intermediate, so the binary sees one step at a time.
type Codec struct {
	convert  []string
	identify []string
	// writable holds the lower case names of formats the binary can write, nil if unknown.
	writable map[string]bool
}

func New() (*Codec, error) {
	candidates := []struct {
		probe    []string
		convert  []string
		identify []string
	}{
		{[]string{"magick", "-version"}, []string{"magick"}, []string{"magick", "identify"}},
		{[]string{"convert", "-version"}, []string{"convert"}, []string{"identify"}},
	}

	for _, c := range candidates {
		_, err := exec.Command(c.probe[0], c.probe[1:]...).Output()
		if err != nil {
			log.Debug().Strs("commands", c.probe).Msg("binary not found")
			continue
		}

		log.Debug().Strs("commands", c.probe).Msg("binary found")

		codec := &Codec{convert: c.convert, identify: c.identify}
		list := append(append([]string{}, c.convert...), "-list", "format")
		if out, err := exec.Command(list[0], list[1:]...).Output(); err == nil {
			codec.writable = parseFormatList(string(out))
		} else {
			log.Warn().Err(err).Msg("could not list magick formats, assuming all are writable")
		}

		return codec, nil
	}

	return nil, fmt.Errorf("%w: magick binary not available", domain.ErrCodecUnavailable)
}

func (c *Codec) Name() string { return Name }

func (c *Codec) Encodes(format domain.Format) bool {
	if c.writable == nil {
		return true
	}

	return c.writable[string(format)]
}

// parseFormatList reads "-list format" output, e.g. "     AVIF  rw+   AV1 Image File Format".
func parseFormatList(out string) map[string]bool {
	writable := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[1]) != 3 {
			continue
		}
		if fields[1][1] == 'w' {
			writable[strings.ToLower(strings.TrimSuffix(fields[0], "*"))] = true
		}
	}

	return writable
}

func (c *Codec) Decode(data []byte) (port.Image, error) {
	ws, err := file.NewWorkspace()
	if err != nil {
		return nil, err
	}

	path, err := ws.Write("input"+mimetype.Detect(data).Extension(), data)
	if err != nil {
		ws.Close()
		return nil, err
	}

	img := &Image{codec: c, ws: ws, current: path}
	if err := img.identify(); err != nil {
		ws.Close()
		return nil, fmt.Errorf("magick decode: %w", err)
	}

	return img, nil
}

type Image struct {
	codec   *Codec
	ws      *file.Workspace
	current string
	step    int
	meta    domain.ImageMetadata
}

func (i *Image) Metadata() domain.ImageMetadata {
	return i.meta
}

// Trim maps threshold from the 0-255 channel scale onto magick's fuzz percentage.
func (i *Image) Trim(threshold float64) error {
	fuzz := strconv.FormatFloat(threshold/255*100, 'f', 2, 64) + "%"

	return i.apply("-fuzz", fuzz, "-trim", "+repage")
}

func (i *Image) Resize(width int, kernel domain.Kernel) error {
	if width <= 0 || width >= i.meta.Width {
		return nil
	}
	if kernel != domain.KernelLanczos3 {
		return fmt.Errorf("magick resize: unsupported kernel %s", kernel)
	}

	return i.apply("-filter", "Lanczos", "-resize", strconv.Itoa(width)+"x>")
}

func (i *Image) Encode(params domain.EncodeParams) ([]byte, error) {
	args, err := encodeArgs(params)
	if err != nil {
		return nil, err
	}

	out := i.ws.Path("output." + string(params.Format))
	cmd := append(append([]string{}, i.codec.convert...), i.current, "-strip")
	cmd = append(cmd, args...)
	cmd = append(cmd, string(params.Format)+":"+out)

	if err := run(cmd); err != nil {
		return nil, fmt.Errorf("magick encode: %w", err)
	}

	return i.ws.Read(out)
}

func (i *Image) Close() {
	i.ws.Close()
}

func encodeArgs(params domain.EncodeParams) ([]string, error) {
	quality := strconv.Itoa(params.Quality)

	switch params.Format {
	case domain.FormatAVIF:
		// heic:speed runs 0 (slowest) to 9, the inverse of effort
		speed := 9 - clamp(params.Effort, 0, 9)
		return []string{
			"-quality", quality,
			"-define", "heic:speed=" + strconv.Itoa(speed),
			"-define", "heic:chroma=" + string(params.Chroma),
		}, nil
	case domain.FormatWebP:
		return []string{
			"-quality", quality,
			"-define", "webp:method=" + strconv.Itoa(clamp(params.Effort, 0, 6)),
		}, nil
	case domain.FormatJPEG:
		return []string{"-quality", quality, "-sampling-factor", samplingFactor(params.Chroma)}, nil
	case domain.FormatPNG:
		return []string{"-define", "png:compression-level=9"}, nil
	default:
		return nil, fmt.Errorf("magick encode: %w: %s", domain.ErrUnsupportedFormat, params.Format)
	}
}

func samplingFactor(chroma domain.ChromaMode) string {
	if chroma == domain.ChromaSubsampled {
		return "4:2:0"
	}

	return "4:4:4"
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// apply runs one convert step into a fresh MIFF intermediate and refreshes the metadata.
func (i *Image) apply(ops ...string) error {
	i.step++
	next := i.ws.Path(fmt.Sprintf("step%d.miff", i.step))

	cmd := append(append([]string{}, i.codec.convert...), i.current)
	cmd = append(cmd, ops...)
	cmd = append(cmd, next)

	if err := run(cmd); err != nil {
		return err
	}

	i.current = next

	return i.identify()
}

func (i *Image) identify() error {
	cmd := append(append([]string{}, i.codec.identify...), "-format", "%w %h|", i.current)

	out, err := exec.Command(cmd[0], cmd[1:]...).Output()
	if err != nil {
		return fmt.Errorf("identify failed: %w", err)
	}

	meta, err := parseIdentify(string(out))
	if err != nil {
		return err
	}
	i.meta = meta

	return nil
}

// parseIdentify reads the "%w %h|" output, one entry per frame.
func parseIdentify(out string) (domain.ImageMetadata, error) {
	frames := strings.Split(strings.TrimSuffix(strings.TrimSpace(out), "|"), "|")
	if len(frames) == 0 || frames[0] == "" {
		return domain.ImageMetadata{}, errors.New("identify returned no frames")
	}

	var meta domain.ImageMetadata
	if _, err := fmt.Sscanf(frames[0], "%d %d", &meta.Width, &meta.Height); err != nil {
		return domain.ImageMetadata{}, fmt.Errorf("unexpected identify output %q: %w", out, err)
	}
	meta.Frames = len(frames)

	return meta, nil
}

func run(args []string) error {
	cmd := exec.Command(args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Bytes("magickOutput", out).Strs("args", args).Msg("magick command failed")
		return err
	}

	log.Debug().Strs("args", args).Msg("magick command finished")

	return nil
}
