// Package audiomix decodes the audio formats the generation providers return,
// joins the intro asset with synthesized speech and encodes the result as a
// 16-bit mono WAV.
package audiomix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// MimeWAV is the content type of every assembled bulletin track.
const MimeWAV = "audio/wav"

var (
	ErrEmpty       = errors.New("audiomix: no audio data")
	ErrUnsupported = errors.New("audiomix: unsupported audio format")
)

// PCM is mono signed 16-bit audio.
type PCM struct {
	Samples    []int
	SampleRate int
}

// Duration returns the playing time of p.
func (p *PCM) Duration() time.Duration {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// Decode reads data as MP3, WAV or raw audio/L16 PCM. mimeType may be empty,
// in which case the container is sniffed from the first bytes.
func Decode(data []byte, mimeType string) (*PCM, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	base := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch {
	case strings.HasPrefix(base, "audio/l"):
		return decodeL16(data, mimeType)
	case base == "audio/mpeg" || base == "audio/mp3":
		return decodeMP3(data)
	case base == "audio/wav" || base == "audio/x-wav" || base == "audio/wave":
		return decodeWAV(data)
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return decodeWAV(data)
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return decodeMP3(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, mimeType)
}

func decodeMP3(data []byte) (*PCM, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3 decoder: %w", err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}
	log.Debug().Int("sample_rate", d.SampleRate()).Int64("byte_size", d.Length()).Msg("Decoded mp3")

	// go-mp3 always yields interleaved 16-bit little-endian stereo.
	frames := len(raw) / 4
	samples := make([]int, frames)
	for i := 0; i < frames; i++ {
		l := int(int16(binary.LittleEndian.Uint16(raw[i*4:])))
		r := int(int16(binary.LittleEndian.Uint16(raw[i*4+2:])))
		samples[i] = (l + r) / 2
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	return &PCM{Samples: samples, SampleRate: d.SampleRate()}, nil
}

func decodeWAV(data []byte) (*PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav file", ErrUnsupported)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode: %w", err)
	}
	channels := int(d.NumChans)
	if channels <= 0 {
		channels = 1
	}
	shift := int(d.BitDepth) - 16

	frames := len(buf.Data) / channels
	samples := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			v := buf.Data[i*channels+c]
			if d.BitDepth == 8 {
				v -= 128
			}
			sum += v
		}
		v := sum / channels
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		samples[i] = v
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	return &PCM{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

type pcmParams struct {
	bitsPerSample int
	rate          int
	channels      int
}

var linearMimeRe = regexp.MustCompile(`(?i)audio/L(\d+)`)

// parsePCMMimeType reads "audio/L16;rate=24000;channels=1" style types.
func parsePCMMimeType(mimeType string) pcmParams {
	params := pcmParams{bitsPerSample: 16, rate: 24000, channels: 1}
	for _, part := range strings.Split(mimeType, ";") {
		part = strings.TrimSpace(part)
		key, val, ok := strings.Cut(part, "=")
		if ok {
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil || n <= 0 {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "rate":
				params.rate = n
			case "channels":
				params.channels = n
			}
			continue
		}
		if m := linearMimeRe.FindStringSubmatch(part); len(m) > 1 {
			if bits, err := strconv.Atoi(m[1]); err == nil {
				params.bitsPerSample = bits
			}
		}
	}
	return params
}

// decodeL16 reads little-endian signed PCM as the TTS endpoints stream it.
func decodeL16(data []byte, mimeType string) (*PCM, error) {
	p := parsePCMMimeType(mimeType)
	if p.bitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d-bit pcm", ErrUnsupported, p.bitsPerSample)
	}
	frameSize := 2 * p.channels
	frames := len(data) / frameSize
	samples := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < p.channels; c++ {
			off := i*frameSize + c*2
			sum += int(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		samples[i] = sum / p.channels
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	return &PCM{Samples: samples, SampleRate: p.rate}, nil
}

// Resample converts p to rate with linear interpolation.
func Resample(p *PCM, rate int) *PCM {
	if p == nil || rate <= 0 || p.SampleRate == rate || len(p.Samples) == 0 {
		return p
	}
	n := int(int64(len(p.Samples)) * int64(rate) / int64(p.SampleRate))
	out := make([]int, n)
	ratio := float64(p.SampleRate) / float64(rate)
	last := len(p.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = p.Samples[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = int(math.Round(float64(p.Samples[j])*(1-frac) + float64(p.Samples[j+1])*frac))
	}
	return &PCM{Samples: out, SampleRate: rate}
}

// Concat joins parts in order at rate. Nil parts are skipped.
func Concat(rate int, parts ...*PCM) *PCM {
	out := &PCM{SampleRate: rate}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Samples = append(out.Samples, Resample(p, rate).Samples...)
	}
	return out
}

// EncodeWAV writes p as a 16-bit mono PCM WAV.
func EncodeWAV(p *PCM) ([]byte, error) {
	if p == nil || len(p.Samples) == 0 {
		return nil, ErrEmpty
	}

	// The encoder patches its header on Close, so it needs a seekable file.
	fs := afero.NewMemMapFs()
	const name = "bulletin.wav"
	f, err := fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create in-memory wav: %w", err)
	}

	enc := wav.NewEncoder(f, p.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           p.Samples,
		Format:         &audio.Format{SampleRate: p.SampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("finish wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close in-memory wav: %w", err)
	}

	out, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("read in-memory wav: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("wav output is empty when input was not")
	}
	return out, nil
}

// Assemble decodes intro and speech, joins them at the speech sample rate and
// returns the WAV bytes with their duration. intro may be empty.
func Assemble(intro []byte, introMime string, speech []byte, speechMime string) ([]byte, time.Duration, error) {
	sp, err := Decode(speech, speechMime)
	if err != nil {
		return nil, 0, fmt.Errorf("decode speech: %w", err)
	}

	var in *PCM
	if len(intro) > 0 {
		in, err = Decode(intro, introMime)
		if err != nil {
			return nil, 0, fmt.Errorf("decode intro: %w", err)
		}
	}

	mixed := Concat(sp.SampleRate, in, sp)
	out, err := EncodeWAV(mixed)
	if err != nil {
		return nil, 0, err
	}
	log.Debug().
		Int("sample_rate", mixed.SampleRate).
		Dur("duration", mixed.Duration()).
		Bool("with_intro", in != nil).
		Msg("Assembled bulletin audio")
	return out, mixed.Duration(), nil
}

// Duration decodes data and returns its playing time.
func Duration(data []byte, mimeType string) (time.Duration, error) {
	p, err := Decode(data, mimeType)
	if err != nil {
		return 0, err
	}
	return p.Duration(), nil
}
