// Package audio implements the voice transcode pipeline: platform voice
// notes (Ogg/Opus) are decoded to mono 16 kHz WAV before speech
// recognition, with strict temp-file lifetimes on every path.
package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	popus "github.com/pekim/opus"
)

const (
	opusSampleRate   = 48000
	targetSampleRate = 16000
	wavBitDepth      = 16
)

// DecodeToWAV decodes the voice file at src into a mono 16 kHz WAV at a
// sibling path and returns that path. The source file is removed exactly
// once, as soon as decoding finishes — success or failure.
func DecodeToWAV(src string) (string, error) {
	defer os.Remove(src)

	pcm, err := decodeOpusFile(src)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filepath.Base(src), err)
	}
	if len(pcm) == 0 {
		return "", fmt.Errorf("decode %s: empty audio stream", filepath.Base(src))
	}

	dst := siblingPath(src, ".wav")
	if err := writeWAV(dst, pcm); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return dst, nil
}

// siblingPath swaps the extension of path for ext, keeping the directory.
func siblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// decodeOpusFile reads an Ogg/Opus file into mono 16 kHz samples.
func decodeOpusFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := popus.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// Read interleaved int16 PCM at 48 kHz in ~0.5 s chunks.
	var pcm48 []float32
	buf := make([]int16, opusSampleRate*ch/2)
	for {
		n, err := dec.Read(buf) // n = samples per channel
		if n > 0 {
			pcm48 = append(pcm48, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if ch > 1 {
		pcm48 = downmixInterleaved(pcm48, ch)
	}
	return resampleLinear(pcm48, opusSampleRate, targetSampleRate), nil
}

// writeWAV writes mono 16 kHz float samples as a 16-bit PCM WAV file.
func writeWAV(path string, pcm []float32) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(out, targetSampleRate, wavBitDepth, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: targetSampleRate},
		Data:           float32SliceToInt(pcm),
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		out.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func float32SliceToInt(data []float32) []int {
	out := make([]int, len(data))
	for i, v := range data {
		s := math.Round(float64(v) * 32767.0)
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i] = int(s)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}
