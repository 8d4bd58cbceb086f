package signalsource

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/va-core/va/internal/vaerrors"
)

// DecodedFile is a fully decoded buffered-file source: mono samples
// at the file's native sample rate, ready for NewAudioFileSource once
// resampled to the engine's rate if they differ.
type DecodedFile struct {
	Samples    []float32
	SampleRate int
}

// LoadAudioFile decodes path by its extension (.wav or .flac) into
// mono float32 samples, downmixing multi-channel files by averaging
// channels. Resampling to the engine's rate is the caller's
// responsibility (spec's Non-goals exclude file-format readers beyond
// what's needed to exercise the audiofile contract, not the decode
// step itself, which this loader provides for exactly those two
// formats).
func LoadAudioFile(path string) (*DecodedFile, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return loadWAV(path)
	case ".flac":
		return loadFLAC(path)
	default:
		return nil, vaerrors.Newf("unsupported audio file extension %q", filepath.Ext(path)).
			Component("signalsource").
			Kind(vaerrors.KindInvalidParameter).
			Build()
	}
}

// loadWAV decodes a PCM WAV file via go-audio/wav, grounded on the
// teacher's own readAudioData (birdnet.go): wav.NewDecoder + ReadInfo
// + a pull loop over PCMBuffer, scaling by bit-depth divisor.
func loadWAV(path string) (*DecodedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, vaerrors.Newf("open wav file: %w", err).
			Component("signalsource").
			Kind(vaerrors.KindFileNotFound).
			Build()
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, vaerrors.Newf("%q is not a valid WAV file", path).
			Component("signalsource").
			Kind(vaerrors.KindInvalidParameter).
			Build()
	}

	var divisor float32
	switch decoder.BitDepth {
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, vaerrors.Newf("unsupported wav bit depth %d", decoder.BitDepth).
			Component("signalsource").
			Kind(vaerrors.KindInvalidParameter).
			Build()
	}

	numChannels := int(decoder.NumChans)
	if numChannels < 1 {
		numChannels = 1
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, 4096*numChannels),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: numChannels},
	}

	var mono []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, vaerrors.Newf("decode wav pcm: %w", err).
				Component("signalsource").
				Kind(vaerrors.KindInvalidParameter).
				Build()
		}
		if n == 0 {
			break
		}
		mono = append(mono, downmix(buf.Data[:n], numChannels, divisor)...)
	}

	return &DecodedFile{Samples: mono, SampleRate: int(decoder.SampleRate)}, nil
}

// loadFLAC decodes a FLAC file frame-by-frame via tphakala/flac,
// converting each subframe's integer samples to float32 by the
// stream's bits-per-sample and downmixing to mono the same way
// loadWAV does.
func loadFLAC(path string) (*DecodedFile, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, vaerrors.Newf("open flac file: %w", err).
			Component("signalsource").
			Kind(vaerrors.KindFileNotFound).
			Build()
	}
	defer stream.Close()

	bps := int(stream.Info.BitsPerSample)
	if bps == 0 {
		bps = 16
	}
	divisor := float32(int64(1) << uint(bps-1))
	numChannels := int(stream.Info.NChannels)
	if numChannels < 1 {
		numChannels = 1
	}

	var mono []float32
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			break // io.EOF or a trailing malformed frame: stop decoding
		}
		n := len(frame.Subframes[0].Samples)
		interleaved := make([]int, 0, n*numChannels)
		for i := range n {
			for ch := range numChannels {
				if ch < len(frame.Subframes) {
					interleaved = append(interleaved, int(frame.Subframes[ch].Samples[i]))
				} else {
					interleaved = append(interleaved, 0)
				}
			}
		}
		mono = append(mono, downmix(interleaved, numChannels, divisor)...)
	}

	return &DecodedFile{Samples: mono, SampleRate: int(stream.Info.SampleRate)}, nil
}

// downmix averages each frame's channels into a single mono sample,
// scaling integer PCM by divisor into the [-1, 1] range (same scaling
// idiom as the teacher's readAudioData).
func downmix(interleaved []int, numChannels int, divisor float32) []float32 {
	if numChannels <= 1 {
		out := make([]float32, len(interleaved))
		for i, v := range interleaved {
			out[i] = float32(v) / divisor
		}
		return out
	}

	frames := len(interleaved) / numChannels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range numChannels {
			sum += float32(interleaved[i*numChannels+ch]) / divisor
		}
		out[i] = sum / float32(numChannels)
	}
	return out
}

// NewAudioFileSourceFromFile loads path and constructs a buffered
// AudioFileSource from it. engineSampleRate must match the decoded
// file's sample rate; this loader does not resample (spec's Non-goals
// exclude file-format machinery beyond exercising the audiofile
// contract, and sample-rate conversion is exactly that kind of
// machinery).
func NewAudioFileSourceFromFile(id, path string, blockSize, engineSampleRate int) (*AudioFileSource, error) {
	decoded, err := LoadAudioFile(path)
	if err != nil {
		return nil, err
	}
	if decoded.SampleRate != engineSampleRate {
		return nil, vaerrors.Newf("audio file %q is at %d Hz, engine runs at %d Hz: resampling is not supported",
			path, decoded.SampleRate, engineSampleRate).
			Component("signalsource").
			Kind(vaerrors.KindInvalidParameter).
			Build()
	}
	return NewAudioFileSource(id, decoded.Samples, blockSize), nil
}
