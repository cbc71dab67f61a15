package smfcodec

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/midiloop/internal/logger"
	"github.com/leandrodaf/midiloop/internal/phrase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func newCodec() *Codec {
	return New(WithLogger(logger.NewNopLogger()))
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// vlq encodes n as a MIDI variable-length quantity.
func vlq(n uint32) []byte {
	out := []byte{byte(n & 0x7F)}
	for n >>= 7; n > 0; n >>= 7 {
		out = append([]byte{byte(n&0x7F) | 0x80}, out...)
	}
	return out
}

func ev(delta uint32, data ...byte) []byte {
	return append(vlq(delta), data...)
}

func tempoEv(delta, microsPerBeat uint32) []byte {
	return ev(delta, 0xFF, 0x51, 0x03, byte(microsPerBeat>>16), byte(microsPerBeat>>8), byte(microsPerBeat))
}

func track(events ...[]byte) []byte {
	var body []byte
	for _, e := range events {
		body = append(body, e...)
	}
	body = append(body, 0x00, 0xFF, 0x2F, 0x00)
	out := binary.BigEndian.AppendUint32([]byte("MTrk"), uint32(len(body)))
	return append(out, body...)
}

func file(division uint16, tracks ...[]byte) []byte {
	format := uint16(0)
	if len(tracks) > 1 {
		format = 1
	}
	out := binary.BigEndian.AppendUint32([]byte("MThd"), 6)
	out = binary.BigEndian.AppendUint16(out, format)
	out = binary.BigEndian.AppendUint16(out, uint16(len(tracks)))
	out = binary.BigEndian.AppendUint16(out, division)
	for _, t := range tracks {
		out = append(out, t...)
	}
	return out
}

func TestHalfSecondNoteAt120BPM(t *testing.T) {
	c := newCodec()
	data, err := c.Export(phrase.New(phrase.Note{Pitch: 60, VelocityOn: 100, Start: 0, End: ms(500)}), 120)
	require.NoError(t, err)

	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, smf.MetricTicks(480), s.TimeFormat)
	require.Len(t, s.Tracks, 1)

	var abs uint32
	var onAt, offAt int64 = -1, -1
	for _, e := range s.Tracks[0] {
		abs += e.Delta
		var ch, key, vel uint8
		m := midi.Message(e.Message)
		switch {
		case m.GetNoteStart(&ch, &key, &vel):
			onAt = int64(abs)
		case m.GetNoteEnd(&ch, &key):
			offAt = int64(abs)
		}
	}
	assert.Equal(t, int64(0), onAt)
	assert.Equal(t, int64(480), offAt)

	notes, err := c.Import(data)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.InDelta(t, float64(ms(500)), float64(notes[0].End), float64(time.Second/8))
	assert.Equal(t, uint8(100), notes[0].VelocityOn)
}

func TestExportImportRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var notes []phrase.Note
	for i := 0; i < 100; i++ {
		start := ms(i * 7)
		notes = append(notes, phrase.Note{
			Channel:     uint8(rng.Intn(16)),
			Pitch:       uint8(i),
			VelocityOn:  uint8(1 + rng.Intn(127)),
			VelocityOff: uint8(rng.Intn(128)),
			Start:       start,
			End:         start + ms(rng.Intn(2000)),
		})
	}

	c := newCodec()
	for _, bpm := range []float64{60, 120, 173.5} {
		data, err := c.Export(phrase.New(notes...), bpm)
		require.NoError(t, err)
		got, err := c.Import(data)
		require.NoError(t, err)
		require.Len(t, got, len(notes))

		tick := float64(c.Resolution(bpm))
		for i := range notes {
			assert.Equal(t, notes[i].Channel, got[i].Channel)
			assert.Equal(t, notes[i].Pitch, got[i].Pitch)
			assert.Equal(t, notes[i].VelocityOn, got[i].VelocityOn)
			assert.Equal(t, notes[i].VelocityOff, got[i].VelocityOff)
			assert.InDelta(t, float64(notes[i].Start), float64(got[i].Start), tick)
			assert.InDelta(t, float64(notes[i].End), float64(got[i].End), tick)
		}
	}
}

func TestExportZeroLengthNote(t *testing.T) {
	c := newCodec()
	data, err := c.Export(phrase.New(phrase.Note{Pitch: 60, VelocityOn: 10, Start: ms(250), End: ms(250)}), 120)
	require.NoError(t, err)
	got, err := c.Import(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, got[0].Start, got[0].End)
}

func TestExportRejectsInvalidTempo(t *testing.T) {
	c := newCodec()
	for _, bpm := range []float64{0, -120, math.NaN(), math.Inf(1), 2, 3, 3.57, 6.1e7, 1e8} {
		_, err := c.Export(phrase.New(phrase.Note{Pitch: 60, VelocityOn: 1, Start: time.Second, End: 2 * time.Second}), bpm)
		assert.ErrorIs(t, err, ErrInvalidTempo, "bpm %v", bpm)
	}
}

func TestExportTempoRangeEdges(t *testing.T) {
	c := newCodec()
	for _, bpm := range []float64{MinBPM, 3.6, 6e6} {
		data, err := c.Export(phrase.New(phrase.Note{Pitch: 60, VelocityOn: 1, Start: time.Second, End: 2 * time.Second}), bpm)
		require.NoError(t, err, "bpm %v", bpm)

		s, err := smf.ReadFrom(bytes.NewReader(data))
		require.NoError(t, err)
		var got float64
		require.True(t, s.Tracks[0][0].Message.GetMetaTempo(&got))
		assert.InEpsilon(t, bpm, got, 1e-3, "bpm %v", bpm)
	}

	_, err := c.Export(phrase.New(), MaxBPM)
	assert.NoError(t, err)
}

func TestExportEmptyPhrase(t *testing.T) {
	c := newCodec()
	data, err := c.Export(phrase.New(), 120)
	require.NoError(t, err)
	notes, err := c.Import(data)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestImportWithoutTempoUses120BPM(t *testing.T) {
	data := file(480, track(
		ev(0, 0x90, 60, 100),
		ev(480, 0x80, 60, 0),
	))
	notes, err := newCodec().Import(data)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, ms(500), notes[0].End)
}

func TestImportVelocityZeroNoteOnEndsNote(t *testing.T) {
	data := file(480, track(
		tempoEv(0, 500000),
		ev(0, 0x90, 60, 100),
		ev(240, 0x90, 60, 0),
	))
	notes, err := newCodec().Import(data)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, ms(250), notes[0].End)
	assert.Equal(t, uint8(0), notes[0].VelocityOff)
}

func TestImportPairsOverlappingNotesOldestFirst(t *testing.T) {
	data := file(480, track(
		ev(0, 0x90, 60, 10),
		ev(96, 0x90, 60, 20),
		ev(96, 0x80, 60, 0),
		ev(96, 0x80, 60, 0),
	))
	notes, err := newCodec().Import(data)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, uint8(10), notes[0].VelocityOn)
	assert.Equal(t, ms(200), notes[0].End)
	assert.Equal(t, uint8(20), notes[1].VelocityOn)
	assert.Equal(t, ms(100), notes[1].Start)
	assert.Equal(t, ms(300), notes[1].End)
}

func TestImportDropsUnpairedEvents(t *testing.T) {
	data := file(480, track(
		ev(0, 0x80, 64, 0),   // off without on
		ev(0, 0x90, 62, 50),  // never closed
		ev(0, 0x91, 60, 70),  // channel 1
		ev(480, 0x80, 60, 0), // channel 0 does not close channel 1
		ev(0, 0x81, 60, 0),
	))
	notes, err := newCodec().Import(data)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, uint8(1), notes[0].Channel)
	assert.Equal(t, uint8(60), notes[0].Pitch)
	assert.Equal(t, ms(500), notes[0].End)
}

func TestImportTempoChangeInSeparateTrack(t *testing.T) {
	tempo := track(
		tempoEv(0, 500000),    // 120 BPM
		tempoEv(480, 1000000), // 60 BPM from beat 1
	)
	notes := track(
		ev(0, 0x90, 60, 100),
		ev(960, 0x80, 60, 0),
		ev(0, 0x90, 62, 100),
		ev(480, 0x80, 62, 0),
	)
	got, err := newCodec().Import(file(480, tempo, notes))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Duration(0), got[0].Start)
	assert.Equal(t, ms(1500), got[0].End)
	assert.Equal(t, ms(1500), got[1].Start)
	assert.Equal(t, ms(2500), got[1].End)
}

func TestImportInvalidTempoFallsBackTo120(t *testing.T) {
	data := file(480, track(
		tempoEv(0, 0),
		ev(0, 0x90, 60, 100),
		ev(480, 0x80, 60, 0),
	))
	notes, err := newCodec().Import(data)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, ms(500), notes[0].End)
}

func TestImportRejectsMalformedData(t *testing.T) {
	c := newCodec()
	_, err := c.Import([]byte("definitely not a midi file"))
	assert.ErrorIs(t, err, ErrMalformedFile)

	_, err = c.Import(nil)
	assert.ErrorIs(t, err, ErrMalformedFile)
}

func TestImportRejectsTimecodeFiles(t *testing.T) {
	// -25 fps, 40 subframes
	data := file(0xE728, track(ev(0, 0x90, 60, 100), ev(40, 0x80, 60, 0)))
	_, err := newCodec().Import(data)
	assert.ErrorIs(t, err, ErrUnsupportedTimeFormat)
}

func TestSaveAndLoad(t *testing.T) {
	c := newCodec()
	path := filepath.Join(t.TempDir(), "loop.mid")
	p := phrase.New(
		phrase.Note{Pitch: 60, VelocityOn: 90, Start: 0, End: ms(400)},
		phrase.Note{Pitch: 67, VelocityOn: 80, Start: ms(400), End: ms(800)},
	)
	require.NoError(t, c.Save(path, p, 120))

	notes, err := c.Load(path)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, uint8(67), notes[1].Pitch)
	assert.InDelta(t, float64(ms(800)), float64(notes[1].End), float64(c.Resolution(120)))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFailedSaveKeepsExistingFile(t *testing.T) {
	c := newCodec()
	path := filepath.Join(t.TempDir(), "loop.mid")
	require.NoError(t, c.Save(path, phrase.New(phrase.Note{Pitch: 60, VelocityOn: 1, End: ms(100)}), 120))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Save(path, phrase.New(), 0), ErrInvalidTempo)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := newCodec().Load(filepath.Join(t.TempDir(), "missing.mid"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
