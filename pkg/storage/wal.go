package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"surrogate/pkg/common"
)

// [CRC32 4B] [Timestamp 8B] [PointLen 4B] [DataLen 4B] [float64 x (PointLen+DataLen)]

const (
	HeaderSize = 4 + 8 + 4 + 4 // 20 Bytes

	// maxVectorLen bounds a single record so a torn header cannot trigger a
	// huge allocation during replay.
	maxVectorLen = 1 << 24
)

var (
	ErrCorrupted   = errors.New("wal: corrupted record")
	ErrCRCMismatch = errors.New("wal: crc mismatch")
)

// WAL is an append-only log of samples computed by the slow model.
type WAL struct {
	file *os.File
	mu   sync.Mutex
	buf  *bufio.Writer
}

func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &WAL{
		file: f,
		buf:  bufio.NewWriter(f),
	}, nil
}

func (w *WAL) Append(s common.Sample) error {
	if len(s.Point) > maxVectorLen || len(s.Data) > maxVectorLen {
		return fmt.Errorf("wal: sample too large (%d, %d)", len(s.Point), len(s.Data))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(header[4:12], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(s.Point)))
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(s.Data)))

	body := encodeFloats(make([]byte, 0, 8*(len(s.Point)+len(s.Data))), s.Point)
	body = encodeFloats(body, s.Data)

	checksum := crc32.NewIEEE()
	checksum.Write(header[4:])
	checksum.Write(body)
	binary.LittleEndian.PutUint32(header[0:4], checksum.Sum32())

	if _, err := w.buf.Write(header); err != nil {
		return err
	}
	if _, err := w.buf.Write(body); err != nil {
		return err
	}

	return w.buf.Flush()
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	path := w.file.Name()
	if err := w.file.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	return w.file.Sync()
}

func (w *WAL) Size() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return 0, err
	}
	st, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

type WALIterator struct {
	reader *bufio.Reader
	file   *os.File
}

func (w *WAL) NewIterator() (*WALIterator, error) {
	f, err := os.Open(w.file.Name())
	if err != nil {
		return nil, err
	}
	return &WALIterator{
		file:   f,
		reader: bufio.NewReader(f),
	}, nil
}

// Next returns io.EOF after the last complete record.
func (it *WALIterator) Next() (common.Sample, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(it.reader, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return common.Sample{}, ErrCorrupted
		}
		return common.Sample{}, err
	}

	storedCRC := binary.LittleEndian.Uint32(header[0:4])
	nPoint := binary.LittleEndian.Uint32(header[12:16])
	nData := binary.LittleEndian.Uint32(header[16:20])
	if nPoint > maxVectorLen || nData > maxVectorLen {
		return common.Sample{}, ErrCorrupted
	}

	body := make([]byte, 8*(int(nPoint)+int(nData)))
	if _, err := io.ReadFull(it.reader, body); err != nil {
		return common.Sample{}, ErrCorrupted
	}

	checksum := crc32.NewIEEE()
	checksum.Write(header[4:])
	checksum.Write(body)
	if checksum.Sum32() != storedCRC {
		return common.Sample{}, ErrCRCMismatch
	}

	return common.Sample{
		Point: decodeFloats(body[:8*nPoint]),
		Data:  decodeFloats(body[8*nPoint:]),
	}, nil
}

func (it *WALIterator) Close() {
	it.file.Close()
}

// ReadAll replays every intact record. A torn tail is not an error; the
// samples read before it are returned.
func (w *WAL) ReadAll() ([]common.Sample, error) {
	it, err := w.NewIterator()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var samples []common.Sample
	for {
		s, err := it.Next()
		if err == io.EOF {
			return samples, nil
		}
		if errors.Is(err, ErrCorrupted) {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
		samples = append(samples, s)
	}
}

func encodeFloats(dst []byte, v []float64) []byte {
	for _, x := range v {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
	}
	return dst
}

func decodeFloats(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v
}
