package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

// SnapshotVersion is the current index snapshot format version.
const SnapshotVersion uint16 = 1

var snapshotMagic = [4]byte{'V', 'X', 'I', 'X'}

// headerSize is magic + version + dimension.
const headerSize = 4 + 2 + 4

// SnapshotInfo describes a decoded snapshot.
type SnapshotInfo struct {
	InstanceID string
	Model      string
	Dimensions int
	CreatedAt  time.Time
	Records    int
}

// snapshotPayload is the gob body following the binary header.
type snapshotPayload struct {
	InstanceID string
	Model      string
	CreatedAt  time.Time
	Records    []Record
}

// Snapshot encodes the index as a single versioned blob. Record pointers
// are copied under the read lock and encoded after it is released, so
// upserts continue while the blob is built.
func (x *Index) Snapshot(model string) ([]byte, error) {
	x.mu.RLock()
	if x.closed {
		x.mu.RUnlock()
		return nil, ErrClosed
	}
	dims := x.dims
	recs := make([]*Record, 0, len(x.records))
	for _, rec := range x.records {
		recs = append(recs, rec)
	}
	x.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })

	payload := snapshotPayload{
		InstanceID: uuid.NewString(),
		Model:      model,
		CreatedAt:  time.Now().UTC(),
		Records:    make([]Record, len(recs)),
	}
	for i, rec := range recs {
		payload.Records[i] = *rec
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	_ = binary.Write(&buf, binary.BigEndian, SnapshotVersion)
	_ = binary.Write(&buf, binary.BigEndian, uint32(dims))
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, verrors.New(verrors.ErrCodeInternal, "encode index snapshot", err)
	}
	return buf.Bytes(), nil
}

// ReadSnapshotInfo decodes the header and payload metadata without
// building an index.
func ReadSnapshotInfo(blob []byte) (SnapshotInfo, error) {
	dims, payload, err := decodeSnapshot(blob)
	if err != nil {
		return SnapshotInfo{}, err
	}
	return SnapshotInfo{
		InstanceID: payload.InstanceID,
		Model:      payload.Model,
		Dimensions: dims,
		CreatedAt:  payload.CreatedAt,
		Records:    len(payload.Records),
	}, nil
}

// Restore builds a new Index from a snapshot blob. The dimension comes
// from the blob header; opts.Dimensions, when set, must agree with it.
func Restore(blob []byte, opts Options) (*Index, SnapshotInfo, error) {
	dims, payload, err := decodeSnapshot(blob)
	if err != nil {
		return nil, SnapshotInfo{}, err
	}
	if opts.Dimensions != 0 && dims != 0 && opts.Dimensions != dims {
		return nil, SnapshotInfo{}, dimensionError(opts.Dimensions, dims)
	}
	opts.Dimensions = dims

	x, err := NewIndex(opts)
	if err != nil {
		return nil, SnapshotInfo{}, err
	}

	recs := make([]*Record, 0, len(payload.Records))
	for i := range payload.Records {
		rec := payload.Records[i]
		if rec.ID == "" {
			continue
		}
		if len(rec.Vector) != dims {
			_ = x.Close()
			return nil, SnapshotInfo{}, fmt.Errorf("%w: record %q has %d dimensions, header says %d",
				ErrIncompatibleSnapshot, rec.ID, len(rec.Vector), dims)
		}
		recs = append(recs, &rec)
	}

	if err := x.keyword.putAll(recs); err != nil {
		_ = x.Close()
		return nil, SnapshotInfo{}, verrors.Wrap(verrors.ErrCodeIndexFailed, err)
	}
	for _, rec := range recs {
		x.vectors.Add(rec.ID, rec.Vector)
		x.records[rec.ID] = rec
	}

	info := SnapshotInfo{
		InstanceID: payload.InstanceID,
		Model:      payload.Model,
		Dimensions: dims,
		CreatedAt:  payload.CreatedAt,
		Records:    len(recs),
	}
	return x, info, nil
}

func decodeSnapshot(blob []byte) (int, snapshotPayload, error) {
	var payload snapshotPayload
	if len(blob) < headerSize || !bytes.Equal(blob[:4], snapshotMagic[:]) {
		return 0, payload, fmt.Errorf("%w: bad magic", ErrIncompatibleSnapshot)
	}
	version := binary.BigEndian.Uint16(blob[4:6])
	if version != SnapshotVersion {
		return 0, payload, fmt.Errorf("%w: format version %d, want %d",
			ErrIncompatibleSnapshot, version, SnapshotVersion)
	}
	dims := int(binary.BigEndian.Uint32(blob[6:10]))

	if err := gob.NewDecoder(bytes.NewReader(blob[headerSize:])).Decode(&payload); err != nil {
		return 0, payload, verrors.New(verrors.ErrCodeCorruptSnapshot, "decode index snapshot", err)
	}
	return dims, payload, nil
}
