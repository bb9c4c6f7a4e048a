package aqua

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// CompressionTag identifies how attachment bodies are compressed at rest.
// Tags are stored with each attachment; changing their values breaks
// existing databases.
type CompressionTag uint8

const (
	CompressionNone CompressionTag = 0
	CompressionLZ4  CompressionTag = 1
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

var errIncompressible = errors.New("data is incompressible")

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("aqua: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("aqua: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("aqua: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("aqua: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns data compressed with tag, falling back to
// CompressionNone when compression does not make it smaller.
func compress(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	var out []byte
	var err error
	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		out, err = compressLZ4(data)
	case CompressionZstd:
		out = zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			err = errIncompressible
		}
	default:
		return nil, 0, fmt.Errorf("unsupported compression tag: %d", tag)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return out, tag, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func decompress(data []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("stored size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return dst, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// attachmentMeta heads every stored attachment record.
type attachmentMeta struct {
	ContentType string         `cbor:"1,keyasint"`
	Length      int            `cbor:"2,keyasint"`
	Compression CompressionTag `cbor:"3,keyasint"`
	Digest      []byte         `cbor:"4,keyasint"`
}

func (m *attachmentMeta) rev() string {
	return "blake3-" + hex.EncodeToString(m.Digest[:8])
}

// encodeAttachment builds the stored record: the varbytes-prefixed CBOR
// meta followed by the (possibly compressed) body.
func encodeAttachment(data []byte, contentType string, tag CompressionTag) ([]byte, *attachmentMeta, error) {
	body, used, err := compress(data, tag)
	if err != nil {
		return nil, nil, err
	}
	digest := blake3.Sum256(data)
	meta := &attachmentMeta{
		ContentType: contentType,
		Length:      len(data),
		Compression: used,
		Digest:      digest[:],
	}
	raw, err := cborEnc.Marshal(meta)
	if err != nil {
		return nil, nil, err
	}
	buf := appendVarbytes(make([]byte, 0, len(raw)+len(body)+4), raw)
	return appendRaw(buf, body), meta, nil
}

func decodeAttachment(record []byte) ([]byte, *attachmentMeta, error) {
	d := makeByteDecoder(record)
	raw, err := d.VarBytes()
	if err != nil {
		return nil, nil, err
	}
	var meta attachmentMeta
	if err := cborDec.Unmarshal(raw, &meta); err != nil {
		return nil, nil, dataErrf(record, 0, err, "invalid attachment meta")
	}
	if len(meta.Digest) != 32 {
		return nil, nil, dataErrf(record, 0, nil, "invalid attachment digest")
	}
	data, err := decompress(d.Buf, meta.Compression, meta.Length)
	if err != nil {
		return nil, nil, dataErrf(record, d.Off(), err, "invalid attachment body")
	}
	if sum := blake3.Sum256(data); string(sum[:]) != string(meta.Digest) {
		return nil, nil, dataErrf(record, d.Off(), nil, "attachment digest mismatch")
	}
	return data, &meta, nil
}
