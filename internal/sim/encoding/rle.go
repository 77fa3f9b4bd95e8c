// Package encoding holds the run-length codec used by the observer surface
// stream: voxel columns compress extremely well because terrain is long runs
// of the same palette id.
package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes palette ids as base64(varint pairs), each pair being
// (block_id, run_len).
func EncodeRLE(ids []uint16) string {
	var out []byte
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		b := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == b {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(b))
		out = append(out, tmp[:n]...)
		n = binary.PutUvarint(tmp[:], uint64(run))
		out = append(out, tmp[:n]...)
		i += run
	}

	return base64.StdEncoding.EncodeToString(out)
}

func DecodeRLE(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("truncated block id at offset %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("truncated run length at offset %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("palette id out of range: %d", b)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	return out, nil
}
