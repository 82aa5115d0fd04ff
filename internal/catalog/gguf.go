package catalog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Minimal GGUF reader: walks the header far enough to list tensor names
// without allocating tensor data. Supports container versions 2 and 3.

const (
	ggufTypeUint8   = 0
	ggufTypeInt8    = 1
	ggufTypeUint16  = 2
	ggufTypeInt16   = 3
	ggufTypeUint32  = 4
	ggufTypeInt32   = 5
	ggufTypeFloat32 = 6
	ggufTypeBool    = 7
	ggufTypeString  = 8
	ggufTypeArray   = 9
	ggufTypeUint64  = 10
	ggufTypeInt64   = 11
	ggufTypeFloat64 = 12
)

func ggufTensorNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic[:]) != "GGUF" {
		return nil, fmt.Errorf("not a gguf file: %s", path)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version < 2 || version > 3 {
		return nil, fmt.Errorf("unsupported gguf version %d", version)
	}

	var nTensors, nKV uint64
	if err := binary.Read(r, binary.LittleEndian, &nTensors); err != nil {
		return nil, fmt.Errorf("read tensor count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &nKV); err != nil {
		return nil, fmt.Errorf("read kv count: %w", err)
	}

	for i := uint64(0); i < nKV; i++ {
		if _, err := ggufReadString(r); err != nil {
			return nil, fmt.Errorf("kv %d key: %w", i, err)
		}
		var vt uint32
		if err := binary.Read(r, binary.LittleEndian, &vt); err != nil {
			return nil, fmt.Errorf("kv %d type: %w", i, err)
		}
		if err := ggufSkipValue(r, vt); err != nil {
			return nil, fmt.Errorf("kv %d value: %w", i, err)
		}
	}

	names := make([]string, 0, nTensors)
	for i := uint64(0); i < nTensors; i++ {
		name, err := ggufReadString(r)
		if err != nil {
			return nil, fmt.Errorf("tensor %d name: %w", i, err)
		}
		var nDims uint32
		if err := binary.Read(r, binary.LittleEndian, &nDims); err != nil {
			return nil, fmt.Errorf("tensor %d dims: %w", i, err)
		}
		// dims (uint64 each), dtype (uint32), offset (uint64)
		if _, err := io.CopyN(io.Discard, r, int64(nDims)*8+4+8); err != nil {
			return nil, fmt.Errorf("tensor %d info: %w", i, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func ggufReadString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxSafetensorsHeader {
		return "", fmt.Errorf("implausible string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func ggufSkipValue(r io.Reader, vt uint32) error {
	switch vt {
	case ggufTypeUint8, ggufTypeInt8, ggufTypeBool:
		_, err := io.CopyN(io.Discard, r, 1)
		return err
	case ggufTypeUint16, ggufTypeInt16:
		_, err := io.CopyN(io.Discard, r, 2)
		return err
	case ggufTypeUint32, ggufTypeInt32, ggufTypeFloat32:
		_, err := io.CopyN(io.Discard, r, 4)
		return err
	case ggufTypeUint64, ggufTypeInt64, ggufTypeFloat64:
		_, err := io.CopyN(io.Discard, r, 8)
		return err
	case ggufTypeString:
		_, err := ggufReadString(r)
		return err
	case ggufTypeArray:
		var elemType uint32
		if err := binary.Read(r, binary.LittleEndian, &elemType); err != nil {
			return err
		}
		var count uint64
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return err
		}
		for i := uint64(0); i < count; i++ {
			if err := ggufSkipValue(r, elemType); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown gguf value type %d", vt)
	}
}
