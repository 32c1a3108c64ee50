package resource

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/amplimix/amplimix/amplierr"
)

// ampkMagic is the 4-byte file magic of a packaged project.
var ampkMagic = [4]byte{'A', 'M', 'P', 'K'}

// AMPKVersion is the highest package version this reader understands.
const AMPKVersion = 1

// Compression enumerates the package payload encodings.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZlib Compression = 1
)

// AMPKItem describes one packaged asset: its name and its byte range
// inside the (decompressed) payload block.
type AMPKItem struct {
	Name   string
	Offset uint64
	Size   uint64
}

// AMPKFile is a decoded .ampk package: the item directory plus the
// decompressed payload block items index into.
type AMPKFile struct {
	Version     uint16
	Compression Compression
	Items       []AMPKItem

	payload []byte
	byName  map[string]int
}

// ReadAMPK decodes a packaged project:
// magic, uint16 version, uint8 compression, uint64 item count, itemCount
// descriptors {length-prefixed name, uint64 offset, uint64 size}, then
// the concatenated payloads, optionally zlib-compressed as a whole.
func ReadAMPK(r io.Reader) (*AMPKFile, error) {
	const op = "resource.ReadAMPK"

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading magic", err)
	}
	if magic != ampkMagic {
		return nil, amplierr.New(op, amplierr.InvalidConfiguration, "not an AMPK package")
	}

	var header struct {
		Version     uint16
		Compression uint8
		ItemCount   uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading header", err)
	}
	if header.Version == 0 || header.Version > AMPKVersion {
		return nil, amplierr.New(op, amplierr.Unsupported, "unsupported AMPK version")
	}
	compression := Compression(header.Compression)
	switch compression {
	case CompressionNone, CompressionZlib:
	default:
		return nil, amplierr.New(op, amplierr.Unsupported, "unknown compression scheme")
	}

	f := &AMPKFile{
		Version:     header.Version,
		Compression: compression,
		Items:       make([]AMPKItem, header.ItemCount),
		byName:      make(map[string]int, header.ItemCount),
	}
	for i := range f.Items {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading item name length", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading item name", err)
		}
		var span [2]uint64
		if err := binary.Read(r, binary.LittleEndian, &span); err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading item span", err)
		}
		f.Items[i] = AMPKItem{Name: string(name), Offset: span[0], Size: span[1]}
		f.byName[string(name)] = i
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "reading payload block", err)
	}
	if compression == CompressionZlib {
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "opening zlib payload", err)
		}
		payload, err = io.ReadAll(zr)
		closeErr := zr.Close()
		if err != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "decompressing payload", err)
		}
		if closeErr != nil {
			return nil, amplierr.Wrap(op, amplierr.InvalidConfiguration, "closing zlib payload", closeErr)
		}
	}
	f.payload = payload

	for _, item := range f.Items {
		if item.Offset+item.Size > uint64(len(payload)) {
			return nil, amplierr.New(op, amplierr.InvalidConfiguration, "item span exceeds payload: "+item.Name)
		}
	}
	return f, nil
}

// Open returns the named item's bytes, shared with the package's payload
// block.
func (f *AMPKFile) Open(name string) ([]byte, error) {
	i, ok := f.byName[name]
	if !ok {
		return nil, amplierr.New("AMPKFile.Open", amplierr.ResourceNotFound, "no such item: "+name)
	}
	item := f.Items[i]
	return f.payload[item.Offset : item.Offset+item.Size], nil
}

// Names lists the packaged item names in directory order.
func (f *AMPKFile) Names() []string {
	out := make([]string, len(f.Items))
	for i, item := range f.Items {
		out[i] = item.Name
	}
	return out
}
