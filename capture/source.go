package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ErrUnknownFormat is returned for files that are neither pcap nor pcapng.
var ErrUnknownFormat = errors.New("capture: unknown file format")

// pcapng section header block type, also the file magic.
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// PacketSource yields captured packets in capture order.
type PacketSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileSource reads packets from a pcap or pcapng file.
type FileSource struct {
	closer io.Closer
	reader PacketSource
}

// OpenFile opens a capture file. The format is detected from the magic.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}
	src, err := NewSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture file %s: %w", path, err)
	}
	src.closer = f
	return src, nil
}

// NewSource reads a pcap or pcapng stream from r.
func NewSource(r io.Reader) (*FileSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
	}

	var reader PacketSource
	if bytes.Equal(magic, ngMagic) {
		reader, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		reader, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
	}
	return &FileSource{reader: reader}, nil
}

// ReadPacketData returns the next packet. io.EOF marks the end of the file.
func (s *FileSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return s.reader.ReadPacketData()
}

// LinkType returns the link type of the capture.
func (s *FileSource) LinkType() layers.LinkType {
	return s.reader.LinkType()
}

// Close closes the underlying file, if any.
func (s *FileSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
