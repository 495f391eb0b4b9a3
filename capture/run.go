package capture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
)

// Run feeds every packet of src to a, numbering frames from 1, and flushes
// the assembler at the end of the capture. It returns the number of
// packets read.
func Run(ctx context.Context, src PacketSource, a *Assembler) (uint64, error) {
	decoder := src.LinkType()
	var frame uint64
	defer a.Flush()

	for {
		if err := ctx.Err(); err != nil {
			return frame, err
		}
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return frame, nil
		}
		if err != nil {
			return frame, fmt.Errorf("failed to read packet %d: %w", frame+1, err)
		}
		frame++

		packet := gopacket.NewPacket(data, decoder, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		md := packet.Metadata()
		md.CaptureInfo = ci
		a.Packet(frame, packet)
	}
}
