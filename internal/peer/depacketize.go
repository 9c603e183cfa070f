package peer

// H264Depacketizer extracts NAL units from RTP H264 payloads. It keeps
// per-instance state for FU-A fragment reassembly so concurrent tracks
// cannot corrupt each other.
type H264Depacketizer struct {
	fragment []byte
	started  bool
}

// NewH264Depacketizer creates a depacketizer with its own reassembly buffer.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// Depacketize extracts zero or more complete NAL units from one RTP
// payload. Single NAL, STAP-A and FU-A packetization are handled; other
// types are dropped.
func (d *H264Depacketizer) Depacketize(payload []byte) [][]byte {
	if len(payload) < 1 {
		return nil
	}

	switch naluType := payload[0] & 0x1f; {
	case naluType >= 1 && naluType <= 23:
		return [][]byte{payload}
	case naluType == 24:
		return d.splitSTAPA(payload)
	case naluType == 28:
		return d.reassembleFUA(payload)
	default:
		return nil
	}
}

// splitSTAPA unpacks an aggregation packet: a header byte followed by
// length-prefixed NAL units.
func (d *H264Depacketizer) splitSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	offset := 1

	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if size == 0 {
			continue
		}
		if offset+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus
}

// reassembleFUA accumulates fragmentation-unit packets and emits the
// reconstructed NAL unit when the end fragment arrives.
func (d *H264Depacketizer) reassembleFUA(payload []byte) [][]byte {
	if len(payload) < 2 {
		return nil
	}

	fnri := payload[0] & 0xe0
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1f

	switch {
	case start:
		// Reconstruct the NAL header: F+NRI from the FU indicator, type
		// from the FU header.
		d.fragment = append([]byte{fnri | naluType}, payload[2:]...)
		d.started = true
	case d.started:
		d.fragment = append(d.fragment, payload[2:]...)
	default:
		// Orphan fragment with no start seen; drop it.
		return nil
	}

	if end {
		nalu := d.fragment
		d.fragment = nil
		d.started = false
		return [][]byte{nalu}
	}
	return nil
}
