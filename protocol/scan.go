package protocol

// scanner walks a byte stream, resynchronizing on the sync byte after any
// frame that fails to decode.
type scanner struct {
	synchronized bool
	dropped      uint32
}

// scan delivers every complete frame in data to fn and returns how many
// bytes were consumed. A trailing partial frame is left unconsumed.
func (s *scanner) scan(data []byte, fn func(Block)) int {
	total := len(data)
	for len(data) > 0 {
		if !s.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			s.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		block, n, err := DecodeFrame(data)
		if err == ErrIncomplete {
			break
		}
		if err != nil {
			s.synchronized = false
			s.dropped++
			continue
		}
		data = data[n:]
		fn(block)
	}
	return total - len(data)
}
