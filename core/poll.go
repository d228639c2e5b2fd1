package core

// waitTransfer busy-polls the transfer-in-progress bit until it clears or
// the poll timeout passes.
func (m *Master) waitTransfer(regs Regs) error {
	if regs.Status()&StatusTIP == 0 {
		return nil
	}
	deadline := m.clock.Now().Add(m.timeout)
	for regs.Status()&StatusTIP != 0 {
		if !m.clock.Now().Before(deadline) {
			DebugPrintln("[I2C] timeout base=0x" + hex32(uint32(regs.Base())))
			return ErrTimeout
		}
	}
	return nil
}
