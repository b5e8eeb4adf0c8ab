package netconn

import "fmt"

// SendPacket encrypts and enqueues payload (command code followed by
// arguments) for delivery, flushing immediately if no send is already in
// flight. closeAfter closes the connection once the outgoing queue drains,
// mirroring the teacher's SendPacket(packet, closeConnection) contract.
func (c *Connection) SendPacket(payload []byte, closeAfter bool) error {
	cipher := c.Cipher()
	if cipher == nil {
		return fmt.Errorf("cannot send packet before encryption is established")
	}
	frame, err := EncodePacket(cipher, payload)
	if err != nil {
		return fmt.Errorf("encoding outgoing packet: %w", err)
	}
	c.QueuePacket(frame)
	c.FlushOutgoing(closeAfter)
	return nil
}
