package types

import "fmt"

// SimulatorError reports a failure raised by the simulator itself, such as a
// SimConnect exception. Exception is the raw exception code and SendID the
// packet that caused it; both are zero for errors not tied to a packet.
type SimulatorError struct {
	Err         error
	Message     string
	Exception   uint32
	SendID      uint32
	Recoverable bool
}

func (e *SimulatorError) Error() string {
	msg := e.Message
	if e.Exception != 0 {
		msg = fmt.Sprintf("%s (exception %d, packet %d)", e.Message, e.Exception, e.SendID)
	}
	if e.Err == nil {
		return "simulator error: " + msg
	}
	return fmt.Sprintf("simulator error: %s: %v", msg, e.Err)
}

func (e *SimulatorError) Unwrap() error {
	return e.Err
}
