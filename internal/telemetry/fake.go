package telemetry

// FakePublisher records published telemetry for test assertions.
type FakePublisher struct {
	// Readings contains all voltage readings that were published.
	Readings []Reading

	// Events contains all mode transitions that were published.
	Events []Event

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// Payloads contains the JSON payloads for readings.
	Payloads [][]byte

	// EventPayloads contains the JSON payloads for mode transitions.
	EventPayloads [][]byte

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishReading and
	// PublishEvent.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishReading records the reading.
func (f *FakePublisher) PublishReading(r Reading) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Readings = append(f.Readings, r)

	payload, err := FormatReadingPayload(r)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishEvent records the mode transition.
func (f *FakePublisher) PublishEvent(e Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, e)

	payload, err := FormatEventPayload(e)
	if err != nil {
		return err
	}
	f.EventPayloads = append(f.EventPayloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(e SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, e)

	payload, err := FormatSystemPayload(e)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded telemetry.
func (f *FakePublisher) Reset() {
	f.Readings = nil
	f.Events = nil
	f.SystemEvents = nil
	f.Payloads = nil
	f.EventPayloads = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
