package device

// Endpoint identifies a registered capture endpoint on the hosting platform.
type Endpoint struct {
	Name  string
	Minor int
}

// Registrar is implemented by the hosting platform. The device registers
// itself once at start-up and unregisters at teardown.
type Registrar interface {
	RegisterEndpoint(name string) (Endpoint, error)
	UnregisterEndpoint(ep Endpoint)
}

// PageMapper installs one page of the frame buffer into a consumer mapping.
// slot is the page index inside the mapping.
type PageMapper interface {
	MapPage(page []byte, slot int) error
}

// PageUnmapper is optionally implemented by a PageMapper that needs to
// release pages when a mapping is torn down or aborted.
type PageUnmapper interface {
	UnmapPage(slot int)
}

type nopRegistrar struct{}

func (nopRegistrar) RegisterEndpoint(name string) (Endpoint, error) {
	return Endpoint{Name: name}, nil
}

func (nopRegistrar) UnregisterEndpoint(Endpoint) {}
