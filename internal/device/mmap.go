package device

import (
	"sync"
)

// Mapping is a page-granular shared view of the frame buffer. Every buffer
// index aliases the same region; writes by the producer show up in place.
type Mapping struct {
	data  []byte
	pages [][]byte
	store *FrameStore
	unmap PageUnmapper
	once  sync.Once
}

// Bytes returns the mapped region.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Len returns the mapped length, a whole number of pages.
func (m *Mapping) Len() int {
	return len(m.data)
}

// NumPages returns the number of pages installed.
func (m *Mapping) NumPages() int {
	return len(m.pages)
}

// Page returns page i of the mapping.
func (m *Mapping) Page(i int) []byte {
	return m.pages[i]
}

// Close tears the mapping down. The region must not be used afterwards.
func (m *Mapping) Close() error {
	var err error
	m.once.Do(func() {
		if m.unmap != nil {
			for i := len(m.pages) - 1; i >= 0; i-- {
				m.unmap.UnmapPage(i)
			}
		}
		m.data, m.pages = nil, nil
		err = m.store.unpin()
	})
	return err
}

// MappingProvider exposes the frame buffer's pages for zero-copy access.
type MappingProvider struct {
	store    *FrameStore
	pageSize int
	mapper   PageMapper
}

// Map installs ceil(length/pageSize) pages of the frame buffer. Requests
// larger than the buffer fail with IO_ERROR. If any page fails to map the
// pages installed so far are unmapped and the mapper's error is returned.
func (p *MappingProvider) Map(length int) (*Mapping, error) {
	if length < 0 {
		return nil, newError(CodeInvalidArgument, "mmap", "negative mapping length")
	}
	if length > p.store.Capacity() {
		return nil, newError(CodeIO, "mmap", "mapping larger than frame buffer")
	}

	buf, err := p.store.pin()
	if err != nil {
		return nil, err
	}

	m := &Mapping{store: p.store}
	if u, ok := p.mapper.(PageUnmapper); ok {
		m.unmap = u
	}

	for off := 0; off < length; off += p.pageSize {
		page := buf[off : off+p.pageSize : off+p.pageSize]
		if p.mapper != nil {
			if mapErr := p.mapper.MapPage(page, len(m.pages)); mapErr != nil {
				_ = m.Close()
				return nil, wrapError(CodeIO, "mmap", "page mapping failed", mapErr)
			}
		}
		m.pages = append(m.pages, page)
	}
	m.data = buf[:len(m.pages)*p.pageSize]
	return m, nil
}
