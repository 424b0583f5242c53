package registers

import (
	"errors"
	"sync"
)

func CreateTestRegisterReader(values map[uint16]string) *TestRegisterReader {
	return &TestRegisterReader{values: values}
}

// TestRegisterReader serves register values from memory, keyed by address.
type TestRegisterReader struct {
	mu     sync.Mutex
	values map[uint16]string
	reads  int
}

func (reader *TestRegisterReader) Open() error {
	return nil
}

func (reader *TestRegisterReader) Close() error {
	return nil
}

func (reader *TestRegisterReader) Read(src RegisterSource) (string, error) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.reads++
	v, ok := reader.values[src.Address]
	if !ok {
		return "", errors.New("illegal data address")
	}
	return v, nil
}

func (reader *TestRegisterReader) Set(address uint16, value string) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.values == nil {
		reader.values = map[uint16]string{}
	}
	reader.values[address] = value
}

func (reader *TestRegisterReader) Reads() int {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	return reader.reads
}

// ensure interface compliance
var _ RegisterReader = (*TestRegisterReader)(nil)
