package memory

import (
	"testing"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/test"
)

func Test_MemoryBackend(t *testing.T) {
	test.BackendTest(t, func() backend.Backend {
		return NewMemoryBackend()
	}, nil)
}
