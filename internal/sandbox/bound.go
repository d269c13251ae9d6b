package sandbox

import (
	"github.com/roach88/svcrt/internal/base"
	"github.com/roach88/svcrt/internal/host"
)

// boundHost is the host as seen by one application. Identity-relative
// primitives (parameters, application id, storage) answer for app no matter
// which application is on top of the call stack, so a runtime that caches
// them never picks up another application's values when it is re-entered
// from a nested query. Everything else goes to the shared Host.
type boundHost struct {
	*Host
	app base.ApplicationID
}

var _ host.Host = boundHost{}

func (h *Host) bind(app base.ApplicationID) boundHost {
	return boundHost{Host: h, app: app}
}

func (b boundHost) FetchParameters() []byte {
	return b.fetchParameters(b.app)
}

func (b boundHost) FetchApplicationID() base.ApplicationID {
	return b.fetchApplicationID(b.app)
}

func (b boundHost) ContainsKey(key []byte) bool {
	return b.containsKey(b.app, key)
}

func (b boundHost) ReadValueBytes(key []byte) ([]byte, bool) {
	return b.readValueBytes(b.app, key)
}

func (b boundHost) FindKeysByPrefix(prefix []byte) [][]byte {
	return b.findKeysByPrefix(b.app, prefix)
}

func (b boundHost) FindKeyValuesByPrefix(prefix []byte) []host.KeyValue {
	return b.findKeyValuesByPrefix(b.app, prefix)
}
