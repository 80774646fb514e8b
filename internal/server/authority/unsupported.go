package authority

import (
	"context"

	"github.com/dmitrijs2005/credengine/internal/common"
)

// Unsupported answers every operation with common.ErrNotSupported. It
// stands in for authorities this engine does not implement, such as a
// delegated password server or Kerberos.
type Unsupported struct{}

func (Unsupported) Handle(context.Context, *Request, Entry) (*Result, error) {
	return nil, common.ErrNotSupported
}
