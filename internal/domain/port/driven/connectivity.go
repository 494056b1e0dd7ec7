package driven

import (
	"context"

	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// ConnectivityProbe reports current reachability and transport class.
type ConnectivityProbe interface {
	Check(ctx context.Context) model.Connectivity
}
