package stage

import (
	"context"

	"organ/internal/store"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *store.Job) error
	Execute(context.Context, *store.Job) error
	HealthCheck(context.Context) Health
}
