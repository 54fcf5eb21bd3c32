package core

import (
	"github.com/go-chi/chi/v5"
)

// V1RouteRegistrar mounts a group of domain endpoints under the /v1
// router. Handler packages expose RegisterRoutes methods and the
// application entry point appends them to Server.V1RouteRegistrars; this
// indirection keeps core free of handler-package imports.
type V1RouteRegistrar func(r chi.Router)

// ModelStatus is the slice of the prediction engine the chassis needs for
// the liveness surface: whether a trained model is currently published.
// Satisfied by *engine.Engine.
type ModelStatus interface {
	// Ready reports whether a model bundle is loaded, without triggering
	// a load.
	Ready() bool
}
