package main

import (
	"net/http"

	"github.com/aswathylr-builds/storefront-checkout/api"
	"github.com/aswathylr-builds/storefront-checkout/codec"
	"github.com/aswathylr-builds/storefront-checkout/health"
)

// routes splits the public storefront router from the internal listener.
// The payload codec decrypts workflow history, so it is only mounted on the
// internal listener next to the health checks.
func routes(handler *api.Handler, checks *health.Server, payloadCodec *codec.EncryptionCodec) http.Handler {
	if payloadCodec != nil {
		checks.Mount("/codec", codec.NewHTTPHandler(payloadCodec))
	}
	return api.NewRouter(handler, map[string]http.Handler{"/health": checks.Routes()})
}
