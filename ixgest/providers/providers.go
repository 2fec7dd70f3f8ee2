// Package providers assembles the registry of every supported feed format.
package providers

import (
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest/providers/imovelweb"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest/providers/vrsync"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest/providers/zapimoveis"
)

// NewRegistry returns a registry with all built-in adapters.
func NewRegistry() *ixgest.Registry {
	return ixgest.NewRegistry(
		vrsync.New(),
		zapimoveis.New(),
		imovelweb.New(),
	)
}
