package catalog

import (
	"github.com/smallbiznis/lubeqc/internal/config"
	"go.uber.org/fx"
)

// Provider hands out the catalog built from the current (hot-reloadable) config.
type Provider interface {
	Current() *Catalog
}

type holderProvider struct {
	holder *config.LubricantConfigHolder
}

func NewProvider(holder *config.LubricantConfigHolder) Provider {
	return &holderProvider{holder: holder}
}

func (p *holderProvider) Current() *Catalog {
	if p == nil || p.holder == nil {
		return New(config.DefaultLubricantConfig())
	}
	return New(p.holder.Get())
}

// Static returns a Provider pinned to cfg.
func Static(cfg config.LubricantConfig) Provider {
	return &holderProvider{holder: config.NewStaticLubricantConfigHolder(cfg)}
}

var Module = fx.Module("catalog",
	fx.Provide(NewProvider),
)
