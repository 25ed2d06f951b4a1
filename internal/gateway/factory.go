package gateway

import (
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Factory resolves the gateway client for a subscriber's configured
// payment gateway.
type Factory interface {
	GetClient(provider types.PaymentGatewayType) (Client, error)
}

type factory struct {
	clients map[types.PaymentGatewayType]Client
}

// NewFactory builds a factory over the supplied clients. Clients are
// constructed once at startup and shared; they are safe for concurrent
// use.
func NewFactory(clients ...Client) Factory {
	registry := make(map[types.PaymentGatewayType]Client, len(clients))
	for _, client := range clients {
		registry[client.ProviderType()] = client
	}
	return &factory{clients: registry}
}

func (f *factory) GetClient(provider types.PaymentGatewayType) (Client, error) {
	client, ok := f.clients[provider]
	if !ok {
		return nil, ierr.NewError("unsupported payment gateway").
			WithHintf("No client is configured for gateway %s", provider).
			Mark(ierr.ErrNotConfigured)
	}
	return client, nil
}
