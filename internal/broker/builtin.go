package broker

import (
	"context"

	"msgport/internal/object"
)

// EchoServiceName is the built-in diagnostic echo endpoint.
const EchoServiceName = "port.echo"

// RegistryServiceName is the built-in service enumeration endpoint.
const RegistryServiceName = "port.registry"

// EchoService replies with the message it received. It exists so
// clients and operators can verify connectivity end to end.
type EchoService struct{}

func (EchoService) Name() string {
	return EchoServiceName
}

func (EchoService) Handle(_ context.Context, _ *Session, msg object.Dict) (object.Dict, error) {
	if msg == nil {
		return object.Dict{}, nil
	}
	return msg, nil
}

// RegistryService reports the names of registered services.
type RegistryService struct {
	broker *Broker
}

// NewRegistryService binds the registry endpoint to a broker.
func NewRegistryService(b *Broker) *RegistryService {
	return &RegistryService{broker: b}
}

func (r *RegistryService) Name() string {
	return RegistryServiceName
}

func (r *RegistryService) Handle(context.Context, *Session, object.Dict) (object.Dict, error) {
	names := r.broker.Services()
	out := make(object.Array, len(names))
	for i, name := range names {
		out[i] = name
	}
	return object.Dict{"services": out}, nil
}

// RegisterBuiltins wires the echo and registry services into a broker.
func RegisterBuiltins(b *Broker) error {
	if err := b.Register(EchoService{}); err != nil {
		return err
	}
	return b.Register(NewRegistryService(b))
}
