package tcnats

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NATSContainer represents a nats server with jetstream enabled
type NATSContainer struct {
	testcontainers.Container
}

type NATSContainerOption func(req *testcontainers.ContainerRequest)

func WithWaitStrategy(strategies ...wait.Strategy) NATSContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.WaitingFor = wait.ForAll(strategies...).WithDeadline(1 * time.Minute)
	}
}

func WithPort(port string) NATSContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.ExposedPorts = append(req.ExposedPorts, port)
	}
}

func WithName(containerName string) NATSContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.Name = containerName
	}
}

// SetupNATS creates an instance of the nats container type
func SetupNATS(ctx context.Context, opts ...NATSContainerOption) (
	*NATSContainer, error,
) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10",
		ExposedPorts: []string{},
		Cmd:          []string{"-js"},
	}

	for _, opt := range opts {
		opt(&req)
	}

	container, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            req.Name != "",
		})
	if err != nil {
		return nil, err
	}

	return &NATSContainer{Container: container}, nil
}
